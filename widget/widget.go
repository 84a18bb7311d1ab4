package widget

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/jsphweid/dsmidiplayer/engine"
	"github.com/jsphweid/dsmidiplayer/model"
	"github.com/jsphweid/dsmidiplayer/session"
	"github.com/jsphweid/dsmidiplayer/timeline"
	"github.com/jsphweid/dsmidiplayer/util"
	"go.uber.org/zap"
)

const (
	MinBPM     = 20
	MaxBPM     = 300
	DefaultBPM = 120
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidTempo      = errors.New("tempo must be a positive number")
)

type Snapshot struct {
	State          State
	Src            string
	BPM            float64
	PlayPauseLabel string
	Entries        int
	Removed        int
	Err            error
}

// Widget is the player's control state machine. It owns at most one player
// session at a time and replaces it wholesale on every successful load.
type Widget struct {
	engine   engine.Engine
	logger   *zap.Logger
	bank     engine.BankConfig
	loader   *session.Loader
	debounce time.Duration
	reload   func(func())

	mu         sync.Mutex
	state      State
	fallback   State // restored when the pending load fails
	src        string
	bpm        float64
	player     engine.Player
	timeline   model.Timeline
	stats      timeline.Stats
	pending    *session.Future
	pendingSrc string
	reloading  bool
	applied    map[uuid.UUID]chan struct{} // closed once a load's result is applied
	lastErr    error
	ctx        context.Context
	cancel     context.CancelFunc
}

type Option func(*Widget)

func WithLogger(l *zap.Logger) Option {
	return func(w *Widget) {
		w.logger = l
	}
}

func WithBank(cfg engine.BankConfig) Option {
	return func(w *Widget) {
		w.bank = cfg
	}
}

func WithTempo(bpm float64) Option {
	return func(w *Widget) {
		w.bpm = bpm
	}
}

// WithReloadDebounce sets how long tempo changes settle before the file
// is reloaded.
func WithReloadDebounce(d time.Duration) Option {
	return func(w *Widget) {
		w.debounce = d
	}
}

func New(e engine.Engine, opts ...Option) *Widget {
	w := &Widget{
		engine:   e,
		bpm:      DefaultBPM,
		debounce: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	w.bpm = util.Clamp(w.bpm, MinBPM, MaxBPM)
	w.loader = session.NewLoader(w.logger)
	w.applied = make(map[uuid.UUID]chan struct{})
	w.reload = debounce.New(w.debounce)
	return w
}

// Attach loads the instrument bank and starts loading src. On a bank
// failure the widget stays Unattached.
func (w *Widget) Attach(ctx context.Context, src string) (*session.Future, error) {
	w.mu.Lock()
	if w.ctx != nil {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: already attached", ErrInvalidTransition)
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	attachCtx := w.ctx
	w.mu.Unlock()

	if err := w.engine.LoadInstrumentBank(attachCtx, w.bank); err != nil {
		w.mu.Lock()
		w.cancel()
		w.ctx, w.cancel = nil, nil
		w.lastErr = err
		w.mu.Unlock()
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx != attachCtx {
		return nil, fmt.Errorf("%w: detached during attach", ErrInvalidTransition)
	}
	return w.beginLoad(src, false), nil
}

// SetSource swaps the file being played. The current session keeps running
// until the new file has loaded.
func (w *Widget) SetSource(src string) (*session.Future, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx == nil {
		return nil, fmt.Errorf("%w: set source while detached", ErrInvalidTransition)
	}
	return w.beginLoad(src, false), nil
}

// Await waits until the load behind f has resolved and the widget has
// applied its result.
func (w *Widget) Await(ctx context.Context, f *session.Future) (session.Result, error) {
	w.mu.Lock()
	applied, ok := w.applied[f.Token()]
	w.mu.Unlock()

	if ok {
		select {
		case <-applied:
		case <-ctx.Done():
			return session.Result{}, ctx.Err()
		}
	}
	return f.Result(ctx)
}

// TogglePlayPause starts playback from the top when Ready or Stopped,
// resumes when Paused and pauses when Playing. While a reload is in flight
// it drives the session that is still active.
func (w *Widget) TogglePlayPause() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reconcile()

	st := w.controlState()
	var err error
	switch *st {
	case Ready, Stopped:
		err = w.player.Play()
	case Paused:
		err = w.player.Resume()
	case Playing:
		w.player.Pause()
		*st = Paused
		return nil
	default:
		return fmt.Errorf("%w: play/pause while %s", ErrInvalidTransition, w.state)
	}

	if err != nil {
		w.lastErr = err
		return err
	}
	*st = Playing
	return nil
}

func (w *Widget) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reconcile()

	st := w.controlState()
	if !st.armed() {
		return fmt.Errorf("%w: stop while %s", ErrInvalidTransition, w.state)
	}
	w.player.Stop()
	*st = Stopped
	return nil
}

// SetTempo clamps bpm to the supported range and schedules a reload of the
// current source at the new tempo.
func (w *Widget) SetTempo(bpm float64) (float64, error) {
	if math.IsNaN(bpm) || bpm <= 0 {
		return 0, ErrInvalidTempo
	}
	bpm = util.Clamp(bpm, MinBPM, MaxBPM)

	w.mu.Lock()
	w.bpm = bpm
	attached := w.ctx != nil
	if w.player != nil {
		w.player.SetTempo(bpm)
	}
	w.mu.Unlock()

	if attached {
		w.reload(w.reloadCurrent)
	}
	return bpm, nil
}

func (w *Widget) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	if w.pending != nil {
		w.pending.Cancel()
	}
	if w.player != nil {
		w.player.Stop()
	}

	w.ctx, w.cancel = nil, nil
	w.pending, w.pendingSrc, w.reloading = nil, "", false
	w.player = nil
	w.timeline = nil
	w.stats = timeline.Stats{}
	w.src = ""
	w.state = Unattached
	w.logger.Info("widget detached")
}

func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reconcile()

	label := "Play"
	if *w.controlState() == Playing {
		label = "Pause"
	}
	return Snapshot{
		State:          w.state,
		Src:            w.src,
		BPM:            w.bpm,
		PlayPauseLabel: label,
		Entries:        len(w.timeline),
		Removed:        w.stats.Removed,
		Err:            w.lastErr,
	}
}

// Timeline is the normalized timeline of the active session.
func (w *Widget) Timeline() model.Timeline {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timeline
}

// controlState is the state playback controls act on: the pending load's
// fallback while Loading, the current state otherwise.
func (w *Widget) controlState() *State {
	if w.state == Loading {
		return &w.fallback
	}
	return &w.state
}

// reconcile moves Playing to Stopped once the transport ran off the end.
func (w *Widget) reconcile() {
	st := w.controlState()
	if *st == Playing && w.player != nil && !w.player.Playing() {
		w.player.Stop()
		*st = Stopped
	}
}

func (w *Widget) reloadCurrent() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx == nil {
		return
	}
	w.logger.Debug("reloading for tempo change", zap.Float64("bpm", w.bpm))
	switch {
	case w.pending != nil && !w.reloading:
		// a source change is in flight, load that file at the new tempo
		w.beginLoad(w.pendingSrc, false)
	case w.src != "":
		w.beginLoad(w.src, true)
	}
}

// beginLoad must be called with mu held. A reload re-reads the active
// source and keeps the playback position when it lands.
func (w *Widget) beginLoad(src string, reload bool) *session.Future {
	if w.state != Loading {
		w.fallback = w.state
	}
	w.state = Loading

	player := w.engine.CreatePlayer()
	player.SetTempo(w.bpm)

	f := w.loader.Load(w.ctx, player, src)
	w.pending = f
	w.pendingSrc = src
	w.reloading = reload
	w.applied[f.Token()] = make(chan struct{})
	w.logger.Info("loading midi file", zap.String("src", src), zap.String("token", f.Token().String()))

	go func() {
		<-f.Done()
		res, _ := f.Result(context.Background())
		w.complete(res, player)
	}()
	return f
}

func (w *Widget) complete(res session.Result, player engine.Player) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if applied, ok := w.applied[res.Token]; ok {
		delete(w.applied, res.Token)
		defer close(applied)
	}
	if w.pending == nil || w.pending.Token() != res.Token {
		return
	}
	reload := w.reloading
	w.pending, w.pendingSrc, w.reloading = nil, "", false
	w.reconcile()

	switch res.Outcome {
	case session.Superseded, session.Failed:
		if res.Outcome == session.Failed {
			w.lastErr = res.Err
		}
		w.state = w.fallback
		if w.state == Unattached && w.cancel != nil {
			// the first load never produced a session
			w.cancel()
			w.ctx, w.cancel = nil, nil
		}
	case session.Loaded:
		resume := reload && w.player != nil && (w.fallback == Playing || w.fallback == Paused)
		var from engine.Position
		if resume {
			from = w.player.Position()
		}
		if w.player != nil {
			w.player.Stop()
		}
		w.player = player
		w.player.Arm(res.Timeline)
		w.src = res.URI
		w.timeline = res.Timeline
		w.stats = res.Stats
		w.lastErr = nil
		w.state = Ready

		var err error
		switch {
		case resume:
			w.player.Seek(from)
			w.state = Paused
			if w.fallback == Playing {
				err = w.player.Resume()
			}
		case reload && w.fallback == Stopped:
			w.state = Stopped
		case w.fallback == Playing:
			err = w.player.Play()
		}
		if err != nil {
			w.lastErr = err
			return
		}
		if w.fallback == Playing {
			w.state = Playing
		}
	}
}
