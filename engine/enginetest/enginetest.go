// Package enginetest provides an in-memory engine.Engine for tests.
package enginetest

import (
	"context"
	"os"
	"sync"

	"github.com/jsphweid/dsmidiplayer/engine"
	"github.com/jsphweid/dsmidiplayer/model"
)

// Engine serves timelines registered with AddFile. Files registered with a
// gate block in LoadFile until the gate is closed.
type Engine struct {
	BankErr error

	mu      sync.Mutex
	files   map[string]model.Timeline
	errs    map[string]error
	gates   map[string]chan struct{}
	players []*Player
	banks   []engine.BankConfig
}

func New() *Engine {
	return &Engine{
		files: make(map[string]model.Timeline),
		errs:  make(map[string]error),
		gates: make(map[string]chan struct{}),
	}
}

func (e *Engine) AddFile(uri string, t model.Timeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[uri] = t
}

func (e *Engine) AddError(uri string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs[uri] = err
}

// Gate makes loads of uri block until the returned func is called.
func (e *Engine) Gate(uri string) (release func()) {
	gate := make(chan struct{})
	e.mu.Lock()
	e.gates[uri] = gate
	e.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (e *Engine) LoadInstrumentBank(ctx context.Context, cfg engine.BankConfig) error {
	e.mu.Lock()
	e.banks = append(e.banks, cfg)
	err := e.BankErr
	e.mu.Unlock()

	if err != nil {
		le := &engine.LoadError{Op: engine.OpBank, URI: cfg.SoundfontURL, Err: err}
		if cfg.OnError != nil {
			cfg.OnError(le)
		}
		return le
	}
	return nil
}

func (e *Engine) Banks() []engine.BankConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.BankConfig(nil), e.banks...)
}

func (e *Engine) CreatePlayer() engine.Player {
	p := &Player{engine: e}
	e.mu.Lock()
	e.players = append(e.players, p)
	e.mu.Unlock()
	return p
}

func (e *Engine) Players() []*Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Player(nil), e.players...)
}

type Player struct {
	engine *Engine

	mu      sync.Mutex
	bpm     float64
	armed   model.Timeline
	pos     engine.Position
	playing bool
	loads   []string
	calls   []string
}

func (p *Player) LoadFile(ctx context.Context, uri string) (model.Timeline, error) {
	p.mu.Lock()
	p.loads = append(p.loads, uri)
	p.mu.Unlock()

	p.engine.mu.Lock()
	gate := p.engine.gates[uri]
	t, ok := p.engine.files[uri]
	err := p.engine.errs[uri]
	p.engine.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &engine.LoadError{Op: engine.OpFile, URI: uri, Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, &engine.LoadError{Op: engine.OpFile, URI: uri, Err: err}
	}
	if !ok {
		return nil, &engine.LoadError{Op: engine.OpFile, URI: uri, Err: os.ErrNotExist}
	}
	return t, nil
}

func (p *Player) SetTempo(bpm float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bpm = bpm
}

func (p *Player) Tempo() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bpm
}

func (p *Player) Arm(t model.Timeline) {
	p.record("arm")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed = t
	p.pos = engine.Position{}
	p.playing = false
}

func (p *Player) Play() error {
	p.record("play")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.armed == nil {
		return engine.ErrNotArmed
	}
	p.pos = engine.Position{}
	p.playing = true
	return nil
}

func (p *Player) Pause() {
	p.record("pause")
	p.setPlaying(false)
}

func (p *Player) Resume() error {
	p.record("resume")
	p.setPlaying(true)
	return nil
}

func (p *Player) Stop() {
	p.record("stop")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = engine.Position{}
	p.playing = false
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Player) Position() engine.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

func (p *Player) Seek(pos engine.Position) {
	p.record("seek")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = pos
}

// Advance simulates the transport having played up to pos.
func (p *Player) Advance(pos engine.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = pos
}

// Finish simulates the transport reaching the end of the timeline.
func (p *Player) Finish() {
	p.setPlaying(false)
}

func (p *Player) Armed() model.Timeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.armed
}

func (p *Player) Loads() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.loads...)
}

// Calls lists transport calls in order: arm, play, pause, resume, stop, seek.
func (p *Player) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Player) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *Player) setPlaying(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = v
}
