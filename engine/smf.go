package engine

import (
	"context"
	"net/http"
	"sync"

	"github.com/jsphweid/dsmidiplayer/midi"
	"github.com/jsphweid/dsmidiplayer/model"
	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"go.uber.org/zap"
)

// Sender writes one message to a MIDI output.
type Sender func(msg gomidi.Message) error

// SMF is an Engine that decodes standard MIDI files with gomidi and plays
// them through a Sender.
type SMF struct {
	logger *zap.Logger
	send   Sender
	client *http.Client

	mu      sync.Mutex
	program uint8
}

type Option func(*SMF)

func WithLogger(l *zap.Logger) Option {
	return func(e *SMF) {
		e.logger = l
	}
}

func WithSender(s Sender) Option {
	return func(e *SMF) {
		e.send = s
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(e *SMF) {
		e.client = c
	}
}

func NewSMF(opts ...Option) *SMF {
	e := &SMF{}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.client == nil {
		e.client = http.DefaultClient
	}
	if e.send == nil {
		e.send = LogSender(e.logger)
	}
	return e
}

// LogSender logs every message at debug level instead of playing it.
func LogSender(l *zap.Logger) Sender {
	return func(msg gomidi.Message) error {
		l.Debug("midi out", zap.Stringer("msg", msg))
		return nil
	}
}

func (e *SMF) LoadInstrumentBank(ctx context.Context, cfg BankConfig) error {
	instrument := cfg.Instrument
	if instrument == "" {
		instrument = DefaultInstrument
	}

	fail := func(err error) error {
		le := &LoadError{Op: OpBank, URI: cfg.SoundfontURL, Err: err}
		e.logger.Error("instrument bank failed to load", zap.Error(le))
		if cfg.OnError != nil {
			cfg.OnError(le)
		}
		return le
	}

	program, ok := Program(instrument)
	if !ok {
		return fail(errors.Errorf("unknown instrument %q", instrument))
	}
	found, err := e.findSoundfont(ctx, cfg.SoundfontURL, instrument)
	if err != nil {
		return fail(err)
	}

	e.mu.Lock()
	e.program = program
	e.mu.Unlock()

	e.logger.Info("instrument bank loaded",
		zap.String("instrument", instrument),
		zap.String("soundfont", found),
		zap.Uint8("program", program))
	return nil
}

func (e *SMF) CreatePlayer() Player {
	e.mu.Lock()
	program := e.program
	e.mu.Unlock()

	return &smfPlayer{
		engine:    e,
		transport: newTransport(e.send, program, e.logger),
	}
}

func (e *SMF) readSMF(ctx context.Context, uri string) (*smf.SMF, error) {
	if !isRemote(uri) {
		return midi.ReadMidiFile(uri)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch midi file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d fetching midi file", resp.StatusCode)
	}
	return midi.ReadMidi(resp.Body)
}

type smfPlayer struct {
	engine    *SMF
	transport *transport

	mu  sync.Mutex
	bpm float64
}

func (p *smfPlayer) LoadFile(ctx context.Context, uri string) (model.Timeline, error) {
	tl, err := p.load(ctx, uri)
	if err != nil {
		return nil, &LoadError{Op: OpFile, URI: uri, Err: err}
	}
	p.engine.logger.Debug("midi file decoded",
		zap.String("uri", uri),
		zap.Int("entries", len(tl)),
		zap.Float64("bpm", p.Tempo()))
	return tl, nil
}

func (p *smfPlayer) load(ctx context.Context, uri string) (model.Timeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := p.engine.readSMF(ctx, uri)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return midi.Decode(s, p.Tempo()), nil
}

func (p *smfPlayer) SetTempo(bpm float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bpm = bpm
}

func (p *smfPlayer) Tempo() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bpm
}

func (p *smfPlayer) Arm(t model.Timeline) { p.transport.arm(t) }
func (p *smfPlayer) Play() error { return p.transport.play() }
func (p *smfPlayer) Pause() { p.transport.pause() }
func (p *smfPlayer) Resume() error { return p.transport.resume() }
func (p *smfPlayer) Stop() { p.transport.stop() }
func (p *smfPlayer) Playing() bool { return p.transport.isPlaying() }
func (p *smfPlayer) Position() Position { return p.transport.position() }
func (p *smfPlayer) Seek(pos Position) { p.transport.seek(pos) }
