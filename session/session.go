package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jsphweid/dsmidiplayer/engine"
	"github.com/jsphweid/dsmidiplayer/model"
	"github.com/jsphweid/dsmidiplayer/timeline"
	"go.uber.org/zap"
)

type Outcome int

const (
	Loaded Outcome = iota
	Failed
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	case Superseded:
		return "superseded"
	}
	return "unknown"
}

// Result is what a load resolves to. Timeline is only set when Outcome is
// Loaded, Err only when it is Failed.
type Result struct {
	Token    uuid.UUID
	URI      string
	Outcome  Outcome
	Timeline model.Timeline
	Stats    timeline.Stats
	Err      error
}

// Future resolves exactly once.
type Future struct {
	token  uuid.UUID
	done   chan struct{}
	res    Result
	cancel context.CancelFunc
}

func (f *Future) Token() uuid.UUID {
	return f.token
}

func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the load resolves or ctx is done.
func (f *Future) Result(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Cancel abandons the load. If it has not resolved yet it resolves
// Superseded.
func (f *Future) Cancel() {
	f.cancel()
}

// Loader runs file loads against a player and keeps only the latest one.
type Loader struct {
	logger *zap.Logger

	mu      sync.Mutex
	current uuid.UUID
	cancel  context.CancelFunc
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load decodes uri with p and normalizes the result. Starting a load
// supersedes every load started before it.
func (l *Loader) Load(ctx context.Context, p engine.Player, uri string) *Future {
	ctx, cancel := context.WithCancel(ctx)
	token := uuid.New()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.current = token
	l.cancel = cancel
	l.mu.Unlock()

	f := &Future{token: token, done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		res := l.run(ctx, p, uri)
		res.Token = token
		res.URI = uri
		f.res = l.settle(ctx, res)
		close(f.done)
	}()
	return f
}

// Current is the token of the most recent load.
func (l *Loader) Current() uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Loader) run(ctx context.Context, p engine.Player, uri string) Result {
	raw, err := p.LoadFile(ctx, uri)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}

	normalized, stats, err := timeline.NormalizeWithStats(raw)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	return Result{Outcome: Loaded, Timeline: normalized, Stats: stats}
}

func (l *Loader) settle(ctx context.Context, res Result) Result {
	l.mu.Lock()
	latest := l.current == res.Token
	if latest {
		l.cancel = nil
	}
	l.mu.Unlock()

	if !latest || ctx.Err() != nil {
		l.logger.Debug("load superseded", zap.String("token", res.Token.String()), zap.String("uri", res.URI))
		return Result{Token: res.Token, URI: res.URI, Outcome: Superseded}
	}

	switch res.Outcome {
	case Loaded:
		l.logger.Info("timeline normalized",
			zap.String("uri", res.URI),
			zap.Int("input", res.Stats.Input),
			zap.Int("retained", res.Stats.Retained),
			zap.Int("removed", res.Stats.Removed))
	case Failed:
		l.logger.Error("load failed", zap.String("uri", res.URI), zap.Error(res.Err))
	}
	return res
}
