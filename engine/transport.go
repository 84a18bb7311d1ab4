package engine

import (
	"sync"
	"time"

	"github.com/jsphweid/dsmidiplayer/model"
	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"
)

const allNotesOff = 123

// transport walks an armed timeline in real time. Control calls are
// serialised by ctl; mu guards the state shared with the run goroutine.
type transport struct {
	send    Sender
	program uint8
	logger  *zap.Logger

	ctl sync.Mutex

	mu       sync.Mutex
	timeline model.Timeline
	pos      int
	elapsed  time.Duration // already waited toward the entry at pos
	playing  bool
	halt     chan struct{}
	done     chan struct{}
}

func newTransport(send Sender, program uint8, logger *zap.Logger) *transport {
	return &transport{send: send, program: program, logger: logger}
}

func (t *transport) arm(tl model.Timeline) {
	t.ctl.Lock()
	defer t.ctl.Unlock()

	t.interrupt()
	t.mu.Lock()
	t.timeline = tl
	t.moveTo(0)
	t.mu.Unlock()
}

func (t *transport) play() error {
	t.ctl.Lock()
	defer t.ctl.Unlock()

	t.interrupt()
	t.mu.Lock()
	if t.timeline == nil {
		t.mu.Unlock()
		return ErrNotArmed
	}
	t.moveTo(0)
	t.mu.Unlock()

	for ch := uint8(0); ch < 16; ch++ {
		t.emit(gomidi.ProgramChange(ch, t.program))
	}
	t.start()
	return nil
}

func (t *transport) resume() error {
	t.ctl.Lock()
	defer t.ctl.Unlock()

	t.mu.Lock()
	if t.timeline == nil {
		t.mu.Unlock()
		return ErrNotArmed
	}
	if t.playing {
		t.mu.Unlock()
		return nil
	}
	if t.pos >= len(t.timeline) {
		t.moveTo(0)
	}
	t.mu.Unlock()

	// reap a run goroutine that already reached the end
	t.interrupt()
	t.start()
	return nil
}

func (t *transport) pause() {
	t.ctl.Lock()
	defer t.ctl.Unlock()

	t.interrupt()
	t.silence()
}

func (t *transport) stop() {
	t.ctl.Lock()
	defer t.ctl.Unlock()

	t.interrupt()
	t.mu.Lock()
	t.moveTo(0)
	t.mu.Unlock()
	t.silence()
}

func (t *transport) seek(p Position) {
	t.ctl.Lock()
	defer t.ctl.Unlock()

	t.mu.Lock()
	wasPlaying := t.playing
	t.mu.Unlock()

	t.interrupt()
	t.mu.Lock()
	i := 0
	for i < len(t.timeline) && t.timeline[i].Ticks < p.Ticks {
		i++
	}
	for skip := p.Skip; skip > 0 && i < len(t.timeline) && t.timeline[i].Ticks == p.Ticks; skip-- {
		i++
	}
	t.moveTo(i)
	t.mu.Unlock()

	if wasPlaying {
		t.silence()
		t.start()
	}
}

func (t *transport) isPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

func (t *transport) position() Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pos >= len(t.timeline) {
		if len(t.timeline) == 0 {
			return Position{}
		}
		return Position{Ticks: t.timeline[len(t.timeline)-1].Ticks + 1}
	}
	p := Position{Ticks: t.timeline[t.pos].Ticks}
	for i := t.pos - 1; i >= 0 && t.timeline[i].Ticks == p.Ticks; i-- {
		p.Skip++
	}
	return p
}

func (t *transport) index() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos
}

// moveTo must be called with mu held.
func (t *transport) moveTo(pos int) {
	t.pos = pos
	t.elapsed = 0
}

// start must be called with ctl held and no run goroutine active.
func (t *transport) start() {
	t.mu.Lock()
	halt := make(chan struct{})
	done := make(chan struct{})
	t.halt, t.done = halt, done
	t.playing = true
	t.mu.Unlock()

	go t.run(halt, done)
}

// interrupt stops the run goroutine, if any, and waits for it to exit.
func (t *transport) interrupt() {
	t.mu.Lock()
	halt, done := t.halt, t.done
	t.halt, t.done = nil, nil
	t.mu.Unlock()

	if halt == nil {
		return
	}
	close(halt)
	<-done
}

func (t *transport) run(halt <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		t.mu.Lock()
		t.playing = false
		t.mu.Unlock()
	}()

	for {
		t.mu.Lock()
		if t.pos >= len(t.timeline) {
			t.mu.Unlock()
			t.logger.Debug("timeline finished")
			return
		}
		entry := t.timeline[t.pos]
		wait := entry.Wait - t.elapsed
		t.mu.Unlock()

		if wait > 0 {
			began := time.Now()
			timer := time.NewTimer(wait)
			select {
			case <-halt:
				timer.Stop()
				t.mu.Lock()
				t.elapsed += time.Since(began)
				t.mu.Unlock()
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-halt:
				return
			default:
			}
		}

		if entry.Event != nil && entry.Event.Type == model.ChannelEvent && len(entry.Event.Raw) > 0 {
			t.emit(gomidi.Message(entry.Event.Raw))
		}

		t.mu.Lock()
		t.moveTo(t.pos + 1)
		t.mu.Unlock()
	}
}

func (t *transport) silence() {
	for ch := uint8(0); ch < 16; ch++ {
		t.emit(gomidi.ControlChange(ch, allNotesOff, 0))
	}
}

func (t *transport) emit(msg gomidi.Message) {
	if err := t.send(msg); err != nil {
		t.logger.Warn("could not send midi message", zap.Stringer("msg", msg), zap.Error(err))
	}
}
