package engine

import (
	"context"

	"github.com/jsphweid/dsmidiplayer/model"
)

// BankConfig describes the instrument bank to load before any file.
type BankConfig struct {
	SoundfontURL string      // Directory holding MIDI.js style soundfont files.
	Instrument   string      // Default instrument name, e.g. acoustic_grand_piano.
	OnError      func(error) // Optional, called before LoadInstrumentBank returns an error.
}

// Engine is the playback engine the widget drives.
type Engine interface {
	LoadInstrumentBank(ctx context.Context, cfg BankConfig) error
	CreatePlayer() Player
}

// Player decodes files and plays an armed timeline.
type Player interface {
	// LoadFile decodes uri using the current tempo.
	LoadFile(ctx context.Context, uri string) (model.Timeline, error)
	// SetTempo takes effect on the next LoadFile.
	SetTempo(bpm float64)
	Tempo() float64
	// Arm hands a normalized timeline to the transport and rewinds it.
	Arm(t model.Timeline)
	Play() error
	Pause()
	Resume() error
	Stop()
	Playing() bool
	// Position is where the transport will continue from.
	Position() Position
	// Seek moves an armed transport to p, keeping it playing if it was.
	Seek(p Position)
}

// Position locates the next entry to fire in a timeline. Ticks is its
// absolute tick and Skip counts the entries on that tick that already fired,
// so a timeline of the same file decoded at another tempo resumes exactly.
type Position struct {
	Ticks int64
	Skip  int
}
