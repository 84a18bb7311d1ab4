package model

type EventType string

const (
	ChannelEvent EventType = "channel"
	MetaEvent    EventType = "meta"
	SysExEvent   EventType = "sysEx"
)

type Subtype string

const (
	NoteOn            Subtype = "noteOn"
	NoteOff           Subtype = "noteOff"
	NoteAftertouch    Subtype = "noteAftertouch"
	Controller        Subtype = "controller"
	ProgramChange     Subtype = "programChange"
	ChannelAftertouch Subtype = "channelAftertouch"
	PitchBend         Subtype = "pitchBend"
	SetTempo          Subtype = "setTempo"
	TimeSignature     Subtype = "timeSignature"
	KeySignature      Subtype = "keySignature"
	TrackName         Subtype = "trackName"
	EndOfTrack        Subtype = "endOfTrack"
	UnknownSubtype    Subtype = "unknown"
)

// MidiEvent is one decoded message. Only channel messages carry meaningful
// Channel, NoteNumber and Velocity values.
type MidiEvent struct {
	Type       EventType
	Subtype    Subtype
	Channel    int
	NoteNumber int
	Velocity   int

	// ticks since the previous event in the same track
	DeltaTime int64

	// wire bytes, empty for events the decoder synthesized
	Raw []byte
}
