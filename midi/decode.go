package midi

import (
	"sort"
	"time"

	"github.com/jsphweid/dsmidiplayer/model"
	"gitlab.com/gomidi/midi/v2/smf"
)

type trackEvent struct {
	track    int
	absTicks int64
	evt      *model.MidiEvent
}

// Decode flattens every track of s into one timeline ordered by absolute
// tick. Events on the same tick keep their track order. A positive bpm
// replaces the file's tempo map with a constant tempo.
func Decode(s *smf.SMF, bpm float64) model.Timeline {
	var events []trackEvent
	for i, track := range s.Tracks {
		var absTicks int64
		for _, e := range track {
			absTicks += int64(e.Delta)
			events = append(events, trackEvent{
				track:    i,
				absTicks: absTicks,
				evt:      convert(e),
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].absTicks < events[j].absTicks
	})

	clock := clockFor(s, bpm)
	res := make(model.Timeline, 0, len(events))
	var prevMicros int64
	for _, te := range events {
		micros := clock(te.absTicks)
		res = append(res, model.TimelineEntry{
			Event: te.evt,
			Track: te.track,
			Ticks: te.absTicks,
			Wait:  time.Duration(micros-prevMicros) * time.Microsecond,
		})
		prevMicros = micros
	}
	return res
}

func clockFor(s *smf.SMF, bpm float64) func(int64) int64 {
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if bpm <= 0 || !ok || mt == 0 {
		return s.TimeAt
	}
	microsPerTick := 60_000_000 / (bpm * float64(mt))
	return func(absTicks int64) int64 {
		return int64(float64(absTicks) * microsPerTick)
	}
}

func convert(e smf.Event) *model.MidiEvent {
	msg := e.Message
	res := &model.MidiEvent{
		Type:      model.ChannelEvent,
		Subtype:   model.UnknownSubtype,
		DeltaTime: int64(e.Delta),
		Raw:       append([]byte(nil), msg...),
	}

	var ch, key, vel uint8
	var rel int16
	var abs uint16
	var bpm float64
	var num, denom uint8
	var text string
	var sysex []byte

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		res.Subtype = model.NoteOn
		setNote(res, ch, key, vel)
	case msg.GetNoteEnd(&ch, &key):
		// a note on with zero velocity ends the note too
		res.Subtype = model.NoteOff
		if !msg.GetNoteOff(&ch, &key, &vel) {
			vel = 0
		}
		setNote(res, ch, key, vel)
	case msg.GetPolyAfterTouch(&ch, &key, &vel):
		res.Subtype = model.NoteAftertouch
		setNote(res, ch, key, vel)
	case msg.GetControlChange(&ch, &key, &vel):
		res.Subtype = model.Controller
		res.Channel = int(ch)
	case msg.GetProgramChange(&ch, &key):
		res.Subtype = model.ProgramChange
		res.Channel = int(ch)
	case msg.GetAfterTouch(&ch, &vel):
		res.Subtype = model.ChannelAftertouch
		res.Channel = int(ch)
	case msg.GetPitchBend(&ch, &rel, &abs):
		res.Subtype = model.PitchBend
		res.Channel = int(ch)
	case msg.GetSysEx(&sysex):
		res.Type = model.SysExEvent
	case msg.GetMetaTempo(&bpm):
		res.Type, res.Subtype = model.MetaEvent, model.SetTempo
	case msg.GetMetaMeter(&num, &denom):
		res.Type, res.Subtype = model.MetaEvent, model.TimeSignature
	case msg.GetMetaTrackName(&text):
		res.Type, res.Subtype = model.MetaEvent, model.TrackName
	case msg.Is(smf.MetaEndOfTrackMsg):
		res.Type, res.Subtype = model.MetaEvent, model.EndOfTrack
	case msg.IsMeta():
		res.Type = model.MetaEvent
	}
	return res
}

func setNote(e *model.MidiEvent, ch, key, vel uint8) {
	e.Channel = int(ch)
	e.NoteNumber = int(key)
	e.Velocity = int(vel)
}
