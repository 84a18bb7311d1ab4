package timeline

import (
	"fmt"

	"github.com/jsphweid/dsmidiplayer/model"
)

type MalformedEventError struct {
	Index  int
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed timeline entry %d: %s", e.Index, e.Reason)
}

type Stats struct {
	Input    int
	Retained int
	Removed  int
}

func IsNoteEvent(e *model.MidiEvent) bool {
	return e.Subtype == model.NoteOn || e.Subtype == model.NoteOff
}

// IsDuplicate reports whether curr repeats prev at the same instant. Subtype
// doubles as the type discriminant, so noteOn never duplicates noteOff.
func IsDuplicate(prev, curr *model.MidiEvent) bool {
	if prev == nil {
		return false
	}
	return prev.Channel == curr.Channel &&
		prev.NoteNumber == curr.NoteNumber &&
		prev.Subtype == curr.Subtype &&
		prev.Velocity == curr.Velocity &&
		curr.DeltaTime == 0
}

// Normalize drops note events that repeat the previous note event at zero
// delta. The result is a new slice holding a subsequence of t; neither t nor
// its events are modified.
func Normalize(t model.Timeline) (model.Timeline, error) {
	res, _, err := NormalizeWithStats(t)
	return res, err
}

func NormalizeWithStats(t model.Timeline) (model.Timeline, Stats, error) {
	stats := Stats{Input: len(t)}
	res := make(model.Timeline, 0, len(t))

	var prev *model.MidiEvent
	for i, entry := range t {
		if err := validate(i, entry); err != nil {
			return nil, Stats{}, err
		}

		evt := entry.Event
		if !IsNoteEvent(evt) {
			res = append(res, entry)
			continue
		}

		// chains collapse because the baseline moves even when evt is dropped
		dup := IsDuplicate(prev, evt)
		prev = evt
		if dup {
			stats.Removed++
			continue
		}
		res = append(res, entry)
	}

	stats.Retained = len(res)
	return res, stats, nil
}

func validate(i int, entry model.TimelineEntry) error {
	evt := entry.Event
	switch {
	case evt == nil:
		return &MalformedEventError{Index: i, Reason: "missing event"}
	case evt.Subtype == "":
		return &MalformedEventError{Index: i, Reason: "missing subtype"}
	case evt.DeltaTime < 0:
		return &MalformedEventError{Index: i, Reason: fmt.Sprintf("negative delta time %d", evt.DeltaTime)}
	}

	if !IsNoteEvent(evt) {
		return nil
	}
	switch {
	case evt.Channel < 0 || evt.Channel > 15:
		return &MalformedEventError{Index: i, Reason: fmt.Sprintf("channel %d out of range", evt.Channel)}
	case evt.NoteNumber < 0 || evt.NoteNumber > 127:
		return &MalformedEventError{Index: i, Reason: fmt.Sprintf("note number %d out of range", evt.NoteNumber)}
	case evt.Velocity < 0 || evt.Velocity > 127:
		return &MalformedEventError{Index: i, Reason: fmt.Sprintf("velocity %d out of range", evt.Velocity)}
	}
	return nil
}
