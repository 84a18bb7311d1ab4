package timeline

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/jsphweid/dsmidiplayer/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(subtype model.Subtype, ch, key, vel int, dt int64) model.TimelineEntry {
	return model.TimelineEntry{Event: &model.MidiEvent{
		Type:       model.ChannelEvent,
		Subtype:    subtype,
		Channel:    ch,
		NoteNumber: key,
		Velocity:   vel,
		DeltaTime:  dt,
	}}
}

func on(key int, dt int64) model.TimelineEntry {
	return note(model.NoteOn, 0, key, 100, dt)
}

func meta(subtype model.Subtype, dt int64) model.TimelineEntry {
	return model.TimelineEntry{Event: &model.MidiEvent{Type: model.MetaEvent, Subtype: subtype, DeltaTime: dt}}
}

func mustNormalize(t *testing.T, tl model.Timeline) model.Timeline {
	t.Helper()
	res, err := Normalize(tl)
	require.NoError(t, err)
	return res
}

func TestNormalizeEmpty(t *testing.T) {
	res := mustNormalize(t, model.Timeline{})
	assert.NotNil(t, res)
	assert.Empty(t, res)

	res = mustNormalize(t, nil)
	assert.Empty(t, res)
}

func TestCollapsesSimultaneousDuplicate(t *testing.T) {
	a, b := on(60, 0), on(60, 0)
	res := mustNormalize(t, model.Timeline{a, b})

	assert := assert.New(t)
	assert.Len(res, 1)
	assert.Same(a.Event, res[0].Event)
}

func TestKeepsDifferentNoteNumber(t *testing.T) {
	a, c := on(60, 0), on(62, 0)
	res := mustNormalize(t, model.Timeline{a, c})
	assert.Equal(t, model.Timeline{a, c}, res)
}

func TestKeepsRepeatedNoteWithDelta(t *testing.T) {
	a, d := on(60, 0), on(60, 120)
	res := mustNormalize(t, model.Timeline{a, d})
	assert.Equal(t, model.Timeline{a, d}, res)
}

func TestCollapsesChains(t *testing.T) {
	a := on(60, 0)
	res := mustNormalize(t, model.Timeline{a, on(60, 0), on(60, 0)})
	assert.Equal(t, model.Timeline{a}, res)
}

func TestFieldMismatchesAreNotDuplicates(t *testing.T) {
	base := note(model.NoteOn, 2, 64, 90, 0)
	cases := map[string]model.TimelineEntry{
		"channel":  note(model.NoteOn, 3, 64, 90, 0),
		"note":     note(model.NoteOn, 2, 65, 90, 0),
		"velocity": note(model.NoteOn, 2, 64, 91, 0),
		"subtype":  note(model.NoteOff, 2, 64, 90, 0),
		"delta":    note(model.NoteOn, 2, 64, 90, 1),
	}

	for field, other := range cases {
		t.Run(fmt.Sprintf("differs by %s", field), func(t *testing.T) {
			res := mustNormalize(t, model.Timeline{base, other})
			assert.Len(t, res, 2)
		})
	}
}

func TestNonNoteEventsAreKeptAndDoNotResetBaseline(t *testing.T) {
	a := on(60, 0)
	tempo := meta(model.SetTempo, 0)
	cc := note(model.Controller, 0, 7, 100, 0)
	res := mustNormalize(t, model.Timeline{a, tempo, cc, on(60, 0)})

	assert.Equal(t, model.Timeline{a, tempo, cc}, res)
}

func TestNonNoteDuplicatesAreKept(t *testing.T) {
	cc := note(model.Controller, 0, 7, 100, 0)
	res := mustNormalize(t, model.Timeline{cc, cc, cc})
	assert.Len(t, res, 3)
}

func TestDroppedDuplicateStillMovesBaseline(t *testing.T) {
	a, c := on(60, 0), on(62, 0)
	last := on(60, 0)
	res := mustNormalize(t, model.Timeline{a, on(60, 0), c, on(62, 0), last})

	// last follows the dropped copy of c, not a
	assert.Equal(t, model.Timeline{a, c, last}, res)
}

func TestCollapsesNoteOffDuplicates(t *testing.T) {
	off := note(model.NoteOff, 1, 72, 0, 30)
	res := mustNormalize(t, model.Timeline{off, note(model.NoteOff, 1, 72, 0, 0)})
	assert.Equal(t, model.Timeline{off}, res)
}

func TestDoesNotMutateInput(t *testing.T) {
	in := model.Timeline{on(60, 0), on(60, 0), on(61, 0)}
	snapshot := make(model.Timeline, len(in))
	copy(snapshot, in)
	events := make([]model.MidiEvent, len(in))
	for i, e := range in {
		events[i] = *e.Event
	}

	res := mustNormalize(t, in)
	res[0] = on(99, 5)

	assert := assert.New(t)
	assert.Equal(snapshot, in)
	for i, e := range in {
		assert.Equal(events[i], *e.Event)
	}
}

func TestStats(t *testing.T) {
	_, stats, err := NormalizeWithStats(model.Timeline{on(60, 0), on(60, 0), meta(model.EndOfTrack, 0)})
	require.NoError(t, err)
	assert.Equal(t, Stats{Input: 3, Retained: 2, Removed: 1}, stats)
}

func TestMalformedEntries(t *testing.T) {
	cases := map[string]model.TimelineEntry{
		"missing event":   {},
		"missing subtype": {Event: &model.MidiEvent{}},
		"negative delta":  meta(model.SetTempo, -1),
		"channel":         note(model.NoteOn, 16, 60, 100, 0),
		"note number":     note(model.NoteOff, 0, 128, 0, 0),
		"velocity":        note(model.NoteOn, 0, 60, -1, 0),
	}

	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := Normalize(model.Timeline{on(60, 0), bad})

			var malformed *MalformedEventError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, 1, malformed.Index)
			assert.Nil(t, res)
		})
	}
}

func TestNoteClassification(t *testing.T) {
	assert := assert.New(t)
	assert.True(IsNoteEvent(&model.MidiEvent{Subtype: model.NoteOn}))
	assert.True(IsNoteEvent(&model.MidiEvent{Subtype: model.NoteOff}))
	assert.False(IsNoteEvent(&model.MidiEvent{Subtype: model.Controller}))
	assert.False(IsNoteEvent(&model.MidiEvent{Subtype: model.SetTempo}))
	assert.False(IsDuplicate(nil, &model.MidiEvent{Subtype: model.NoteOn}))
}

func randomTimeline(r *rand.Rand, n int) model.Timeline {
	subtypes := []model.Subtype{model.NoteOn, model.NoteOff, model.Controller, model.SetTempo}
	res := make(model.Timeline, n)
	for i := range res {
		res[i] = note(subtypes[r.Intn(len(subtypes))], r.Intn(2), 60+r.Intn(2), 100*r.Intn(2), int64(r.Intn(2)))
	}
	return res
}

func isSubsequence(sub, full model.Timeline) bool {
	j := 0
	for i := 0; i < len(full) && j < len(sub); i++ {
		if full[i].Event == sub[j].Event {
			j++
		}
	}
	return j == len(sub)
}

func TestRandomTimelineProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		in := randomTimeline(r, r.Intn(40))
		once := mustNormalize(t, in)
		twice := mustNormalize(t, once)

		require.True(t, isSubsequence(once, in), "not a subsequence of input")
		require.Equal(t, once, twice, "normalize is not idempotent")

		kept := make(map[*model.MidiEvent]bool, len(once))
		for _, e := range once {
			kept[e.Event] = true
		}
		for _, e := range in {
			if !IsNoteEvent(e.Event) {
				require.True(t, kept[e.Event], "non-note event removed")
			}
		}
	}
}
