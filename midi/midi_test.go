package midi

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jsphweid/dsmidiplayer/model"
	"github.com/jsphweid/dsmidiplayer/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func writeSMF(t *testing.T, tracks ...smf.Track) []byte {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	for _, tr := range tracks {
		tr.Close(0)
		require.NoError(t, s.Add(tr))
	}
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func duplicateNoteTrack() smf.Track {
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(480, gomidi.NoteOff(0, 60))
	return tr
}

func TestDecodeSingleTrack(t *testing.T) {
	s, err := ReadMidi(bytes.NewReader(writeSMF(t, duplicateNoteTrack())))
	require.NoError(t, err)

	tl := Decode(s, 0)
	require.Len(t, tl, 5)

	assert := assert.New(t)
	assert.Equal(model.SetTempo, tl[0].Event.Subtype)
	assert.Equal(model.MetaEvent, tl[0].Event.Type)

	assert.Equal(model.NoteOn, tl[1].Event.Subtype)
	assert.Equal(60, tl[1].Event.NoteNumber)
	assert.Equal(100, tl[1].Event.Velocity)
	assert.Equal(int64(0), tl[2].Event.DeltaTime)

	assert.Equal(model.NoteOff, tl[3].Event.Subtype)
	assert.Equal(int64(480), tl[3].Event.DeltaTime)
	assert.Equal(int64(480), tl[3].Ticks)
	assert.Equal(500*time.Millisecond, tl[3].Wait)

	assert.Equal(model.EndOfTrack, tl[4].Event.Subtype)
	assert.Equal(500*time.Millisecond, model.Duration(tl))
}

func TestDecodeTempoOverride(t *testing.T) {
	s, err := ParseMidi(writeSMF(t, duplicateNoteTrack()))
	require.NoError(t, err)

	tl := Decode(s, 60)
	assert.Equal(t, time.Second, tl[3].Wait)
}

func TestDecodeMergesTracksByTick(t *testing.T) {
	var lead, bass smf.Track
	lead.Add(0, gomidi.NoteOn(0, 60, 90))
	lead.Add(480, gomidi.NoteOff(0, 60))
	bass.Add(240, gomidi.NoteOn(1, 40, 80))
	bass.Add(240, gomidi.NoteOff(1, 40))

	s, err := ParseMidi(writeSMF(t, lead, bass))
	require.NoError(t, err)
	tl := Decode(s, 120)

	var got []int64
	for _, e := range tl {
		got = append(got, e.Ticks)
	}

	assert := assert.New(t)
	assert.Equal([]int64{0, 240, 480, 480, 480, 480}, got)
	assert.Equal(1, tl[1].Track)
	assert.Equal(1, tl[1].Event.Channel)
	assert.Equal(0, tl[2].Track)
	assert.Equal(model.NoteOff, tl[2].Event.Subtype)
	assert.Equal(250*time.Millisecond, tl[1].Wait)
}

func TestDecodeNoteOnZeroVelocityIsNoteOff(t *testing.T) {
	var tr smf.Track
	tr.Add(0, gomidi.NoteOn(2, 64, 0))
	s, err := ParseMidi(writeSMF(t, tr))
	require.NoError(t, err)

	evt := Decode(s, 0)[0].Event
	assert.Equal(t, model.NoteOff, evt.Subtype)
	assert.Equal(t, 2, evt.Channel)
	assert.Equal(t, 0, evt.Velocity)
}

func TestDecodedTimelineNormalizes(t *testing.T) {
	s, err := ParseMidi(writeSMF(t, duplicateNoteTrack()))
	require.NoError(t, err)

	res, stats, err := timeline.NormalizeWithStats(Decode(s, 0))
	require.NoError(t, err)
	assert.Len(t, res, 4)
	assert.Equal(t, 1, stats.Removed)
}

func TestReadMidiFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mid")
	require.NoError(t, os.WriteFile(path, writeSMF(t, duplicateNoteTrack()), 0644))

	s, err := ReadMidiFile(path)
	require.NoError(t, err)
	assert.Len(t, s.Tracks, 1)

	_, err = ReadMidiFile(filepath.Join(t.TempDir(), "missing.mid"))
	assert.Error(t, err)
}

func TestParseGarbage(t *testing.T) {
	_, err := ParseMidi([]byte("definitely not a midi file"))
	assert.Error(t, err)
}

func TestExcerpt(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(480, gomidi.NoteOff(0, 60))
	tr.Add(0, gomidi.NoteOn(0, 62, 100))
	tr.Add(480, gomidi.NoteOff(0, 62))
	tr.Add(0, gomidi.NoteOn(0, 64, 100))
	tr.Add(480, gomidi.NoteOff(0, 64))

	s, err := ParseMidi(writeSMF(t, tr))
	require.NoError(t, err)

	tl := Decode(Excerpt(s, 480, 3), 0)
	var subtypes []model.Subtype
	var ticks []int64
	for _, e := range tl {
		subtypes = append(subtypes, e.Event.Subtype)
		ticks = append(ticks, e.Ticks)
	}

	assert := assert.New(t)
	assert.Equal([]model.Subtype{model.SetTempo, model.NoteOff, model.NoteOn, model.NoteOff, model.EndOfTrack}, subtypes)
	assert.Equal([]int64{0, 0, 0, 480, 480}, ticks)
	assert.Equal(62, tl[2].Event.NoteNumber)

	assert.Len(Decode(Excerpt(s, 0, 0), 0), len(Decode(s, 0)))
}
