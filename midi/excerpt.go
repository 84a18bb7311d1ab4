package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Excerpt copies s starting at fromTicks, keeping at most maxNotes note
// messages per track (0 keeps all). Non-note events ahead of the cut move to
// the start of the excerpt so tempo and program state still apply.
func Excerpt(s *smf.SMF, fromTicks int64, maxNotes int) *smf.SMF {
	res := smf.New()
	res.TimeFormat = s.TimeFormat

	for _, track := range s.Tracks {
		var out smf.Track
		var absTicks int64
		cursor := fromTicks
		var notes int
	TrackEventLoop:
		for _, evt := range track {
			absTicks += int64(evt.Delta)
			if evt.Message.Is(smf.MetaEndOfTrackMsg) {
				break
			}

			isNote := evt.Message.Is(gomidi.NoteOnMsg) || evt.Message.Is(gomidi.NoteOffMsg)
			if absTicks < fromTicks {
				if !isNote {
					evt.Delta = 0
					out = append(out, evt)
				}
				continue
			}

			evt.Delta = uint32(absTicks - cursor)
			cursor = absTicks
			out = append(out, evt)
			if isNote {
				notes++
				if maxNotes > 0 && notes >= maxNotes {
					break TrackEventLoop
				}
			}
		}
		out.Close(0)
		res.Tracks = append(res.Tracks, out)
	}
	return res
}
