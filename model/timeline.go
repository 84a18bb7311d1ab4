package model

import "time"

type TimelineEntry struct {
	Event *MidiEvent
	Track int
	Ticks int64

	// time to wait after the previous entry before this one fires
	Wait time.Duration
}

// Timeline is ordered by playback order.
type Timeline = []TimelineEntry

// Duration sums the scheduled waits of t.
func Duration(t Timeline) time.Duration {
	var total time.Duration
	for _, e := range t {
		total += e.Wait
	}
	return total
}
