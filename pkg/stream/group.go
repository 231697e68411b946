package stream

import (
	"sort"

	"github.com/james-see/scoregrid/pkg/rational"
	"github.com/james-see/scoregrid/pkg/token"
)

// SimultaneousEvents holds one part's events sharing a start time, split
// into zero-duration and sounding events.
type SimultaneousEvents struct {
	Start   rational.Rat
	Zero    []Event
	NonZero []Event
}

// Group sorts events by start time, keeping the source order of events
// that start together, and groups them.
func Group(events []Event) []SimultaneousEvents {
	sorted := append([]Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Less(sorted[j].Start) })

	var groups []SimultaneousEvents
	for _, e := range sorted {
		if n := len(groups); n == 0 || !groups[n-1].Start.Equal(e.Start) {
			groups = append(groups, SimultaneousEvents{Start: e.Start})
		}
		g := &groups[len(groups)-1]
		if e.IsZeroDuration() {
			g.Zero = append(g.Zero, e)
		} else {
			g.NonZero = append(g.NonZero, e)
		}
	}
	return groups
}

// withDummyRests adds an invisible full-measure rest for every voice of a
// staff that has no sounding event in the measure. Voice 0 of every staff
// is always considered present.
func withDummyRests(part int, staves int, m Measure) []Event {
	if !m.Duration.IsPositive() {
		return m.Events
	}
	maxVoice := make([]int, staves)
	counts := make(map[[2]int]int)
	for _, e := range m.Events {
		if e.IsZeroDuration() || e.Staff < 0 || e.Staff >= staves {
			continue
		}
		counts[[2]int{e.Staff, e.Voice}]++
		maxVoice[e.Staff] = max(maxVoice[e.Staff], e.Voice)
	}

	events := append([]Event(nil), m.Events...)
	for s := 0; s < staves; s++ {
		for v := 0; v <= maxVoice[s]; v++ {
			if counts[[2]int{s, v}] > 0 {
				continue
			}
			events = append(events, Event{
				Address:  Address{Part: part, Staff: s, Voice: v},
				Start:    m.Start,
				Duration: m.Duration,
				Payload:  token.Note{Duration: m.Duration, Invisible: true},
			})
		}
	}
	return events
}
