package diarizer

import (
	"speechscope/internal/segment"
)

// AssignSpeakers merges diarization intervals with aligned spans by temporal
// overlap. Each span gets the speaker whose interval overlaps it the most;
// spans no interval touches get UnknownSpeaker. The input spans are not
// mutated; a new segment list is returned in the same order.
func AssignSpeakers(intervals []SpeakerInterval, spans []segment.Span) []segment.Segment {
	out := make([]segment.Segment, 0, len(spans))

	for _, sp := range spans {
		speaker := UnknownSpeaker
		best := 0.0

		for _, iv := range intervals {
			if ov := overlap(sp.Start, sp.End, iv.Start, iv.End); ov > best {
				best = ov
				speaker = iv.Speaker
			}
		}

		out = append(out, segment.Segment{
			Speaker: speaker,
			Text:    sp.Text,
			Start:   sp.Start,
			End:     sp.End,
		})
	}

	return out
}

// overlap returns the length of the intersection of [aStart, aEnd] and
// [bStart, bEnd]. A zero-duration span inside an interval still counts as
// covered, reported as a tiny positive epsilon so it beats "no overlap".
func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	lo := aStart
	if bStart > lo {
		lo = bStart
	}
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	if hi < lo {
		return 0
	}
	if hi == lo {
		if aStart == aEnd && bStart <= aStart && aStart <= bEnd {
			return 1e-9
		}
		return 0
	}
	return hi - lo
}
