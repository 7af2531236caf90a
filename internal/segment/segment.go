package segment

import (
	"fmt"
	"sort"
	"strings"
)

// Segment represents a contiguous span of speech attributed to a single speaker.
// Segments are immutable once produced; later pipeline stages create new augmented
// records instead of editing in place.
type Segment struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Validate checks if the Segment has valid values
func (s *Segment) Validate() error {
	if s.Start < 0 {
		return fmt.Errorf("start cannot be negative")
	}

	if s.End < s.Start {
		return fmt.Errorf("end must not be before start")
	}

	return nil
}

// Duration returns the length of the segment in seconds
func (s *Segment) Duration() float64 {
	return s.End - s.Start
}

// Span is a raw transcribed piece of audio before speaker attribution.
// It is what the speech recognizer and the aligner exchange.
type Span struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// AnnotatedSegment is a Segment augmented with an emotion label and the
// classifier's confidence for that label.
type AnnotatedSegment struct {
	Segment
	Emotion Label   `json:"emotion"`
	Score   float64 `json:"score"`
}

// Validate checks the annotation on top of the embedded segment invariants
func (a *AnnotatedSegment) Validate() error {
	if err := a.Segment.Validate(); err != nil {
		return err
	}

	if !a.Emotion.Valid() {
		return fmt.Errorf("emotion %q is not a known label", a.Emotion)
	}

	if a.Score < 0.0 || a.Score > 1.0 {
		return fmt.Errorf("score must be between 0.0 and 1.0")
	}

	return nil
}

// PipelineResult is the outcome of one full pipeline invocation: the ordered
// annotated segments plus the flattened transcript.
type PipelineResult struct {
	Segments   []AnnotatedSegment `json:"segments"`
	Transcript string             `json:"transcript"`
}

// SortByStart orders segments by ascending start time, stable for equal starts
func SortByStart(segs []AnnotatedSegment) {
	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].Start < segs[j].Start
	})
}

// BuildTranscript flattens segments into a "speaker: text" line per segment
func BuildTranscript(segs []AnnotatedSegment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Speaker)
		b.WriteString(": ")
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatTime renders seconds as a [MM:SS] timecode for transcript lines
func FormatTime(seconds float64) string {
	minutes := int(seconds) / 60
	secs := int(seconds) % 60
	return fmt.Sprintf("[%02d:%02d]", minutes, secs)
}
