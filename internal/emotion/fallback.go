package emotion

import "speechscope/internal/segment"

// FallbackReason tags why a segment received the default annotation instead
// of a real classification. Tests assert on the reason, not just the default.
type FallbackReason string

const (
	FallbackNone         FallbackReason = ""
	FallbackZeroDuration FallbackReason = "zero_duration"
	FallbackAudioExtract FallbackReason = "audio_extract"
	FallbackEncoder      FallbackReason = "encoder"
	FallbackClassifier   FallbackReason = "classifier"
)

// Annotation is the typed result of classifying one segment
type Annotation struct {
	Label    segment.Label
	Score    float64
	Fallback FallbackReason
}

// IsFallback reports whether the annotation is the degraded default
func (a Annotation) IsFallback() bool {
	return a.Fallback != FallbackNone
}

// fallback builds the fixed default annotation for the given reason
func fallback(reason FallbackReason) Annotation {
	return Annotation{
		Label:    segment.LabelNeutral,
		Score:    segment.FallbackScore,
		Fallback: reason,
	}
}
