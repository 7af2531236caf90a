package report

import "speechscope/internal/segment"

// EmotionSample is one classified segment's contribution to the report input
type EmotionSample struct {
	Emotion segment.Label `json:"emotion"`
	Score   float64       `json:"score"`
}

// Report is the structured coaching report produced by the language model
type Report struct {
	EmotionalBackground string   `json:"emotionalBackground"`
	SpeechQuality       string   `json:"speechQuality"`
	Engagement          string   `json:"engagement"`
	EmotionalVariance   string   `json:"emotionalVariance"`
	Structure           string   `json:"structure"`
	OverallScore        int      `json:"overallScore"`
	KeyStrengths        []string `json:"keyStrengths"`
	AreasForImprovement []string `json:"areasForImprovement"`
}

// StubReport is the well-defined degraded report returned when generation
// fails for any reason. It is never an error: the transcript and emotion data
// are still valuable without the narrative.
func StubReport() *Report {
	return &Report{
		EmotionalBackground: "Report generation is unavailable.",
		SpeechQuality:       "Satisfactory",
		Engagement:          "Low",
		EmotionalVariance:   "Moderate",
		Structure:           "Could not be generated.",
		OverallScore:        0,
		KeyStrengths:        []string{"Analysis completed locally"},
		AreasForImprovement: []string{"Check that the report model service is running"},
	}
}
