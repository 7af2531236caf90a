package report

import (
	"fmt"
	"strings"
)

// maxTranscriptChars bounds the prompt size sent to the language model
const maxTranscriptChars = 35000

const systemPrompt = `You are a professional public speaking coach with expertise in emotional speech analysis.
Analyze the transcript together with the DETAILED emotion data, with emphasis on the emotional delivery.
Respond ONLY with a valid JSON object. No preamble, no prose outside the JSON.`

// emotionAnalysis summarizes the classified segments for the prompt:
// label distribution, per-label average intensity and label transitions
func emotionAnalysis(samples []EmotionSample) string {
	if len(samples) == 0 {
		return "No emotion data available."
	}

	counts := map[string]int{}
	intensity := map[string]float64{}
	order := []string{}
	for _, s := range samples {
		key := string(s.Emotion)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
		intensity[key] += s.Score
	}

	var dist strings.Builder
	for i, key := range order {
		if i > 0 {
			dist.WriteString(", ")
		}
		pct := counts[key] * 100 / len(samples)
		fmt.Fprintf(&dist, "%s: %d%%", key, pct)
	}

	var avg strings.Builder
	for i, key := range order {
		if i > 0 {
			avg.WriteString(", ")
		}
		fmt.Fprintf(&avg, "%s: %.2f", key, intensity[key]/float64(counts[key]))
	}

	transitions := 0
	seenTransitions := map[string]bool{}
	var uniqueTransitions []string
	for i := 1; i < len(samples); i++ {
		if samples[i].Emotion != samples[i-1].Emotion {
			transitions++
			key := fmt.Sprintf("%s->%s", samples[i-1].Emotion, samples[i].Emotion)
			if !seenTransitions[key] && len(uniqueTransitions) < 5 {
				seenTransitions[key] = true
				uniqueTransitions = append(uniqueTransitions, key)
			}
		}
	}

	summary := fmt.Sprintf("EMOTION DISTRIBUTION: %s\nEMOTION INTENSITY: %s\nEMOTION DYNAMICS: %d transitions.",
		dist.String(), avg.String(), transitions)
	if len(uniqueTransitions) > 0 {
		summary += " Transitions: " + strings.Join(uniqueTransitions, ", ")
	}
	return summary
}

// buildUserPrompt assembles the analysis request for the language model
func buildUserPrompt(transcript string, samples []EmotionSample) string {
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars]
	}

	return fmt.Sprintf(`TRANSCRIPT:
%q

DETAILED EMOTION ANALYSIS:
%s

Analyze the emotional background, speech quality, audience engagement, emotional variance,
structure, overall delivery, key strengths and areas for improvement.

Fill this JSON structure based on the EMOTIONAL ANALYSIS:
{
    "emotionalBackground": "string (dominant emotions and their effect on the speech)",
    "speechQuality": "Excellent/Good/Satisfactory/Poor",
    "engagement": "High/Moderate/Low",
    "emotionalVariance": "Dynamic/Moderate/Monotonous",
    "structure": "string (how emotions support the structure of the speech)",
    "overallScore": 0-100,
    "keyStrengths": ["strength 1", "strength 2"],
    "areasForImprovement": ["suggestion 1", "suggestion 2"]
}`, transcript, emotionAnalysis(samples))
}
