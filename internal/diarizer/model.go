package diarizer

import (
	"context"

	"speechscope/internal/device"
)

// UnknownSpeaker is assigned to segments no diarization interval covers
const UnknownSpeaker = "Unknown"

// SpeakerInterval is a span of audio attributed to one speaker identity
type SpeakerInterval struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// DiarizationModel defines the operations needed from a speaker diarization
// engine. Credentials are whatever token the underlying model hub requires.
type DiarizationModel interface {
	Load(credentials string, dev device.Context) error
	Diarize(ctx context.Context, audioPath string) ([]SpeakerInterval, error)
	Close() error
}
