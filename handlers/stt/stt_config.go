package stt

import "voiceagent/core"

type STTConfig struct {
	SupportedMimeTypes []string `json:"supported_mime_types"` // Containers accepted for upload. Anything else is rejected before any upstream call.
	TimeoutMs          int      `json:"timeout_ms"`           // Per-provider bound on a single transcription request.
	ULawSampleRate     int      `json:"ulaw_sample_rate"`     // Sample rate assumed for raw G.711 μ-law uploads, which carry no header.
}

// DefaultConfig returns an STTConfig with sensible defaults.
func DefaultConfig() STTConfig {
	return STTConfig{
		SupportedMimeTypes: []string{
			core.MimeWAV,
			core.MimeWebM,
			core.MimeOgg,
			core.MimeMP3,
			core.MimeMP4,
			core.MimeFLAC,
			core.MimeULaw,
		},
		TimeoutMs:      30000,
		ULawSampleRate: 8000,
	}
}
