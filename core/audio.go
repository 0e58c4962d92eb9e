package core

// MinAudioBytes is the smallest upload accepted as a recording. Anything
// shorter is treated as an accidental tap.
const MinAudioBytes = 1000

const (
	MimeWAV  = "audio/wav"
	MimeWebM = "audio/webm"
	MimeOgg  = "audio/ogg"
	MimeMP3  = "audio/mpeg"
	MimeMP4  = "audio/mp4"
	MimeFLAC = "audio/flac"
	MimeULaw = "audio/basic"
)

// AudioPayload is a recorded user utterance as uploaded by a client.
type AudioPayload struct {
	Data     []byte
	MimeType string
	Filename string
}

// Len returns the payload size in bytes.
func (p AudioPayload) Len() int {
	return len(p.Data)
}

// AudioRef points at playable audio. URL is either hosted by a provider or
// served locally from the audio store.
type AudioRef struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	// Fallback marks the pre-synthesized apology clip.
	Fallback bool `json:"fallback,omitempty"`
}

// SynthesizedAudio is what a speech provider hands back: either raw bytes
// to be stored locally or a URL it hosts itself.
type SynthesizedAudio struct {
	Data     []byte
	URL      string
	MimeType string
}
