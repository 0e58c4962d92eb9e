package audio

import (
	"bytes"
	"strings"

	"voiceagent/core"
)

var mimeAliases = map[string]string{
	"audio/x-wav":    core.MimeWAV,
	"audio/wave":     core.MimeWAV,
	"audio/vnd.wave": core.MimeWAV,
	"audio/mp3":      core.MimeMP3,
	"audio/mpeg3":    core.MimeMP3,
	"video/webm":     core.MimeWebM,
	"audio/x-m4a":    core.MimeMP4,
	"audio/m4a":      core.MimeMP4,
	"audio/x-flac":   core.MimeFLAC,
	"audio/opus":     core.MimeOgg,
	"audio/x-mulaw":  core.MimeULaw,
	"audio/pcmu":     core.MimeULaw,
}

// NormalizeMimeType lowercases, drops parameters (";codecs=opus") and folds
// common aliases onto one canonical name.
func NormalizeMimeType(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if canonical, ok := mimeAliases[mime]; ok {
		return canonical
	}
	return mime
}

// DetectMimeType sniffs the container from magic bytes. Returns "" when unknown.
func DetectMimeType(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return core.MimeWAV
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return core.MimeWebM
	case bytes.HasPrefix(data, []byte("OggS")):
		return core.MimeOgg
	case bytes.HasPrefix(data, []byte("fLaC")):
		return core.MimeFLAC
	case bytes.HasPrefix(data, []byte("ID3")):
		return core.MimeMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return core.MimeMP3
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return core.MimeMP4
	}
	return ""
}

// ResolveMimeType trusts a specific declared type and sniffs otherwise.
func ResolveMimeType(declared string, data []byte) string {
	mime := NormalizeMimeType(declared)
	if mime == "" || mime == "application/octet-stream" {
		if sniffed := DetectMimeType(data); sniffed != "" {
			return sniffed
		}
	}
	return mime
}

// Extension returns a filename extension for mime, used when providers
// infer the format from an upload name.
func Extension(mime string) string {
	switch NormalizeMimeType(mime) {
	case core.MimeWAV:
		return ".wav"
	case core.MimeWebM:
		return ".webm"
	case core.MimeOgg:
		return ".ogg"
	case core.MimeMP3:
		return ".mp3"
	case core.MimeMP4:
		return ".m4a"
	case core.MimeFLAC:
		return ".flac"
	}
	return ".bin"
}
