package audio

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/zaf/g711"
)

// WAVInfo describes the fmt chunk of a PCM WAV file.
type WAVInfo struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// PCMBytesToWavBytes wraps 16-bit little endian PCM into a WAV container.
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("PCM data is empty")
	}
	if numChannels <= 0 || numChannels > 2 {
		return nil, errors.New("only mono (1) or stereo (2) channels supported")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return nil, errors.New("PCM data length doesn't match channel count")
	}

	const (
		bitsPerSample  = 16
		audioFormatPCM = 1
		subchunk1Size  = 16
	)

	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(subchunk1Size))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// ULawToWav decodes G.711 μ-law mono audio into a 16-bit PCM WAV file.
func ULawToWav(ulaw []byte, sampleRate int) ([]byte, error) {
	if len(ulaw) == 0 {
		return nil, errors.New("μ-law data is empty")
	}
	return PCMBytesToWavBytes(g711.DecodeUlaw(ulaw), 1, sampleRate)
}

// ParseWAV returns the PCM payload of a WAV file together with its format.
// Only the "fmt " and "data" chunks are read; others are skipped.
func ParseWAV(data []byte) ([]byte, WAVInfo, error) {
	var info WAVInfo
	if len(data) < 12 || !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, info, errors.New("invalid WAV: missing RIFF/WAVE header")
	}

	i := 12
	for i+8 <= len(data) {
		chunkID := string(data[i : i+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[i+4 : i+8]))
		body := i + 8
		next := body + chunkSize

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || next > len(data) {
				return nil, info, errors.New("invalid WAV: short fmt chunk")
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			if next > len(data) {
				return nil, info, errors.New("invalid WAV: data chunk exceeds buffer length")
			}
			if info.SampleRate == 0 {
				return nil, info, errors.New("invalid WAV: data before fmt chunk")
			}
			return data[body:next], info, nil
		}

		// Chunks are padded to an even boundary.
		if chunkSize%2 != 0 {
			next++
		}
		i = next
	}
	return nil, info, errors.New("invalid WAV: data chunk not found")
}
