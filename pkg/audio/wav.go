package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// ReadWAVFile reads a RIFF/WAV file containing 16-bit signed little-endian
// PCM and returns it as a mono Clip. Multi-channel input is down-mixed by
// averaging all channels per frame. Only uncompressed PCM is supported; the
// media extraction step always produces that format.
func ReadWAVFile(path string) (Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, err
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, errors.New("not a RIFF/WAVE file")
	}

	var (
		sampleRate int
		channels   int
		bits       int
		pcm        []byte
	)

	// Walk the chunk list; RIFF says fmt precedes data, but we only require
	// that both are present.
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body // tolerate truncated final chunk
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return Clip{}, errors.New("wav: fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return Clip{}, fmt.Errorf("wav: unsupported format %d (only PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if sampleRate <= 0 || channels <= 0 {
		return Clip{}, errors.New("wav: missing fmt chunk")
	}
	if bits != 16 {
		return Clip{}, fmt.Errorf("wav: unsupported bit depth %d (only 16)", bits)
	}
	if pcm == nil {
		return Clip{}, errors.New("wav: missing data chunk")
	}

	return Clip{
		Samples: pcmToFloat32Mono(pcm, channels),
		Rate:    sampleRate,
	}, nil
}

// pcmToFloat32Mono converts 16-bit signed little-endian PCM to mono float32
// samples normalised to [-1.0, 1.0], averaging all channels per frame. Any
// trailing partial frame is ignored.
func pcmToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float32(sample) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
