package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WAVFormat is the subset of the fmt chunk the pipeline checks.
type WAVFormat struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataSize      int
}

// ParseWAVHeader walks the RIFF chunks of a WAV buffer and returns its format.
// It fails when the buffer is not RIFF/WAVE or has no fmt or data chunk.
func ParseWAVHeader(data []byte) (*WAVFormat, error) {
	if len(data) < 12 {
		return nil, errors.New("wav: buffer too short")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errors.New("wav: missing RIFF/WAVE header")
	}

	var (
		f       WAVFormat
		haveFmt bool
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return nil, errors.New("wav: truncated fmt chunk")
			}
			f.AudioFormat = binary.LittleEndian.Uint16(data[body:])
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, errors.New("wav: data chunk before fmt chunk")
			}
			// streamed output may carry a placeholder size
			avail := len(data) - body
			if size == 0 || size > avail {
				size = avail
			}
			f.DataSize = size
			return &f, nil
		}

		// chunks are word aligned
		next := body + size + size%2
		if next <= off {
			break
		}
		off = next
	}
	if !haveFmt {
		return nil, errors.New("wav: no fmt chunk")
	}
	return nil, errors.New("wav: no data chunk")
}

// CheckWAV verifies that data is a non-empty WAV with the expected rate and channel count.
func CheckWAV(data []byte, sampleRate, channels int) error {
	f, err := ParseWAVHeader(data)
	if err != nil {
		return err
	}
	if f.SampleRate != sampleRate || f.Channels != channels {
		return fmt.Errorf("wav: got %d Hz/%d ch, want %d Hz/%d ch", f.SampleRate, f.Channels, sampleRate, channels)
	}
	if f.DataSize == 0 {
		return errors.New("wav: no samples")
	}
	return nil
}
