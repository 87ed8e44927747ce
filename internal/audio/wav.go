// Package audio provides a minimal WAV container encoder, mainly used to
// fabricate realistic synthesis payloads in tests.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeWAVPCM16LE wraps raw PCM16LE mono audio bytes in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binaryWrite(&buf, uint32(36)+dataSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binaryWrite(&buf, uint32(16))
	binaryWrite(&buf, uint16(audioFormat))
	binaryWrite(&buf, uint16(numChannels))
	binaryWrite(&buf, uint32(sampleRate))
	binaryWrite(&buf, byteRate)
	binaryWrite(&buf, blockAlign)
	binaryWrite(&buf, uint16(bitsPerSample))

	buf.WriteString("data")
	binaryWrite(&buf, dataSize)
	buf.Write(pcm)

	return buf.Bytes(), nil
}

func binaryWrite(buf *bytes.Buffer, v any) {
	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, v)
}
