package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAVPCM16LEHeader(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x12, 0x34}, 100)
	wav, err := EncodeWAVPCM16LE(pcm, 24000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want 44-byte header + %d data bytes", len(wav), len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE magic")
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 24000 {
		t.Fatalf("sample rate = %d, want 24000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data size = %d, want %d", got, len(pcm))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Fatalf("payload bytes differ")
	}
}

func TestEncodeWAVPCM16LERejectsBadSampleRate(t *testing.T) {
	if _, err := EncodeWAVPCM16LE(nil, 0); err == nil {
		t.Fatalf("zero sample rate should be rejected")
	}
}
