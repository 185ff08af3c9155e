package cdc

import (
	"bytes"
	"testing"
)

func TestPayloadBytes(t *testing.T) {
	raw := []byte{0x0a, 'G', 'r', 'a', 'n', 'd', 0x00}

	tests := []struct {
		name string
		p    Payload
	}{
		{"raw", Raw(raw)},
		{"padded base64", Base64("CkdyYW5kAA==")},
		{"unpadded base64", Base64("CkdyYW5kAA")},
		{"base64 bytes", Base64Bytes([]byte("CkdyYW5kAA=="))},
		{"from encoding", NewPayload([]byte("CkdyYW5kAA=="), EncodingBase64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.p.Bytes()
			if err != nil {
				t.Fatalf("Bytes() error = %v", err)
			}
			if !bytes.Equal(got, raw) {
				t.Errorf("Bytes() = %x, want %x", got, raw)
			}
		})
	}
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"", EncodingRaw, false},
		{"raw", EncodingRaw, false},
		{"base64", EncodingBase64, false},
		{"hex", EncodingRaw, true},
	}
	for _, tt := range tests {
		got, err := ParseEncoding(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEncoding(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseEncoding(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
