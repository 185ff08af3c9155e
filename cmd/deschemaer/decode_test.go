package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{
			name: "example message",
			args: []string{"decode", "--key", "CkdyYW5kAA==", "--value", "AhRHcmVhdCBzdGF5AAIBAgo="},
			want: `{"hotel":"Grand","id":null,"body":"Great stay","reviewer":null,"is_valid":true,"score":5}`,
		},
		{
			name:    "missing value",
			args:    []string{"decode", "--key", "CkdyYW5kAA==", "--value", ""},
			wantErr: true,
		},
		{
			name:    "trailing byte rejected",
			args:    []string{"decode", "--key", "CkdyYW5kAA==", "--value", "AhRHcmVhdCBzdGF5AAIBAgoA"},
			wantErr: true,
		},
		{
			name: "trailing byte ignored",
			args: []string{"decode", "--key", "CkdyYW5kAA==", "--value", "AhRHcmVhdCBzdGF5AAIBAgoA", "--allow-trailing"},
			want: `{"hotel":"Grand","id":null,"body":"Great stay","reviewer":null,"is_valid":true,"score":5}`,
		},
		{
			name:    "truncated value",
			args:    []string{"decode", "--key", "CkdyYW5kAA==", "--value", "Ag=="},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetArgs(tt.args)
			decodeFramed = false
			decodeTrailing = false

			err := rootCmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && strings.TrimSpace(out.String()) != tt.want {
				t.Errorf("output = %s, want %s", out.String(), tt.want)
			}
		})
	}
}
