package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{
			name:     "silent success",
			err:      cli.Exit("", 0),
			wantCode: 0,
		},
		{
			name:     "build failed without message",
			err:      cli.Exit("", 1),
			wantCode: 1,
		},
		{
			name:     "device not found with message",
			err:      cli.Exit("serial device /dev/ttyUSB9 not found", 3),
			wantCode: 3,
			wantOut:  "serial device /dev/ttyUSB9 not found\n",
		},
		{
			name:     "cancelled",
			err:      cli.Exit("", 130),
			wantCode: 130,
		},
		{
			name:     "wrapped exit coder",
			err:      errors.Join(errors.New("context"), cli.Exit("", 6)),
			wantCode: 6,
		},
		{
			name:     "regular error",
			err:      errors.New("boom"),
			wantCode: 1,
			wantOut:  "Error: boom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if got := exitCode(&out, tt.err); got != tt.wantCode {
				t.Errorf("exitCode() = %d, want %d", got, tt.wantCode)
			}
			if out.String() != tt.wantOut {
				t.Errorf("output = %q, want %q", out.String(), tt.wantOut)
			}
		})
	}
}

// TestExitCode_MessageSuppression verifies "exit status N" is not echoed.
func TestExitCode_MessageSuppression(t *testing.T) {
	var out bytes.Buffer
	exitCode(&out, cli.Exit("exit status 4", 4))
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty", out.String())
	}
}
