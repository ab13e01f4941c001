package command

import (
	"errors"
	"strings"
	"testing"
)

// TestErrorFormatsCommandContext verifies stage and command details in messages.
func TestErrorFormatsCommandContext(t *testing.T) {
	cause := errors.New("exit status 2")
	err := &Error{
		Stage:   "fetching",
		Message: "yt-dlp download failed",
		Log:     Log{Command: "yt-dlp", ExitCode: 2},
		Err:     cause,
	}

	got := err.Error()
	if !strings.Contains(got, "fetching: yt-dlp download failed") {
		t.Fatalf("Error() = %q", got)
	}
	if !strings.Contains(got, "cmd=yt-dlp exit=2") {
		t.Fatalf("Error() missing command context: %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to reach cause")
	}
}

// TestErrorWithoutCommand verifies the short form.
func TestErrorWithoutCommand(t *testing.T) {
	err := &Error{Stage: "transcribing", Message: "model missing"}
	if got := err.Error(); got != "transcribing: model missing" {
		t.Fatalf("Error() = %q", got)
	}

	var nilErr *Error
	if nilErr.Error() != "" || nilErr.Unwrap() != nil {
		t.Fatal("nil error should format empty")
	}
}

// TestLastLine verifies trailing JSON line extraction.
func TestLastLine(t *testing.T) {
	if got := LastLine("warn\n{\"a\":1}\n\n  "); got != `{"a":1}` {
		t.Fatalf("LastLine() = %q", got)
	}
	if got := LastLine("   "); got != "" {
		t.Fatalf("LastLine(blank) = %q", got)
	}
}
