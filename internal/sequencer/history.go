package sequencer

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// ErrorHistoryName is the per-run record of failed and skipped steps.
const ErrorHistoryName = "error_history.txt"

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// BaseName returns the file base shared by every artifact of the step at 1-based number.
func BaseName(number int, name string) string {
	return fmt.Sprintf("step_%03d_%s", number, unsafeNameChars.ReplaceAllString(name, "_"))
}

func appendErrorHistory(path string, at time.Time, step, reason string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "[%s] Step: %s\nError: %s\n%s\n", at.Format("2006-01-02 15:04:05"), step, reason, strings.Repeat("=", 60))
	return err
}
