package validation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandValidator runs an external checker with the control file path as its last
// argument. Exit status zero passes; otherwise every non-empty stdout line after an
// optional leading "ERROR" header is a violation.
type CommandValidator struct {
	Path string
	Args []string
}

// NewCommand returns a validator running the executable at path.
func NewCommand(path string, args ...string) *CommandValidator {
	return &CommandValidator{Path: path, Args: args}
}

// Validate implements Validator.
func (c *CommandValidator) Validate(ctx context.Context, controlFile string) ([]string, error) {
	args := append(append([]string(nil), c.Args...), controlFile)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Dir = filepath.Dir(controlFile)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("run validator %s: %w", c.Path, err)
	}

	violations := parseViolations(stdout.String())
	if len(violations) == 0 {
		msg := fmt.Sprintf("validator exited with status %d", exitErr.ExitCode())
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			msg += ": " + detail
		}
		violations = []string{msg}
	}
	return violations, nil
}

func parseViolations(output string) []string {
	var out []string
	header := true
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if header {
			header = false
			if strings.EqualFold(line, "ERROR") {
				continue
			}
		}
		out = append(out, line)
	}
	return out
}
