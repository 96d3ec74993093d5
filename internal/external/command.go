package external

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// toolCommand is an external program plus its fixed arguments, parsed from
// a command line such as "perl /opt/uroman/bin/uroman.pl".
type toolCommand struct {
	path string
	args []string
}

func parseToolCommand(cmdline string) (toolCommand, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return toolCommand{}, fmt.Errorf("%w: empty command", ErrToolUnavailable)
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		return toolCommand{}, fmt.Errorf("%w: %s: %v", ErrToolUnavailable, fields[0], err)
	}
	return toolCommand{path: path, args: fields[1:]}, nil
}

// run executes the command and returns its stdout. stderr is captured and
// attached to the error when the command fails.
func (c toolCommand) run(ctx context.Context, stdin io.Reader, extraArgs ...string) ([]byte, error) {
	args := append(append([]string{}, c.args...), extraArgs...)
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[:512] + "..."
		}
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrToolUnavailable, c.path, err, msg)
	}
	return stdout.Bytes(), nil
}

// splitLines splits tool output into lines, dropping the final newline
func splitLines(out []byte) []string {
	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
