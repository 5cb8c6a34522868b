package git

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"gitlab.com/k00mi/lfs-pack/internal/command"
)

// Command creates a git command running in the repository at dir.
func Command(ctx context.Context, dir string, args ...string) (*command.Command, error) {
	cmd := exec.Command(command.GitPath(), args...)
	cmd.Dir = dir

	return command.New(ctx, cmd, nil, nil, nil, command.GitEnv...)
}

// Run creates a git command and waits for it to complete.
func Run(ctx context.Context, dir string, args ...string) error {
	cmd, err := Command(ctx, dir, args...)
	if err != nil {
		return err
	}

	return cmd.Wait()
}

// Output runs a git command and returns its trimmed stdout.
func Output(ctx context.Context, dir string, args ...string) (string, error) {
	var buf bytes.Buffer

	cmd := exec.Command(command.GitPath(), args...)
	cmd.Dir = dir

	c, err := command.New(ctx, cmd, nil, &buf, nil, command.GitEnv...)
	if err != nil {
		return "", err
	}

	if err := c.Wait(); err != nil {
		return "", err
	}

	return strings.TrimSpace(buf.String()), nil
}
