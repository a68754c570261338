// Package hook runs a command after the version has been computed, with the
// result exported in its environment.
package hook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"
	"github.com/google/shlex"

	"github.com/jaxxstorm/branchver"
)

// ErrEmptyCommand is returned when the command has no words after splitting.
var ErrEmptyCommand = errors.New("empty command")

// Env returns the variables exported to the command.
func Env(result *branchver.Result) []string {
	return []string{
		"VERSION=" + result.Version,
		"BRANCH_NAME=" + result.BranchName,
		"BRANCH_PREFIX=" + result.BranchPrefix,
		"BRANCH_VERSION=" + result.BranchVersion,
		"LAST_MATCHING_VERSION=" + result.LastMatchingVersion,
	}
}

// Run splits command with shell quoting rules and executes it in dir. The
// command inherits the process environment plus Env(result). No shell is
// involved, so pipes and expansions are not interpreted.
func Run(ctx context.Context, command, dir string, result *branchver.Result, stdout, stderr io.Writer) error {
	args, err := shlex.Split(command)
	if err != nil {
		return fmt.Errorf("splitting command %q: %w", command, err)
	}
	if len(args) == 0 {
		return ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), Env(result)...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.FromContext(ctx).Debug("hook_started", "command", args[0], "args", len(args)-1)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %q: %w", args[0], err)
	}
	return nil
}
