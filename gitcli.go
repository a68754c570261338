package branchver

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CLIRepository answers repository queries by running the git binary in Dir.
//
// DecoratedTagLog uses `git log --no-walk --tags HEAD`, so entries come in
// git's order for unwalked revisions: newest commit date first.
type CLIRepository struct {
	// Dir is the working directory git runs in; empty means the process directory
	Dir string
	// GitPath is the git executable, "git" when empty
	GitPath string
}

var _ Repository = (*CLIRepository)(nil)

// NewCLIRepository returns a CLIRepository rooted at dir
func NewCLIRepository(dir string) *CLIRepository {
	return &CLIRepository{Dir: dir}
}

// CheckAccessible runs `git rev-parse --git-dir`
func (r *CLIRepository) CheckAccessible(ctx context.Context) error {
	_, err := r.run(ctx, "rev-parse", "--git-dir")
	return err
}

// CurrentBranch runs `git rev-parse --abbrev-ref HEAD`; "HEAD" means detached
func (r *CLIRepository) CurrentBranch(ctx context.Context) (Branch, error) {
	out, err := r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return Branch{}, err
	}
	if out == headMarker {
		return Branch{Detached: true}, nil
	}
	return Branch{Name: out}, nil
}

// DecoratedTagLog lists HEAD and tagged commits with their decorations
func (r *CLIRepository) DecoratedTagLog(ctx context.Context) ([]LogEntry, error) {
	out, err := r.run(ctx, "log", "--no-walk", "--no-color", "--decorate=short",
		"--pretty=format:%H%x09%D", "--tags", "HEAD")
	if err != nil {
		return nil, err
	}
	return ParseLog(out), nil
}

// CommitOf resolves a tag to its commit with `git rev-parse`
func (r *CLIRepository) CommitOf(ctx context.Context, tag string) (string, error) {
	return r.run(ctx, "rev-parse", "--verify", "refs/tags/"+tag+"^{commit}")
}

// CurrentCommit resolves HEAD with `git rev-parse`
func (r *CLIRepository) CurrentCommit(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse", "--verify", "HEAD")
}

// ParseLog parses `git log --pretty=format:%H%x09%D` output. Lines without a
// tab are treated as bare decoration strings as printed by %d.
func ParseLog(out string) []LogEntry {
	var entries []LogEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		commit, decorations, found := strings.Cut(line, "\t")
		if !found {
			commit, decorations = "", line
		}
		entries = append(entries, LogEntry{
			Commit:      strings.TrimSpace(commit),
			Decorations: ParseDecorations(decorations),
		})
	}
	return entries
}

func (r *CLIRepository) run(ctx context.Context, args ...string) (string, error) {
	gitPath := r.GitPath
	if gitPath == "" {
		gitPath = "git"
	}

	cmd := exec.CommandContext(ctx, gitPath, args...)
	cmd.Dir = r.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}
