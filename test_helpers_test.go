package branchver

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

// testRepo is a git repository whose commits are one minute apart, so the
// decorated tag log order is deterministic.
type testRepo struct {
	t     *testing.T
	repo  *git.Repository
	wt    *git.Worktree
	clock time.Time
	n     int
}

// newTestRepo creates a new in-memory git repository for testing
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	repo, err := git.Init(memory.NewStorage(), memfs.New())
	require.NoError(t, err)
	return wrapTestRepo(t, repo)
}

// newTestRepoFS creates a new filesystem-based git repository for testing
func newTestRepoFS(t *testing.T, path string) *testRepo {
	t.Helper()
	repo, err := git.PlainInit(path, false)
	require.NoError(t, err)
	return wrapTestRepo(t, repo)
}

func wrapTestRepo(t *testing.T, repo *git.Repository) *testRepo {
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &testRepo{
		t:     t,
		repo:  repo,
		wt:    wt,
		clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *testRepo) signature() *object.Signature {
	return &object.Signature{Name: "test", Email: "test@example.com", When: r.clock}
}

// commit adds a file and commits it, returning the commit hash
func (r *testRepo) commit(msg string) plumbing.Hash {
	r.t.Helper()
	r.n++
	r.clock = r.clock.Add(time.Minute)

	filename := "file_" + strconv.Itoa(r.n) + ".txt"
	require.NoError(r.t, writeFile(r.wt.Filesystem, filename, msg))
	_, err := r.wt.Add(filename)
	require.NoError(r.t, err)

	hash, err := r.wt.Commit(msg, &git.CommitOptions{Author: r.signature()})
	require.NoError(r.t, err)
	return hash
}

// tag creates a lightweight tag
func (r *testRepo) tag(name string, hash plumbing.Hash) {
	r.t.Helper()
	_, err := r.repo.CreateTag(name, hash, nil)
	require.NoError(r.t, err)
}

// annotatedTag creates an annotated tag object
func (r *testRepo) annotatedTag(name string, hash plumbing.Hash) {
	r.t.Helper()
	_, err := r.repo.CreateTag(name, hash, &git.CreateTagOptions{
		Tagger:  r.signature(),
		Message: "Release " + name,
	})
	require.NoError(r.t, err)
}

// branch creates and checks out a branch at HEAD
func (r *testRepo) branch(name string) {
	r.t.Helper()
	require.NoError(r.t, r.wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	}))
}

// detach checks out hash with a detached HEAD
func (r *testRepo) detach(hash plumbing.Hash) {
	r.t.Helper()
	require.NoError(r.t, r.wt.Checkout(&git.CheckoutOptions{Hash: hash}))
}

// writeFile writes content to a file in the given filesystem
func writeFile(fs billy.Filesystem, filename, content string) error {
	file, err := fs.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.Write([]byte(content))
	return err
}

// fakeRepository replays scripted answers and records the queries it gets
type fakeRepository struct {
	accessErr error
	branch    Branch
	branchErr error
	log       []LogEntry
	logErr    error
	tags      map[string]string
	tagErr    error
	head      string

	mu    sync.Mutex
	calls []string
}

var _ Repository = (*fakeRepository)(nil)

func (f *fakeRepository) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRepository) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRepository) CheckAccessible(ctx context.Context) error {
	f.record("CheckAccessible")
	return f.accessErr
}

func (f *fakeRepository) CurrentBranch(ctx context.Context) (Branch, error) {
	f.record("CurrentBranch")
	return f.branch, f.branchErr
}

func (f *fakeRepository) DecoratedTagLog(ctx context.Context) ([]LogEntry, error) {
	f.record("DecoratedTagLog")
	return f.log, f.logErr
}

func (f *fakeRepository) CommitOf(ctx context.Context, tag string) (string, error) {
	f.record("CommitOf " + tag)
	if f.tagErr != nil {
		return "", f.tagErr
	}
	return f.tags[tag], nil
}

func (f *fakeRepository) CurrentCommit(ctx context.Context) (string, error) {
	f.record("CurrentCommit")
	return f.head, nil
}

// entry builds a log entry from a %D style decoration string
func entry(commit, decorations string) LogEntry {
	return LogEntry{Commit: commit, Decorations: ParseDecorations(decorations)}
}
