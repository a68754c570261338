package branchver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitRepository answers repository queries with go-git, without a git binary.
type GitRepository struct {
	// go-git repositories are not safe for concurrent use
	mu   sync.Mutex
	repo *git.Repository
}

var _ Repository = (*GitRepository)(nil)

// NewGitRepository wraps an already opened go-git repository
func NewGitRepository(repo *git.Repository) *GitRepository {
	return &GitRepository{repo: repo}
}

// OpenRepository opens a Git repository at the specified path
func OpenRepository(path string) (*GitRepository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, wrapError("branchver.OpenRepository", KindRepository, err, "opening repository at %q", path)
	}
	return NewGitRepository(repo), nil
}

// CheckAccessible verifies HEAD resolves to a commit
func (r *GitRepository) CheckAccessible(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD: %w", err)
	}
	if _, err := r.repo.CommitObject(head.Hash()); err != nil {
		return fmt.Errorf("getting HEAD commit: %w", err)
	}
	return nil
}

// CurrentBranch reports the checked out branch, or Detached when HEAD is not on one
func (r *GitRepository) CurrentBranch(ctx context.Context) (Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.repo.Head()
	if err != nil {
		return Branch{}, fmt.Errorf("resolving HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return Branch{Detached: true}, nil
	}
	return Branch{Name: head.Name().Short()}, nil
}

// DecoratedTagLog returns the HEAD commit and every tagged commit, one entry
// per commit, newest committer time first. Commits with equal times keep HEAD
// first, then tag name order. Tags on one commit are listed in name order.
// Tags that do not resolve to a commit are skipped, as git log does.
//
// The tie order differs from `git log --no-walk`, which may list a tagged
// commit before HEAD when both have the same committer time.
func (r *GitRepository) DecoratedTagLog(ctx context.Context) ([]LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	type decorated struct {
		commit *object.Commit
		refs   []string
	}
	byHash := map[plumbing.Hash]*decorated{}
	var order []*decorated

	add := func(hash plumbing.Hash, decoration string) error {
		d, ok := byHash[hash]
		if !ok {
			commit, err := r.repo.CommitObject(hash)
			if err != nil {
				return fmt.Errorf("getting commit object %s: %w", hash, err)
			}
			d = &decorated{commit: commit}
			byHash[hash] = d
			order = append(order, d)
		}
		d.refs = append(d.refs, decoration)
		return nil
	}

	headDecoration := headMarker
	if head.Name().IsBranch() {
		headDecoration = headMarker + " -> " + head.Name().Short()
	}
	if err := add(head.Hash(), headDecoration); err != nil {
		return nil, err
	}

	iter, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	var refs []*plumbing.Reference
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() == plumbing.HashReference {
			refs = append(refs, ref)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Name().Short() < refs[j].Name().Short()
	})

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hash, err := r.peel(ref)
		if err == nil {
			err = add(hash, tagMarker+ref.Name().Short())
		}
		if errors.Is(err, object.ErrUnsupportedObject) || errors.Is(err, plumbing.ErrObjectNotFound) {
			// Tags on trees or blobs are not part of the commit log
			log.FromContext(ctx).Debug("tag_skipped", "tag", ref.Name().Short(), "reason", err)
			continue
		}
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].commit.Committer.When.After(order[j].commit.Committer.When)
	})

	entries := make([]LogEntry, 0, len(order))
	for _, d := range order {
		entries = append(entries, LogEntry{Commit: d.commit.Hash.String(), Decorations: d.refs})
	}
	return entries, nil
}

// CommitOf returns the commit hash a tag points at
func (r *GitRepository) CommitOf(ctx context.Context, tag string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, err := r.repo.Tag(tag)
	if err != nil {
		return "", fmt.Errorf("getting tag %q: %w", tag, err)
	}
	hash, err := r.peel(ref)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// CurrentCommit returns the commit hash of HEAD
func (r *GitRepository) CurrentCommit(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// peel resolves a tag reference to the commit it names
func (r *GitRepository) peel(ref *plumbing.Reference) (plumbing.Hash, error) {
	obj, err := r.repo.TagObject(ref.Hash())
	switch err {
	case nil:
		// Annotated tag
		commit, err := obj.Commit()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("getting commit of tag %q: %w", ref.Name().Short(), err)
		}
		return commit.Hash, nil
	case plumbing.ErrObjectNotFound:
		// Lightweight tag
		return ref.Hash(), nil
	default:
		return plumbing.ZeroHash, fmt.Errorf("getting tag object %q: %w", ref.Name().Short(), err)
	}
}
