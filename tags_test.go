package branchver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDecorations(t *testing.T) {
	require.Equal(t,
		[]string{"HEAD -> 1.2", "tag: v1.2.3", "origin/1.2"},
		ParseDecorations(" (HEAD -> 1.2, tag: v1.2.3, origin/1.2)"))
	require.Equal(t, []string{"tag: 1.2.0"}, ParseDecorations("tag: 1.2.0"))
	require.Nil(t, ParseDecorations(""))
	require.Nil(t, ParseDecorations("  "))
}

func TestLogEntry(t *testing.T) {
	t.Run("Branch HEAD with tags", func(t *testing.T) {
		e := entry("a", "HEAD -> 1.2, tag: v1.2.3, tag: v1.2.3-rc.1, origin/1.2")
		require.True(t, e.IsHead())
		require.Equal(t, []string{"v1.2.3", "v1.2.3-rc.1"}, e.Tags())
	})

	t.Run("Detached HEAD", func(t *testing.T) {
		require.True(t, entry("a", "HEAD").IsHead())
	})

	t.Run("Remote HEAD is not HEAD", func(t *testing.T) {
		e := entry("a", "origin/HEAD, tag: 1.0.0")
		require.False(t, e.IsHead())
		require.Equal(t, []string{"1.0.0"}, e.Tags())
	})

	t.Run("Full ref names", func(t *testing.T) {
		e := entry("a", "HEAD -> refs/heads/1.2, tag: refs/tags/1.2.3")
		require.True(t, e.IsHead())
		require.Equal(t, []string{"1.2.3"}, e.Tags())
	})
}

func TestTrimAfterHead(t *testing.T) {
	newer := entry("c", "tag: 1.2.9")
	head := entry("b", "HEAD -> 1.2")
	older := entry("a", "tag: 1.2.3")
	oldest := entry("0", "tag: 1.1.0")

	t.Run("Entries before HEAD are dropped", func(t *testing.T) {
		got := TrimAfterHead([]LogEntry{newer, head, older, oldest})
		require.Equal(t, []LogEntry{head, older, oldest}, got)
	})

	t.Run("HEAD first keeps everything", func(t *testing.T) {
		all := []LogEntry{head, older, oldest}
		require.Equal(t, all, TrimAfterHead(all))
	})

	t.Run("No HEAD keeps everything", func(t *testing.T) {
		all := []LogEntry{newer, older}
		require.Equal(t, all, TrimAfterHead(all))
	})

	t.Run("Empty", func(t *testing.T) {
		require.Empty(t, TrimAfterHead(nil))
	})
}

func TestScanTags(t *testing.T) {
	ctx := context.Background()
	branch := BranchInfo{Name: "1.2", Version: "1.2"}

	t.Run("First match in log order wins", func(t *testing.T) {
		repo := &fakeRepository{
			log: []LogEntry{
				entry("c3", "HEAD -> 1.2"),
				entry("c2", "tag: 1.2.3"),
				entry("c1", "tag: 1.2.5"),
			},
			tags: map[string]string{"1.2.3": "c2", "1.2.5": "c1"},
			head: "c3",
		}
		match, err := ScanTags(ctx, repo, branch, "")
		require.NoError(t, err)
		require.Equal(t, TagMatch{Tag: "1.2.3", Version: "1.2.3"}, match)
	})

	t.Run("Tags on commits beyond HEAD are ignored", func(t *testing.T) {
		repo := &fakeRepository{
			log: []LogEntry{
				entry("c3", "tag: 1.2.4"),
				entry("c2", "HEAD, tag: 1.2.3"),
			},
			tags: map[string]string{"1.2.3": "c2", "1.2.4": "c3"},
			head: "c2",
		}
		match, err := ScanTags(ctx, repo, branch, "")
		require.NoError(t, err)
		require.Equal(t, "1.2.3", match.Version)
		require.True(t, match.OnCurrentCommit)
	})

	t.Run("Tag prefix is stripped case-insensitively", func(t *testing.T) {
		repo := &fakeRepository{
			log:  []LogEntry{entry("c1", "HEAD -> 1.2, tag: V1.2.3-alpha.2")},
			tags: map[string]string{"V1.2.3-alpha.2": "c1"},
			head: "c1",
		}
		match, err := ScanTags(ctx, repo, branch, "v")
		require.NoError(t, err)
		require.Equal(t, "V1.2.3-alpha.2", match.Tag)
		require.Equal(t, "1.2.3-alpha.2", match.Version)
		require.True(t, match.OnCurrentCommit)
	})

	t.Run("Tag prefix alternation", func(t *testing.T) {
		repo := &fakeRepository{
			log:  []LogEntry{entry("c1", "tag: sdk/1.2.7")},
			tags: map[string]string{"sdk/1.2.7": "c1"},
			head: "c2",
		}
		match, err := ScanTags(ctx, repo, branch, "v|sdk/")
		require.NoError(t, err)
		require.Equal(t, "1.2.7", match.Version)
		require.False(t, match.OnCurrentCommit)
	})

	t.Run("Other lines do not match", func(t *testing.T) {
		repo := &fakeRepository{
			log: []LogEntry{
				entry("c3", "HEAD -> 1.2, tag: 1.20.1"),
				entry("c2", "tag: 1x2.0, tag: 11.2.0"),
				entry("c1", "tag: v1.2.0"),
			},
			head: "c3",
		}
		match, err := ScanTags(ctx, repo, branch, "")
		require.NoError(t, err)
		require.Equal(t, TagMatch{Version: "1.2.0", Synthesized: true}, match)
		require.Equal(t, []string{"DecoratedTagLog"}, repo.Calls())
	})

	t.Run("Empty log synthesizes a baseline", func(t *testing.T) {
		repo := &fakeRepository{}
		match, err := ScanTags(ctx, repo, BranchInfo{Name: "release/3.4", Prefix: "release", Version: "3.4"}, "")
		require.NoError(t, err)
		require.True(t, match.Synthesized)
		require.False(t, match.OnCurrentCommit)
		require.Equal(t, "3.4.0", match.Version)
	})

	t.Run("Both commits are looked up once", func(t *testing.T) {
		repo := &fakeRepository{
			log:  []LogEntry{entry("c1", "HEAD -> 1.2, tag: 1.2.3, tag: 1.2.2")},
			tags: map[string]string{"1.2.3": "c1", "1.2.2": "c1"},
			head: "c1",
		}
		_, err := ScanTags(ctx, repo, branch, "")
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"DecoratedTagLog", "CommitOf 1.2.3", "CurrentCommit"}, repo.Calls())
	})

	t.Run("Log failure", func(t *testing.T) {
		repo := &fakeRepository{logErr: errors.New("no log")}
		_, err := ScanTags(ctx, repo, branch, "")
		require.True(t, IsKind(err, KindRepository))
	})

	t.Run("Commit lookup failure", func(t *testing.T) {
		cause := errors.New("bad tag")
		repo := &fakeRepository{
			log:    []LogEntry{entry("c1", "tag: 1.2.3")},
			tagErr: cause,
		}
		_, err := ScanTags(ctx, repo, branch, "")
		require.ErrorIs(t, err, cause)
		require.True(t, IsKind(err, KindRepository))
	})

	t.Run("Invalid tag prefix", func(t *testing.T) {
		_, err := ScanTags(ctx, &fakeRepository{}, branch, "(")
		require.True(t, IsKind(err, KindConfiguration))
	})
}
