package branchver

import (
	"context"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const (
	headMarker = "HEAD"
	tagMarker  = "tag: "
)

// ParseDecorations splits a git decoration string as printed by %d or %D,
// e.g. " (HEAD -> 1.2, tag: v1.2.3, origin/1.2)", into its ref tokens.
func ParseDecorations(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "(")
	raw = strings.TrimSuffix(raw, ")")

	var refs []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			refs = append(refs, part)
		}
	}
	return refs
}

// IsHead reports whether the entry is the commit HEAD points at.
func (e LogEntry) IsHead() bool {
	for _, d := range e.Decorations {
		if d == headMarker || strings.HasPrefix(d, headMarker+" -> ") {
			return true
		}
	}
	return false
}

// Tags returns the tag names decorating the entry, in decoration order.
func (e LogEntry) Tags() []string {
	var tags []string
	for _, d := range e.Decorations {
		if !strings.HasPrefix(d, tagMarker) {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(d, tagMarker))
		name = strings.TrimPrefix(name, "refs/tags/")
		if name != "" {
			tags = append(tags, name)
		}
	}
	return tags
}

// TrimAfterHead drops every entry that the log lists before the HEAD entry.
// Those are commits beyond HEAD, so their tags can not describe it. The HEAD
// entry itself is kept. Without a HEAD entry the log is returned unchanged.
func TrimAfterHead(entries []LogEntry) []LogEntry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].IsHead() {
			return entries[i:]
		}
	}
	return entries
}

// tagPattern matches tagPrefix followed by the branch version and an
// optional ".anything" tail. The version is captured as "version".
func tagPattern(tagPrefix, branchVersion string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)^(?:` + tagPrefix + `)(?P<version>` +
		regexp.QuoteMeta(branchVersion) + `(?:\..*)?)$`)
}

// ScanTags finds the tag describing the branch version.
//
// Tags are tested in the order the repository's decorated tag log returns
// them and the first match wins; tags are not ranked by version. When no tag
// matches, branch.Version + ".0" is synthesized.
func ScanTags(ctx context.Context, repo Repository, branch BranchInfo, tagPrefix string) (TagMatch, error) {
	const op = "branchver.ScanTags"
	logger := log.FromContext(ctx)

	re, err := tagPattern(tagPrefix, branch.Version)
	if err != nil {
		return TagMatch{}, wrapError(op, KindConfiguration, err, "invalid tag prefix %q", tagPrefix)
	}

	entries, err := repo.DecoratedTagLog(ctx)
	if err != nil {
		return TagMatch{}, wrapError(op, KindRepository, err, "reading tag log")
	}
	trimmed := TrimAfterHead(entries)
	logger.Debug("tag_log_loaded", "entries", len(entries), "candidates", len(trimmed))

	versionIdx := re.SubexpIndex("version")
	for _, entry := range trimmed {
		for _, tag := range entry.Tags() {
			m := re.FindStringSubmatch(tag)
			if m == nil {
				continue
			}

			onHead, err := tagOnHead(ctx, repo, tag)
			if err != nil {
				return TagMatch{}, wrapError(op, KindRepository, err, "resolving tag %q", tag)
			}

			match := TagMatch{Tag: tag, Version: m[versionIdx], OnCurrentCommit: onHead}
			logger.Debug("tag_matched", "tag", tag, "version", match.Version, "on_head", onHead)
			return match, nil
		}
	}

	match := TagMatch{Version: branch.Version + ".0", Synthesized: true}
	logger.Debug("tag_matched", "tag", "", "version", match.Version, "synthesized", true)
	return match, nil
}

// tagOnHead looks up the tag's commit and HEAD's commit concurrently.
func tagOnHead(ctx context.Context, repo Repository, tag string) (bool, error) {
	var tagCommit, headCommit string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tagCommit, err = repo.CommitOf(gctx, tag)
		return err
	})
	g.Go(func() error {
		var err error
		headCommit, err = repo.CurrentCommit(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	return tagCommit == headCommit, nil
}
