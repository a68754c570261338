package branchver

import (
	"context"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
)

var branchVersionRe = regexp.MustCompile(`^\d+\.\d+$`)

// ResolveBranch returns the branch name to derive the version from. An
// override in opts is returned verbatim without querying the repository.
func ResolveBranch(ctx context.Context, repo Repository, opts Options) (string, error) {
	const op = "branchver.ResolveBranch"

	if opts.BranchName != "" {
		log.FromContext(ctx).Debug("branch_resolved", "branch", opts.BranchName, "source", "override")
		return opts.BranchName, nil
	}

	branch, err := repo.CurrentBranch(ctx)
	if err != nil {
		return "", wrapError(op, KindRepository, err, "getting current branch")
	}
	if branch.Detached {
		return "", newError(op, KindDetachedHead, "HEAD is detached and no branch name was given")
	}

	log.FromContext(ctx).Debug("branch_resolved", "branch", branch.Name, "source", "repository")
	return branch.Name, nil
}

// ParseBranchName splits name into an optional prefix and a major.minor
// version. ignorePrefix is a regex matched case-insensitively at the start of
// the name; a single trailing "/" is dropped from the matched prefix.
func ParseBranchName(name, ignorePrefix string) (BranchInfo, error) {
	const op = "branchver.ParseBranchName"

	info := BranchInfo{Name: name, Version: name}

	if ignorePrefix != "" {
		re, err := regexp.Compile(`(?i)^(?:` + ignorePrefix + `)`)
		if err != nil {
			return BranchInfo{}, wrapError(op, KindConfiguration, err, "invalid branch prefix %q", ignorePrefix)
		}
		if loc := re.FindStringIndex(name); loc != nil {
			info.Prefix = strings.TrimSuffix(name[:loc[1]], "/")
			info.Version = name[loc[1]:]
		}
	}

	if !branchVersionRe.MatchString(info.Version) {
		if ignorePrefix == "" {
			return BranchInfo{}, newError(op, KindBranchFormat,
				"branch %q: version %q is not in major.minor format and no branch prefix is configured",
				name, info.Version)
		}
		return BranchInfo{}, newError(op, KindBranchFormat,
			"branch %q: version %q left after stripping prefix %q is not in major.minor format",
			name, info.Version, ignorePrefix)
	}

	return info, nil
}
