// Package branchver derives a semantic version for a build from the current
// Git branch name and the tags reachable in the repository.
//
// A release branch is named after the major.minor line it ships (for example
// "1.2" or "release/1.2"). The engine finds the first tag in the repository's
// decorated tag log that belongs to that line and either reuses it (HEAD is
// already tagged) or increments it.
package branchver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/blang/semver"
	"github.com/go-playground/validator/v10"
)

// Options configures version calculation behavior
type Options struct {
	// BranchName overrides the branch reported by the repository
	BranchName string

	// TagPrefix is a regex matched in front of the version in tag names (e.g. "v")
	TagPrefix string

	// IgnoreBranchPrefix is a regex stripped from the start of the branch name (e.g. "release/")
	IgnoreBranchPrefix string

	// Prerelease requests a prerelease version
	Prerelease bool

	// Suffix is the prerelease identifier, required when Prerelease is set
	Suffix string `validate:"required_if=Prerelease true"`

	// BuildNumber pins the trailing prerelease ordinal. The -1 timestamp
	// sentinel must be resolved by the caller.
	BuildNumber *int64 `validate:"omitempty,min=0"`

	// CurrentVersion is an externally tracked version of the same line
	CurrentVersion string

	// NoIncrement returns CurrentVersion as-is instead of incrementing
	NoIncrement bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the options without touching a repository.
func (o Options) Validate() error {
	const op = "branchver.Options.Validate"

	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				switch fe.Field() {
				case "Suffix":
					msgs = append(msgs, "prerelease requested without a suffix")
				case "BuildNumber":
					msgs = append(msgs, "build number must not be negative")
				default:
					msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
				}
			}
			return newError(op, KindConfiguration, "%s", strings.Join(msgs, "; "))
		}
		return wrapError(op, KindConfiguration, err, "validating options")
	}

	if o.Prerelease {
		if _, err := semver.NewPRVersion(o.Suffix); err != nil {
			return wrapError(op, KindConfiguration, err, "invalid prerelease suffix %q", o.Suffix)
		}
	}
	if _, err := regexp.Compile(o.TagPrefix); err != nil {
		return wrapError(op, KindConfiguration, err, "invalid tag prefix %q", o.TagPrefix)
	}
	if _, err := regexp.Compile(o.IgnoreBranchPrefix); err != nil {
		return wrapError(op, KindConfiguration, err, "invalid branch prefix %q", o.IgnoreBranchPrefix)
	}
	return nil
}

// prereleaseIdentifier is the prerelease id used for increments: the branch
// prefix joined to the suffix with "-", or the suffix alone.
func (o Options) prereleaseIdentifier(branch BranchInfo) string {
	if branch.Prefix == "" {
		return o.Suffix
	}
	return branch.Prefix + "-" + o.Suffix
}

func (o Options) releaseType() ReleaseType {
	if o.Prerelease {
		return ReleasePrerelease
	}
	return ReleasePatch
}

// ReleaseType selects how IncrementVersion bumps a version
type ReleaseType string

const (
	ReleasePatch      ReleaseType = "patch"
	ReleasePrerelease ReleaseType = "prerelease"
)

// BranchInfo is a branch name split into its prefix and major.minor version
type BranchInfo struct {
	Name    string `json:"name"`
	Prefix  string `json:"prefix"`
	Version string `json:"version"`
}

// TagMatch is the outcome of scanning tags for the branch version
type TagMatch struct {
	// Tag is the full tag name that matched, empty when Synthesized
	Tag string
	// Version is the tag name with TagPrefix removed, or branch version + ".0"
	Version string
	// OnCurrentCommit is true when Tag points at HEAD
	OnCurrentCommit bool
	// Synthesized is true when no tag matched
	Synthesized bool
}

// Result is the outcome of Calculate
type Result struct {
	BranchName          string `json:"branchName"`
	BranchPrefix        string `json:"branchPrefix"`
	BranchVersion       string `json:"branchVersion"`
	LastMatchingVersion string `json:"lastMatchingVersion"`
	Version             string `json:"version"`
}

// Branch is the current branch as reported by a Repository
type Branch struct {
	Name     string
	Detached bool
}

// LogEntry is one commit of the decorated tag log
type LogEntry struct {
	// Commit is the full commit hash, may be empty
	Commit string
	// Decorations are the ref tokens as git prints them, e.g. "HEAD -> 1.2" or "tag: v1.2.3"
	Decorations []string
}

// Repository is the source of branch, tag and commit information.
//
// DecoratedTagLog returns one entry per tagged or HEAD commit, without
// walking ancestry. Its order decides which tag wins when several match, so
// implementations must document it.
type Repository interface {
	CheckAccessible(ctx context.Context) error
	CurrentBranch(ctx context.Context) (Branch, error)
	DecoratedTagLog(ctx context.Context) ([]LogEntry, error)
	CommitOf(ctx context.Context, tag string) (string, error)
	CurrentCommit(ctx context.Context) (string, error)
}
