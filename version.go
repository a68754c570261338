package branchver

import (
	"context"

	"github.com/blang/semver"
	"github.com/charmbracelet/log"
)

// Calculate derives the version for the repository's current branch.
//
// The stages run in order: options are validated before the repository is
// touched, then the branch is resolved and parsed, tags are scanned, the
// version is computed and finally reconciled with a build number or a
// reference version. Any failure aborts with no partial result.
func Calculate(ctx context.Context, repo Repository, opts Options) (*Result, error) {
	const op = "branchver.Calculate"

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, newError(op, KindConfiguration, "repository is required")
	}

	if err := repo.CheckAccessible(ctx); err != nil {
		return nil, wrapError(op, KindRepository, err, "checking repository")
	}

	name, err := ResolveBranch(ctx, repo, opts)
	if err != nil {
		return nil, err
	}

	branch, err := ParseBranchName(name, opts.IgnoreBranchPrefix)
	if err != nil {
		return nil, err
	}
	log.FromContext(ctx).Debug("branch_parsed", "branch", branch.Name, "prefix", branch.Prefix, "version", branch.Version)

	match, err := ScanTags(ctx, repo, branch, opts.TagPrefix)
	if err != nil {
		return nil, err
	}

	version, err := ComputeVersion(match, branch, opts)
	if err != nil {
		return nil, err
	}
	log.FromContext(ctx).Debug("version_computed", "from", match.Version, "version", version)

	final, err := ReconcileBuildNumber(version, match, branch, opts)
	if err != nil {
		return nil, err
	}
	if final != version {
		log.FromContext(ctx).Debug("build_number_applied", "from", version, "version", final)
	}

	return &Result{
		BranchName:          branch.Name,
		BranchPrefix:        branch.Prefix,
		BranchVersion:       branch.Version,
		LastMatchingVersion: match.Version,
		Version:             final,
	}, nil
}

// ComputeVersion picks the next version for the matched tag. Rules are
// checked in order and the first one that applies wins:
//
//  1. NoIncrement with a CurrentVersion returns CurrentVersion.
//  2. A tag on HEAD is returned unchanged, so re-running on a release is stable.
//  3. A synthesized baseline is the new release, or its ".0" prerelease.
//  4. NoIncrement without a CurrentVersion is an unresolved version.
//  5. Otherwise the matched version is incremented.
//
// For prereleases the identifier is checked before any rule applies, so an
// invalid branch prefix or suffix fails the same way with or without tags.
func ComputeVersion(match TagMatch, branch BranchInfo, opts Options) (string, error) {
	const op = "branchver.ComputeVersion"

	if opts.Prerelease {
		if id := opts.prereleaseIdentifier(branch); id != "" {
			if _, err := semver.NewPRVersion(id); err != nil {
				return "", wrapError(op, KindConfiguration, err, "invalid prerelease identifier %q", id)
			}
		}
	}

	switch {
	case opts.NoIncrement && opts.CurrentVersion != "":
		return opts.CurrentVersion, nil
	case match.OnCurrentCommit:
		return match.Version, nil
	case match.Synthesized:
		if opts.Prerelease {
			return match.Version + "-" + opts.prereleaseIdentifier(branch) + ".0", nil
		}
		return match.Version, nil
	case opts.NoIncrement:
		return "", newError(op, KindUnresolvedVersion,
			"no increment requested but no current version given and %q is not tagged on HEAD", match.Version)
	}

	return IncrementVersion(match.Version, opts.releaseType(), opts.prereleaseIdentifier(branch))
}

// IncrementVersion bumps version the way npm's semver "inc" does.
//
// ReleasePatch drops an existing prerelease, or bumps the patch number.
// ReleasePrerelease bumps the last numeric prerelease identifier (starting a
// new patch at identifier.0 for a release version) and restarts at
// identifier.0 when the prerelease line changes.
func IncrementVersion(version string, release ReleaseType, identifier string) (string, error) {
	const op = "branchver.IncrementVersion"

	v, err := semver.Parse(version)
	if err != nil {
		return "", wrapError(op, KindVersionParse, err, "parsing version %q", version)
	}

	switch release {
	case ReleasePatch:
		if len(v.Pre) == 0 {
			v.Patch++
		}
		v.Pre = nil
	case ReleasePrerelease:
		if len(v.Pre) == 0 {
			v.Patch++
			v.Pre = []semver.PRVersion{ordinal(0)}
		} else {
			bumped := false
			for i := len(v.Pre) - 1; i >= 0; i-- {
				if v.Pre[i].IsNum {
					v.Pre[i].VersionNum++
					bumped = true
					break
				}
			}
			if !bumped {
				v.Pre = append(v.Pre, ordinal(0))
			}
		}

		if identifier != "" {
			id, err := semver.NewPRVersion(identifier)
			if err != nil {
				return "", wrapError(op, KindVersionParse, err, "invalid prerelease identifier %q", identifier)
			}
			if v.Pre[0].String() != id.String() || len(v.Pre) < 2 || !v.Pre[1].IsNum {
				v.Pre = []semver.PRVersion{id, ordinal(0)}
			}
		}
	default:
		return "", newError(op, KindConfiguration, "unknown release type %q", release)
	}

	v.Build = nil
	return v.String(), nil
}

func ordinal(n uint64) semver.PRVersion {
	return semver.PRVersion{VersionNum: n, IsNum: true}
}

// sameLine reports whether a and b share major.minor.patch and the first
// prerelease identifier.
func sameLine(a, b semver.Version) bool {
	return a.Major == b.Major && a.Minor == b.Minor && a.Patch == b.Patch &&
		firstPre(a) == firstPre(b)
}

func firstPre(v semver.Version) string {
	if len(v.Pre) == 0 {
		return ""
	}
	return v.Pre[0].String()
}
