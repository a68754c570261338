package branchver

import (
	"regexp"
	"strconv"

	"github.com/blang/semver"
)

var trailingOrdinalRe = regexp.MustCompile(`\d+$`)

// ReconcileBuildNumber adjusts the prerelease ordinal of a computed version.
//
// It only acts on prerelease builds that are not already tagged on HEAD and
// were not asked to skip incrementing. A non-nil BuildNumber, zero included,
// replaces the trailing ordinal outright. Otherwise, when CurrentVersion is on the same
// major.minor.patch-identifier line as version, the ordinal continues from
// CurrentVersion instead of restarting.
func ReconcileBuildNumber(version string, match TagMatch, branch BranchInfo, opts Options) (string, error) {
	const op = "branchver.ReconcileBuildNumber"

	if !opts.Prerelease || match.OnCurrentCommit || opts.NoIncrement {
		return version, nil
	}

	if opts.BuildNumber != nil {
		return trailingOrdinalRe.ReplaceAllLiteralString(version, strconv.FormatInt(*opts.BuildNumber, 10)), nil
	}
	if opts.CurrentVersion == "" {
		return version, nil
	}

	computed, err := semver.Parse(version)
	if err != nil {
		return "", wrapError(op, KindVersionParse, err, "parsing computed version %q", version)
	}
	reference, err := semver.Parse(opts.CurrentVersion)
	if err != nil {
		return "", wrapError(op, KindVersionParse, err, "parsing current version %q", opts.CurrentVersion)
	}

	if !sameLine(computed, reference) {
		return version, nil
	}
	return IncrementVersion(opts.CurrentVersion, ReleasePrerelease, opts.prereleaseIdentifier(branch))
}
