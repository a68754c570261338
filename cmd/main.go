package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/jaxxstorm/branchver"
	"github.com/jaxxstorm/branchver/internal/config"
	"github.com/jaxxstorm/branchver/internal/hook"
	"github.com/jaxxstorm/branchver/internal/logger"
)

// Version will be set by build process
var Version = "dev"

type CLI struct {
	BranchName         string          `short:"b" env:"BRANCHVER_BRANCH_NAME" help:"Branch name to use instead of the checked out branch"`
	BuildNumber        string          `short:"n" env:"BRANCHVER_BUILD_NUMBER" help:"Build number for the prerelease ordinal (-1 uses the current Unix time)"`
	TagPrefix          string          `short:"t" env:"BRANCHVER_TAG_PREFIX" help:"Regex matched before the version in tag names (e.g. 'v')"`
	IgnoreBranchPrefix string          `short:"i" env:"BRANCHVER_IGNORE_BRANCH_PREFIX" help:"Regex stripped from the start of the branch name (e.g. 'release/')"`
	Pre                bool            `short:"p" env:"BRANCHVER_PRE" help:"Compute a prerelease version"`
	Suffix             string          `short:"s" env:"BRANCHVER_SUFFIX" help:"Prerelease identifier, required with --pre (e.g. 'alpha')"`
	CurrentVersion     string          `short:"c" env:"BRANCHVER_CURRENT_VERSION" help:"Externally tracked version to continue the prerelease ordinal from"`
	NoIncrement        bool            `env:"BRANCHVER_NO_INCREMENT" help:"Return --current-version unchanged"`
	WorkingDirectory   string          `short:"r" env:"BRANCHVER_WORKING_DIRECTORY" help:"Repository path (default: current directory)"`
	Backend            string          `default:"go-git" enum:"go-git,git" env:"BRANCHVER_BACKEND" help:"Repository backend: built-in go-git or the git binary"`
	Exec               string          `short:"e" env:"BRANCHVER_EXEC" help:"Command to run afterwards with VERSION and BRANCH_* set in its environment"`
	JSON               bool            `short:"j" help:"Output as JSON"`
	Quiet              bool            `short:"q" help:"Print only the version"`
	LogLevel           string          `default:"warn" enum:"debug,info,warn,error" env:"BRANCHVER_LOG_LEVEL" help:"Log level"`
	LogFormat          string          `default:"auto" enum:"auto,text,json,logfmt" env:"BRANCHVER_LOG_FORMAT" help:"Log format"`
	Config             kong.ConfigFlag `help:"YAML or JSON config file"`
	ShowVersion        bool            `help:"Show version information" name:"version"`
}

// hookError marks a failure of the --exec command
type hookError struct{ err error }

func (e *hookError) Error() string { return "post-version command: " + e.err.Error() }
func (e *hookError) Unwrap() error { return e.err }

func main() {
	var cli CLI

	kong.Parse(&cli,
		kong.Name("branchver"),
		kong.Description("Calculate a semantic version from the current release branch and its Git tags"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Configuration(config.YAML, config.DefaultPaths()...),
		kong.Vars{
			"version": Version,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Run(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func (c *CLI) Run(ctx context.Context) error {
	// Handle version flag
	if c.ShowVersion {
		return c.showVersion()
	}

	l := logger.New(logger.Options{Level: c.LogLevel, Format: c.LogFormat}).
		With("run_id", logger.NewRunID())
	ctx = log.WithContext(ctx, l)

	return c.calculateVersion(ctx)
}

func (c *CLI) showVersion() error {
	versionInfo := map[string]string{
		"version": Version,
		"name":    "branchver",
	}

	if c.JSON {
		return json.NewEncoder(os.Stdout).Encode(versionInfo)
	}

	fmt.Printf("branchver version %s\n", Version)
	return nil
}

func (c *CLI) options() (branchver.Options, error) {
	buildNumber, err := config.ParseBuildNumber(c.BuildNumber, time.Now)
	if err != nil {
		return branchver.Options{}, &branchver.Error{Op: "cli", Kind: branchver.KindConfiguration, Err: err}
	}

	opts := branchver.Options{
		BranchName:         c.BranchName,
		TagPrefix:          c.TagPrefix,
		IgnoreBranchPrefix: c.IgnoreBranchPrefix,
		Prerelease:         c.Pre,
		Suffix:             c.Suffix,
		BuildNumber:        buildNumber,
		CurrentVersion:     c.CurrentVersion,
		NoIncrement:        c.NoIncrement,
	}
	// Reject bad options before the repository is opened
	if err := opts.Validate(); err != nil {
		return branchver.Options{}, err
	}
	return opts, nil
}

func (c *CLI) workingDirectory() (string, error) {
	if c.WorkingDirectory != "" {
		return c.WorkingDirectory, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return dir, nil
}

func (c *CLI) openRepository(dir string) (branchver.Repository, error) {
	if c.Backend == "git" {
		return branchver.NewCLIRepository(dir), nil
	}
	repo, err := branchver.OpenRepository(dir)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (c *CLI) calculateVersion(ctx context.Context) error {
	opts, err := c.options()
	if err != nil {
		return err
	}

	dir, err := c.workingDirectory()
	if err != nil {
		return err
	}

	repo, err := c.openRepository(dir)
	if err != nil {
		return err
	}

	result, err := branchver.Calculate(ctx, repo, opts)
	if err != nil {
		return err
	}

	if err := c.printResult(os.Stdout, result); err != nil {
		return err
	}

	if c.Exec != "" {
		if err := hook.Run(ctx, c.Exec, dir, result, os.Stdout, os.Stderr); err != nil {
			return &hookError{err: err}
		}
	}
	return nil
}

func (c *CLI) printResult(w io.Writer, result *branchver.Result) error {
	switch {
	case c.JSON:
		return json.NewEncoder(w).Encode(result)
	case c.Quiet:
		_, err := fmt.Fprintln(w, result.Version)
		return err
	default:
		_, err := io.WriteString(w, summary(result, isTerminal(w)))
		return err
	}
}

var labelStyle = lipgloss.NewStyle().Bold(true)

func summary(result *branchver.Result, styled bool) string {
	lines := []struct{ label, value string }{
		{"Branch name is", result.BranchName},
		{"Branch prefix is", result.BranchPrefix},
		{"Branch version is", result.BranchVersion},
		{"Last matching version is", result.LastMatchingVersion},
		{"Computed version is", result.Version},
	}

	var b strings.Builder
	for _, line := range lines {
		label := line.label
		if styled {
			label = labelStyle.Render(label)
		}
		fmt.Fprintf(&b, "%s '%s'\n", label, line.value)
	}
	return b.String()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	var he *hookError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &he):
		return 5
	case branchver.IsKind(err, branchver.KindConfiguration),
		branchver.IsKind(err, branchver.KindBranchFormat):
		return 2
	case branchver.IsKind(err, branchver.KindRepository),
		branchver.IsKind(err, branchver.KindDetachedHead):
		return 3
	case branchver.IsKind(err, branchver.KindVersionParse),
		branchver.IsKind(err, branchver.KindUnresolvedVersion):
		return 4
	default:
		return 1
	}
}
