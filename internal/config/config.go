// Package config loads branchver settings from YAML (or JSON) files into the
// kong command line, and resolves values the engine expects pre-computed.
package config

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
)

// TimestampBuildNumber is the build number that asks for the current Unix time.
const TimestampBuildNumber = -1

// DefaultPaths are the config files tried when --config is not given.
// Later files only fill flags earlier ones left unset.
func DefaultPaths() []string {
	return []string{
		".branchver.yaml",
		".branchver.yml",
		"~/.config/branchver/config.yaml",
	}
}

// YAML is a kong.ConfigurationLoader. Keys may be written as the flag name
// ("tag-prefix"), in snake_case ("tag_prefix") or in camelCase ("tagPrefix").
func YAML(r io.Reader) (kong.Resolver, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	values := map[string]any{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := yaml.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("parse yaml: %s", yaml.FormatError(err, false, true))
		}
	}

	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		for _, key := range keyVariants(flag.Name) {
			v, ok := values[key]
			if !ok || v == nil {
				continue
			}
			return scalar(key, v)
		}
		return nil, nil
	}
	return f, nil
}

// scalar renders config values as strings so kong's mappers parse them the
// same way they parse command line arguments.
func scalar(key string, v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any:
		return nil, fmt.Errorf("config key %q: expected a scalar value", key)
	}
	return fmt.Sprint(v), nil
}

func keyVariants(flagName string) []string {
	snake := strings.ReplaceAll(flagName, "-", "_")
	return []string{flagName, snake, camelCase(flagName)}
}

func camelCase(flagName string) string {
	parts := strings.Split(flagName, "-")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// ParseBuildNumber parses the --build-number value. Empty means unset; -1 is
// replaced by now's Unix timestamp in seconds.
func ParseBuildNumber(raw string, now func() time.Time) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("build number %q is not an integer", raw)
	}
	if n == TimestampBuildNumber {
		n = now().UTC().Unix()
	}
	if n < 0 {
		return nil, fmt.Errorf("build number %d must be %d or non-negative", n, TimestampBuildNumber)
	}
	return &n, nil
}
