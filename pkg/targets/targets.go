// Package targets builds the ordered list of URLs to capture together with
// the base name of the document they end up in.
package targets

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/root4loot/goutils/fileutil"
	"github.com/root4loot/snapdeck/pkg/resolver"
	"github.com/root4loot/snapdeck/pkg/screener"
)

// Modes a Source can be built from.
const (
	ModeURL        = "url"
	ModeSubdomains = "subdomains"
	ModeFile       = "file"
)

// DefaultName is used when a base name sanitizes to nothing.
const DefaultName = "screenshots"

// Source is an ordered list of targets and the base name of their document.
type Source struct {
	Mode    string
	Name    string
	Targets []string
}

// FromURL returns a single-target source named after the sanitized URL.
func FromURL(u string) Source {
	return Source{
		Mode:    ModeURL,
		Name:    name(Sanitize(u)),
		Targets: []string{strings.TrimSpace(u)},
	}
}

// FromFile reads one target per line from path, skipping blank lines. Read
// errors are returned unchanged in meaning; they abort the run.
func FromFile(path string) (Source, error) {
	lines, err := fileutil.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("reading %s: %w", path, err)
	}

	targets := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			targets = append(targets, line)
		}
	}

	return Source{
		Mode:    ModeFile,
		Name:    name(Sanitize(filepath.Base(path))),
		Targets: targets,
	}, nil
}

// FromResolver resolves the subdomains of domain. A resolver failure yields a
// source without targets.
func FromResolver(ctx context.Context, r resolver.Resolver, domain string) Source {
	domain = strings.TrimSpace(domain)
	return Source{
		Mode:    ModeSubdomains,
		Name:    Sanitize(domain) + "_subdomains",
		Targets: r.Resolve(ctx, domain),
	}
}

// Sanitize strips the scheme from name and replaces path separators so that
// it can be used as a file name.
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, "http://", "")
	name = strings.ReplaceAll(name, "https://", "")
	name = strings.ReplaceAll(name, "/", "_")
	return strings.TrimSpace(name)
}

// Normalize trims u and prepends http:// unless it already starts with http://
// or https://. No HTTPS upgrade is attempted.
func Normalize(u string) (string, error) {
	return screener.NormalizeURL(u)
}

func name(s string) string {
	if s == "" {
		return DefaultName
	}
	return s
}
