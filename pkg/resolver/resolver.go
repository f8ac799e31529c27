// Package resolver discovers subdomains of a root domain.
//
// Resolvers never fail: any problem is logged and degrades to an empty
// result so that the capture pipeline can carry on.
package resolver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/root4loot/goutils/log"
)

// Kinds accepted by New.
const (
	KindAssetfinder = "assetfinder"
	KindDNS         = "dns"
)

// Resolver returns candidate hostnames for a root domain.
type Resolver interface {
	Resolve(ctx context.Context, domain string) []string
}

// Config selects and tunes a Resolver.
type Config struct {
	Kind       string
	Bin        string   // assetfinder binary
	Nameserver string   // host:port used by the DNS resolver
	Words      []string // DNS labels to try; DefaultWords when empty
}

// New returns the resolver named by cfg.Kind.
func New(cfg Config) (Resolver, error) {
	switch cfg.Kind {
	case "", KindAssetfinder:
		return &Assetfinder{Bin: cfg.Bin}, nil
	case KindDNS:
		return &DNSBrute{Nameserver: cfg.Nameserver, Words: cfg.Words}, nil
	default:
		return nil, fmt.Errorf("unknown resolver %q", cfg.Kind)
	}
}

// Assetfinder shells out to the assetfinder utility.
type Assetfinder struct {
	Bin string // defaults to "assetfinder" looked up on PATH
}

// Resolve runs `assetfinder --subs-only domain` and returns its non-empty
// output lines in order.
func (a *Assetfinder) Resolve(ctx context.Context, domain string) []string {
	bin := a.Bin
	if bin == "" {
		bin = KindAssetfinder
	}

	log.Infof("Discovering subdomains for %s ...", domain)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "--subs-only", domain)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		log.Warnf("Subdomain discovery failed: %v", err)
		return []string{}
	}

	return parseLines(out)
}

func parseLines(out []byte) []string {
	subdomains := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			subdomains = append(subdomains, line)
		}
	}
	return subdomains
}
