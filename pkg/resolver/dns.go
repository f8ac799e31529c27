package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/root4loot/goutils/log"
	"golang.org/x/sync/errgroup"
)

// DefaultNameserver is queried when DNSBrute.Nameserver is empty.
const DefaultNameserver = "1.1.1.1:53"

// DefaultWords are common subdomain labels.
var DefaultWords = []string{
	"www", "mail", "remote", "blog", "webmail", "server", "ns1", "ns2",
	"smtp", "secure", "vpn", "m", "shop", "ftp", "mail2", "test",
	"portal", "ns", "ww1", "host", "support", "dev", "web", "bbs",
	"mx", "email", "cloud", "mail1", "forum", "owa", "www2", "gw",
	"admin", "store", "mx1", "cdn", "api", "exchange", "app", "gov",
	"staging", "beta", "docs", "status", "git", "jira", "wiki", "intranet",
}

// DNSBrute finds subdomains by querying A records for word.domain.
type DNSBrute struct {
	Nameserver  string
	Words       []string
	Timeout     time.Duration // per query, default 2s
	Concurrency int           // parallel queries, default 20
}

// Resolve returns every word.domain that has at least one A record, in word
// order. Failed queries are skipped.
func (d *DNSBrute) Resolve(ctx context.Context, domain string) []string {
	domain = strings.Trim(strings.TrimSpace(domain), ".")
	if domain == "" {
		return []string{}
	}

	words := d.Words
	if len(words) == 0 {
		words = DefaultWords
	}

	nameserver := d.Nameserver
	if nameserver == "" {
		nameserver = DefaultNameserver
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = 20
	}

	log.Infof("Brute forcing %d subdomains of %s via %s ...", len(words), domain, nameserver)

	client := &dns.Client{Timeout: timeout}
	found := make([]bool, len(words))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, word := range words {
		g.Go(func() error {
			name := strings.TrimSpace(word) + "." + domain

			m := new(dns.Msg)
			m.SetQuestion(dns.Fqdn(name), dns.TypeA)

			r, _, err := client.ExchangeContext(ctx, m, nameserver)
			if err != nil {
				log.Debugf("DNS query for %s failed: %v", name, err)
				return nil
			}

			if r.Rcode != dns.RcodeSuccess {
				return nil
			}

			for _, rr := range r.Answer {
				if _, ok := rr.(*dns.A); ok {
					found[i] = true
					break
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	subdomains := []string{}
	for i, ok := range found {
		if ok {
			subdomains = append(subdomains, strings.TrimSpace(words[i])+"."+domain)
		}
	}

	if len(subdomains) == 0 {
		log.Warnf("No subdomains of %s resolved", domain)
	}
	return subdomains
}
