package enrich

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/nao1215/redirscan/internal/model"
)

// DefaultDNSTimeout bounds each DNS query.
const DefaultDNSTimeout = 5 * time.Second

// fallbackNameserver is used when neither explicit nor system servers exist.
const fallbackNameserver = "8.8.8.8:53"

// DNSResolver performs forward and reverse lookups with miekg/dns.
type DNSResolver struct {
	client  *dns.Client
	servers []string
}

// NewDNSResolver prefers explicit servers, then system resolvers, then a
// public fallback.
func NewDNSResolver(timeout time.Duration, servers []string) *DNSResolver {
	if timeout <= 0 {
		timeout = DefaultDNSTimeout
	}
	resolved := normalizeServers(servers)
	if len(resolved) == 0 {
		resolved = loadSystemServers()
	}
	if len(resolved) == 0 {
		resolved = []string{fallbackNameserver}
	}
	return &DNSResolver{
		client:  &dns.Client{Timeout: timeout},
		servers: resolved,
	}
}

// Resolve looks up A, AAAA and CNAME records of host and the PTR names of
// every address found. IP literals skip the forward lookup.
func (r *DNSResolver) Resolve(ctx context.Context, host string) (*model.DNSInfo, error) {
	host = strings.TrimSuffix(strings.TrimSpace(host), ".")
	info := &model.DNSInfo{Host: host}

	if ip := net.ParseIP(host); ip != nil {
		info.IPs = []string{ip.String()}
	} else {
		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			msg, err := r.query(ctx, host, qtype)
			if err != nil {
				return nil, err
			}
			ips, cnames := extractAddresses(msg)
			info.IPs = append(info.IPs, ips...)
			info.CNAMEs = appendUnique(info.CNAMEs, cnames...)
		}
	}
	if len(info.IPs) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoRecords, host)
	}

	for _, ip := range info.IPs {
		names, err := r.reverse(ctx, ip)
		if err != nil || len(names) == 0 {
			continue
		}
		info.Reverse = append(info.Reverse, model.ReverseRecord{IP: ip, Names: names})
	}
	return info, nil
}

func (r *DNSResolver) reverse(ctx context.Context, ip string) ([]string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return nil, err
	}
	msg, err := r.query(ctx, arpa, dns.TypePTR)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, answer := range msg.Answer {
		if ptr, ok := answer.(*dns.PTR); ok {
			names = append(names, strings.TrimSuffix(ptr.Ptr, "."))
		}
	}
	return names, nil
}

// query asks each server in turn until one answers.
func (r *DNSResolver) query(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	if len(r.servers) == 0 {
		return nil, ErrNoNameservers
	}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		response, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		if response == nil {
			lastErr = errors.New("empty dns response")
			continue
		}
		return response, nil
	}
	return nil, fmt.Errorf("dns query %s %s failed: %w", dns.TypeToString[qtype], name, lastErr)
}

func extractAddresses(msg *dns.Msg) (ips, cnames []string) {
	for _, answer := range msg.Answer {
		switch record := answer.(type) {
		case *dns.A:
			ips = append(ips, record.A.String())
		case *dns.AAAA:
			ips = append(ips, record.AAAA.String())
		case *dns.CNAME:
			cnames = append(cnames, strings.TrimSuffix(record.Target, "."))
		}
	}
	return ips, cnames
}

// normalizeServers ensures host:port formatting and dedupes entries.
func normalizeServers(servers []string) []string {
	var resolved []string
	seen := map[string]bool{}
	for _, server := range servers {
		value := strings.TrimSpace(server)
		if value == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(value); err != nil {
			value = net.JoinHostPort(value, "53")
		}
		if seen[value] {
			continue
		}
		seen[value] = true
		resolved = append(resolved, value)
	}
	return resolved
}

// loadSystemServers reads resolvers from /etc/resolv.conf when available.
func loadSystemServers() []string {
	var servers []string
	if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil {
		for _, server := range conf.Servers {
			servers = append(servers, net.JoinHostPort(server, conf.Port))
		}
	}
	return servers
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}
