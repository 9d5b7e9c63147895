package enrich

import (
	"errors"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func header(name string, rrtype uint16) dns.RR_Header {
	return dns.RR_Header{Name: name, Rrtype: rrtype, Class: dns.ClassINET, Ttl: 60}
}

// startDNSServer serves a tiny fixed zone on a random local UDP port.
func startDNSServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		switch {
		case q.Name == "www.example.test." && q.Qtype == dns.TypeA:
			m.Answer = append(m.Answer,
				&dns.CNAME{Hdr: header(q.Name, dns.TypeCNAME), Target: "edge.example.test."},
				&dns.A{Hdr: header("edge.example.test.", dns.TypeA), A: net.ParseIP("192.0.2.10")},
			)
		case q.Name == "www.example.test." && q.Qtype == dns.TypeAAAA:
			m.Answer = append(m.Answer,
				&dns.CNAME{Hdr: header(q.Name, dns.TypeCNAME), Target: "edge.example.test."},
				&dns.AAAA{Hdr: header("edge.example.test.", dns.TypeAAAA), AAAA: net.ParseIP("2001:db8::10")},
			)
		case q.Name == "10.2.0.192.in-addr.arpa." && q.Qtype == dns.TypePTR:
			m.Answer = append(m.Answer,
				&dns.PTR{Hdr: header(q.Name, dns.TypePTR), Ptr: "edge.example.test."})
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = server.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

func TestDNSResolverResolve(t *testing.T) {
	t.Parallel()

	addr := startDNSServer(t)
	resolver := NewDNSResolver(2*time.Second, []string{addr})

	t.Run("forward and reverse records", func(t *testing.T) {
		t.Parallel()

		info, err := resolver.Resolve(t.Context(), "www.example.test")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if info.Host != "www.example.test" {
			t.Errorf("expected host www.example.test, got %q", info.Host)
		}
		if !slices.Equal(info.IPs, []string{"192.0.2.10", "2001:db8::10"}) {
			t.Errorf("unexpected IPs: %v", info.IPs)
		}
		if !slices.Equal(info.CNAMEs, []string{"edge.example.test"}) {
			t.Errorf("CNAMEs should be deduplicated, got %v", info.CNAMEs)
		}
		if len(info.Reverse) != 1 || info.Reverse[0].IP != "192.0.2.10" ||
			!slices.Equal(info.Reverse[0].Names, []string{"edge.example.test"}) {
			t.Errorf("unexpected reverse records: %+v", info.Reverse)
		}
	})

	t.Run("ip literal skips forward lookup", func(t *testing.T) {
		t.Parallel()

		info, err := resolver.Resolve(t.Context(), "192.0.2.10")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if !slices.Equal(info.IPs, []string{"192.0.2.10"}) {
			t.Errorf("unexpected IPs: %v", info.IPs)
		}
		if len(info.Reverse) != 1 {
			t.Errorf("expected one reverse record, got %+v", info.Reverse)
		}
	})

	t.Run("unknown host has no records", func(t *testing.T) {
		t.Parallel()

		_, err := resolver.Resolve(t.Context(), "missing.example.test")
		if !errors.Is(err, ErrNoRecords) {
			t.Errorf("expected ErrNoRecords, got %v", err)
		}
	})
}

func TestNormalizeServers(t *testing.T) {
	t.Parallel()

	got := normalizeServers([]string{"1.1.1.1", " 1.1.1.1:53 ", "", "9.9.9.9:5353"})
	want := []string{"1.1.1.1:53", "9.9.9.9:5353"}
	if !slices.Equal(got, want) {
		t.Errorf("normalizeServers = %v, want %v", got, want)
	}
}

func TestNewDNSResolverFallback(t *testing.T) {
	t.Parallel()

	resolver := NewDNSResolver(0, nil)
	if len(resolver.servers) == 0 {
		t.Fatal("resolver should always have at least one server")
	}
	if resolver.client.Timeout != DefaultDNSTimeout {
		t.Errorf("expected default timeout, got %v", resolver.client.Timeout)
	}
}
