package enrich

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/redirscan/internal/model"
)

// DefaultCertTimeout bounds the whole certificate inspection.
const DefaultCertTimeout = 5 * time.Second

// DialFunc opens a network connection.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// CertInspector reads the peer certificate of an https host.
//
// The TLS handshake skips certificate verification so that invalid and
// self-signed certificates can be observed. Its connections are closed right
// after the handshake and never carry application data.
type CertInspector struct {
	dial    DialFunc
	timeout time.Duration
	now     func() time.Time
}

// NewCertInspector creates a CertInspector. A nil dial uses a plain net.Dialer.
func NewCertInspector(dial DialFunc, timeout time.Duration) *CertInspector {
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	if timeout <= 0 {
		timeout = DefaultCertTimeout
	}
	return &CertInspector{dial: dial, timeout: timeout, now: time.Now}
}

// Inspect returns the leaf certificate of rawURL's host.
func (c *CertInspector) Inspect(ctx context.Context, rawURL string) (*model.CertificateInfo, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrNotHTTPS, rawURL)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "443"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rawConn, err := c.dial(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, err
	}
	defer rawConn.Close()

	conn := tls.Client(rawConn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true, //nolint:gosec // observational only, see CertInspector
	})
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("tls handshake with %s failed: %w", host, err)
	}
	defer conn.Close()

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, ErrNoPeerCertificate
	}
	info := parseCertificate(state.PeerCertificates[0], c.now())
	info.TLSVersion = tls.VersionName(state.Version)
	return info, nil
}

// parseCertificate converts an x509.Certificate into a CertificateInfo.
func parseCertificate(cert *x509.Certificate, now time.Time) *model.CertificateInfo {
	return &model.CertificateInfo{
		Subject:       cert.Subject.String(),
		Issuer:        cert.Issuer.String(),
		ValidFrom:     cert.NotBefore.UTC(),
		ValidTo:       cert.NotAfter.UTC(),
		Fingerprint:   colonHex(sha256Sum(cert.Raw)),
		Serial:        colonHex(cert.SerialNumber.Bytes()),
		DaysRemaining: daysRemaining(cert.NotAfter, now),
		DNSNames:      cert.DNSNames,
		SelfSigned:    isSelfSigned(cert),
	}
}

// daysRemaining is (validTo - now) in whole 86400s days, rounded down so any
// certificate past validTo reports a negative count.
func daysRemaining(validTo, now time.Time) int {
	return int(math.Floor(validTo.Sub(now).Hours() / 24))
}

// isSelfSigned compares the raw subject and issuer and verifies the signature.
func isSelfSigned(cert *x509.Certificate) bool {
	if !bytes.Equal(cert.RawIssuer, cert.RawSubject) {
		return false
	}
	return cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// colonHex formats bytes as colon-separated upper-case hex.
func colonHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, ":")
}
