package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/url"
	"time"
)

const defaultTLSConnectTimeout = 5 * time.Second

// CertificateInfo reports whether the peer certificate of an HTTPS endpoint
// is still within its validity window. Expiry is epoch milliseconds, 0 when
// not applicable or unavailable.
type CertificateInfo struct {
	Valid  bool  `json:"valid"`
	Expiry int64 `json:"expiry"`
}

// HandshakeFunc opens a TLS session to addr with the given server name and
// returns the peer certificate chain. Injectable so tests can fabricate a
// chain without a live handshake.
type HandshakeFunc func(ctx context.Context, addr string, serverName string) ([]*x509.Certificate, error)

// CertificateInspector extracts the peer certificate expiry through a raw
// TLS handshake, independent of the HTTP probe. It is best-effort: every
// failure path collapses to {false, 0} and it never returns an error.
type CertificateInspector struct {
	connectTimeout time.Duration
	handshake      HandshakeFunc
	now            func() time.Time
}

type CertificateInspectorOptions struct {
	ConnectTimeout time.Duration
	Handshake      HandshakeFunc
	Now            func() time.Time
}

func NewCertificateInspector(options CertificateInspectorOptions) *CertificateInspector {
	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = defaultTLSConnectTimeout
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	inspector := &CertificateInspector{
		connectTimeout: options.ConnectTimeout,
		handshake:      options.Handshake,
		now:            options.Now,
	}
	if inspector.handshake == nil {
		inspector.handshake = inspector.dialHandshake
	}
	return inspector
}

// Inspect returns the certificate info for the given URL. Non-HTTPS URLs
// immediately yield {false, 0}.
func (ci *CertificateInspector) Inspect(ctx context.Context, rawURL string) CertificateInfo {
	parsed, err := url.Parse(normalizeProbeUrl(rawURL))
	if err != nil || parsed.Scheme != "https" || parsed.Hostname() == "" {
		return CertificateInfo{}
	}

	port := parsed.Port()
	if port == "" {
		port = "443"
	}

	ctx, cancel := context.WithTimeout(ctx, ci.connectTimeout)
	defer cancel()

	certificates, err := ci.handshake(ctx, net.JoinHostPort(parsed.Hostname(), port), parsed.Hostname())
	if err != nil || len(certificates) == 0 || certificates[0] == nil {
		return CertificateInfo{}
	}

	notAfter := certificates[0].NotAfter
	if notAfter.IsZero() {
		return CertificateInfo{}
	}

	return CertificateInfo{
		Valid:  ci.now().Before(notAfter),
		Expiry: notAfter.UnixMilli(),
	}
}

func (ci *CertificateInspector) dialHandshake(ctx context.Context, addr string, serverName string) ([]*x509.Certificate, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: ci.connectTimeout},
		Config: &tls.Config{
			ServerName: serverName,
			// Expiry introspection must still work for endpoints whose chain
			// would fail verification; validity here means "not yet expired",
			// nothing more.
			InsecureSkipVerify: true,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return nil, nil
	}
	return tlsConn.ConnectionState().PeerCertificates, nil
}
