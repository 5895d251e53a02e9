package main

import (
	"context"
	"crypto/x509"
	"errors"
	"testing"
	"time"
)

func TestCertificateInspector_Inspect(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid certificate", func(t *testing.T) {
		expiry := now.Add(30 * 24 * time.Hour)
		inspector := NewCertificateInspector(CertificateInspectorOptions{
			Now: func() time.Time { return now },
			Handshake: func(ctx context.Context, addr string, serverName string) ([]*x509.Certificate, error) {
				if addr != "example.com:443" {
					t.Errorf("unexpected addr %q", addr)
				}
				if serverName != "example.com" {
					t.Errorf("unexpected server name %q", serverName)
				}
				return []*x509.Certificate{{NotAfter: expiry}}, nil
			},
		})

		info := inspector.Inspect(t.Context(), "https://example.com")
		if !info.Valid {
			t.Error("expected certificate to be valid")
		}
		if info.Expiry != expiry.UnixMilli() {
			t.Errorf("expected expiry %d, got %d", expiry.UnixMilli(), info.Expiry)
		}
	})

	t.Run("expired certificate", func(t *testing.T) {
		expiry := now.Add(-time.Hour)
		inspector := NewCertificateInspector(CertificateInspectorOptions{
			Now: func() time.Time { return now },
			Handshake: func(ctx context.Context, addr string, serverName string) ([]*x509.Certificate, error) {
				return []*x509.Certificate{{NotAfter: expiry}}, nil
			},
		})

		info := inspector.Inspect(t.Context(), "https://example.com")
		if info.Valid {
			t.Error("expected expired certificate to be invalid")
		}
		if info.Expiry != expiry.UnixMilli() {
			t.Errorf("expected expiry to still be reported, got %d", info.Expiry)
		}
	})

	t.Run("custom port", func(t *testing.T) {
		var gotAddr string
		inspector := NewCertificateInspector(CertificateInspectorOptions{
			Handshake: func(ctx context.Context, addr string, serverName string) ([]*x509.Certificate, error) {
				gotAddr = addr
				return []*x509.Certificate{{NotAfter: time.Now().Add(time.Hour)}}, nil
			},
		})

		inspector.Inspect(t.Context(), "https://example.com:8443/health")
		if gotAddr != "example.com:8443" {
			t.Errorf("expected addr example.com:8443, got %q", gotAddr)
		}
	})

	t.Run("non-https url", func(t *testing.T) {
		inspector := NewCertificateInspector(CertificateInspectorOptions{
			Handshake: func(ctx context.Context, addr string, serverName string) ([]*x509.Certificate, error) {
				t.Error("handshake must not run for plain http")
				return nil, nil
			},
		})

		info := inspector.Inspect(t.Context(), "http://example.com")
		if info.Valid || info.Expiry != 0 {
			t.Errorf("expected zero info, got %+v", info)
		}
	})

	t.Run("bare hostname defaults to https", func(t *testing.T) {
		var handshakeRan bool
		inspector := NewCertificateInspector(CertificateInspectorOptions{
			Handshake: func(ctx context.Context, addr string, serverName string) ([]*x509.Certificate, error) {
				handshakeRan = true
				return []*x509.Certificate{{NotAfter: time.Now().Add(time.Hour)}}, nil
			},
		})

		inspector.Inspect(t.Context(), "example.com")
		if !handshakeRan {
			t.Error("expected handshake for a bare hostname")
		}
	})

	t.Run("handshake failure", func(t *testing.T) {
		inspector := NewCertificateInspector(CertificateInspectorOptions{
			Handshake: func(ctx context.Context, addr string, serverName string) ([]*x509.Certificate, error) {
				return nil, errors.New("connection reset")
			},
		})

		info := inspector.Inspect(t.Context(), "https://example.com")
		if info.Valid || info.Expiry != 0 {
			t.Errorf("expected zero info on handshake failure, got %+v", info)
		}
	})

	t.Run("empty chain", func(t *testing.T) {
		inspector := NewCertificateInspector(CertificateInspectorOptions{
			Handshake: func(ctx context.Context, addr string, serverName string) ([]*x509.Certificate, error) {
				return nil, nil
			},
		})

		info := inspector.Inspect(t.Context(), "https://example.com")
		if info.Valid || info.Expiry != 0 {
			t.Errorf("expected zero info on empty chain, got %+v", info)
		}
	})
}
