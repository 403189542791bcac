package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ClientTLS names the PEM files of a mutual TLS client.
type ClientTLS struct {
	CertFile   string
	KeyFile    string
	CAFile     string
	ServerName string
}

// Enabled reports whether a client certificate is configured.
func (t ClientTLS) Enabled() bool {
	return t.CertFile != "" || t.KeyFile != ""
}

// Load builds the client TLS configuration. The CA file replaces the system
// roots when set.
func (t ClientTLS) Load() (*tls.Config, error) {
	if t.CertFile == "" || t.KeyFile == "" {
		return nil, errors.New("client cert and key must be set together")
	}
	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		ServerName:   t.ServerName,
	}
	if t.CAFile != "" {
		caPEM, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no certificates in CA file %s", t.CAFile)
		}
		cfg.RootCAs = roots
	}
	return cfg, nil
}

// TemporalTLS returns the mTLS configuration for the Temporal client, or nil
// when the connection is plaintext.
func (c *Config) TemporalTLS() (*tls.Config, error) {
	t := ClientTLS{
		CertFile:   c.TemporalTLSCert,
		KeyFile:    c.TemporalTLSKey,
		CAFile:     c.TemporalTLSCACert,
		ServerName: c.TemporalTLSServerName,
	}
	if !t.Enabled() {
		return nil, nil
	}
	cfg, err := t.Load()
	if err != nil {
		return nil, fmt.Errorf("temporal tls: %w", err)
	}
	return cfg, nil
}
