/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

/*
Package transportsec optionally wraps the Server Shell's peer
connections in TLS. The core (internal/raft) and the codec
(internal/wire) never see a net.Conn at all, so encryption lives
entirely in internal/clusterserver's dialer/listener, config-gated
and off by default, and the consensus core stays transport-agnostic.

Certificates are self-signed and minted at boot from an Ed25519 key
(golang.org/x/crypto/ed25519); there is no interoperability
requirement with an external CA here.
*/
package transportsec

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/ed25519"
)

// CertConfig controls the self-signed certificate minted for a node.
type CertConfig struct {
	Organization string
	CommonName   string
	ValidityDays int
	SANs         []string
}

// DefaultCertConfig returns a certificate good for a year, valid for
// identifier on every address in sans.
func DefaultCertConfig(identifier string, sans []string) CertConfig {
	return CertConfig{
		Organization: "raftkit",
		CommonName:   identifier,
		ValidityDays: 365,
		SANs:         sans,
	}
}

// GenerateSelfSignedCert mints an Ed25519 key and a self-signed leaf
// certificate over it, returned as a ready-to-use tls.Certificate.
func GenerateSelfSignedCert(cfg CertConfig) (tls.Certificate, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("transportsec: generate key: %w", err)
	}

	serialLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("transportsec: generate serial: %w", err)
	}

	notBefore := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{cfg.Organization},
			CommonName:   cfg.CommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(time.Duration(cfg.ValidityDays) * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		DNSNames:              cfg.SANs,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("transportsec: create certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}, nil
}

// ServerConfig builds a *tls.Config suitable for clusterserver's
// listener. Every client must present a certificate, but it is not
// verified: any certificate is accepted and none is pinned (the
// config is a fixed, out-of-band-trusted peer map; there is no public
// CA in this picture).
func ServerConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		ClientAuth:         tls.RequireAnyClientCert,
		InsecureSkipVerify: false,
		MinVersion:         tls.VersionTLS13,
	}
}

// DialConfig builds the *tls.Config an outbound peerLink uses. Peer
// identity is established by the static config map, not by
// certificate chain validation, so verification of the server's chain
// is skipped the same way ServerConfig skips client verification;
// the certificate presented is still required, just not checked
// against a root pool.
func DialConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS13,
	}
}
