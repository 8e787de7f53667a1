package banci

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Trust policy values for the upstream server certificate.
const (
	// TrustSystem verifies against the system root store. The upstream uses
	// a public CA, so this is the default.
	TrustSystem = "system"
	// TrustInsecure skips server certificate verification. Only for
	// environments whose trust store lacks the upstream's CA chain.
	TrustInsecure = "insecure"
	// Any other value is treated as a path to a PEM CA bundle.
)

// TLSOptions describes the outbound TLS identity and trust policy.
type TLSOptions struct {
	// CertFile is the path to the PEM client certificate.
	CertFile string
	// KeyFile is the path to the PEM client private key.
	KeyFile string
	// TrustPolicy is TrustSystem, TrustInsecure, or a CA bundle path.
	TrustPolicy string
}

// NewTLSConfig builds the mutual-TLS client configuration. The client
// certificate is the identity the access-control layer authenticates.
func NewTLSConfig(opts TLSOptions) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}

	switch opts.TrustPolicy {
	case TrustSystem, "":
		// System roots, the zero value.
	case TrustInsecure:
		cfg.InsecureSkipVerify = true
	default:
		pem, err := os.ReadFile(opts.TrustPolicy)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA bundle %s contains no certificates", opts.TrustPolicy)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// NewTransport builds the HTTP transport carrying the mTLS identity, with
// connection pool settings sized for a single-upstream gateway.
func NewTransport(tlsConf *tls.Config) *http.Transport {
	return &http.Transport{
		TLSClientConfig:     tlsConf,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
}
