package database

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/config"
)

// GetTLSConfig creates a TLS config for connecting to a database over mTLS.
// The client certificate is loaded when CertFile and KeyFile are set and the
// CA bundle when CAFile is set.
//
// Example usage:
//
//	tls, err := GetTLSConfig(config.TLS{CertFile: "tls.crt", KeyFile: "tls.key", CAFile: "ca.crt"})
//	if err != nil {
//		return err
//	}
func GetTLSConfig(opts config.TLS) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if opts.CertFile != "" || opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "Unable to load certfile/keyfile")
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if opts.CAFile != "" {
		caCert, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, errors.Wrap(err, "Unable to load CAfile")
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, errors.Errorf("no certificates found in CAfile %s", opts.CAFile)
		}
		cfg.RootCAs = caCertPool
	}

	return cfg, nil
}
