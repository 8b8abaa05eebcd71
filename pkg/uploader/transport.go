// Copyright (c) 2025, The Snail Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package uploader

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/snailops/snail/pkg/defaults"
	snailerrors "github.com/snailops/snail/pkg/errors"
)

// TLSOptions selects server trust and client identity for the upload
// channel. Zero value means system roots and no client certificate.
type TLSOptions struct {
	// CAFile adds a PEM bundle to the trusted roots, for ingestion
	// endpoints with private CAs.
	CAFile string
	// CertFile and KeyFile enable mutual TLS.
	CertFile string
	KeyFile  string
	// InsecureSkipVerify disables server certificate verification. Test
	// environments only.
	InsecureSkipVerify bool
}

// BuildTLSConfig materializes the options into a tls.Config with a TLS 1.2
// floor.
func BuildTLSConfig(opts TLSOptions) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec
	}

	if opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, snailerrors.Wrap(snailerrors.ErrCodeConfigInvalid,
				"failed to read CA bundle", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, snailerrors.New(snailerrors.ErrCodeConfigInvalid,
				"CA bundle contains no usable certificates")
		}
		cfg.RootCAs = pool
	}

	if opts.CertFile != "" || opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, snailerrors.Wrap(snailerrors.ErrCodeConfigInvalid,
				"failed to load client certificate", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// NewHTTPClient builds an HTTP client with the tuned transport and the
// given TLS options. A non-positive timeout keeps the default. Used where
// requests go to the ingestion endpoint outside of report delivery, such as
// the API key exchange.
func NewHTTPClient(opts TLSOptions, timeout time.Duration) (*http.Client, error) {
	tlsCfg, err := BuildTLSConfig(opts)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaults.UploadTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(tlsCfg),
	}, nil
}

// newTransport creates the tuned transport for upload requests.
func newTransport(tlsCfg *tls.Config) *http.Transport {
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   defaults.HTTPConnectTimeout,
			KeepAlive: defaults.HTTPKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   defaults.HTTPTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaults.HTTPResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       defaults.HTTPIdleConnTimeout,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		ForceAttemptHTTP2:     true,
		TLSClientConfig:       tlsCfg,
	}
}
