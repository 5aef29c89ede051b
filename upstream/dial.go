/*
Copyright 2023 - 2025 Dima Krasner
Copyright 2022 Omar Polo

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package upstream dials Gemini origins and drives the one-line
// request/response exchange: DNS resolution, connect with fallback
// across the resolved addresses, the TLS client session, and the
// protocol engine that writes the request line and parses the
// response header.
package upstream

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"golang.org/x/sync/semaphore"
)

var errNoAddresses = errors.New("no addresses resolved")

// Dialer opens TCP+TLS connections to Gemini origins. A single Dialer
// is shared by every worker; DialSem bounds the number of outstanding
// dials so a burst of slow origins can't exhaust file descriptors.
type Dialer struct {
	Resolver *net.Resolver

	ConnectTimeout      time.Duration
	TLSHandshakeTimeout time.Duration

	// DialSem admits at most N outstanding dials. Nil disables the
	// limit (used by tests).
	DialSem *semaphore.Weighted
}

// NewDialer builds a Dialer bounded by maxOutstanding concurrent dials.
func NewDialer(connectTimeout, tlsHandshakeTimeout time.Duration, maxOutstanding int) *Dialer {
	d := &Dialer{
		Resolver:            net.DefaultResolver,
		ConnectTimeout:      connectTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
	}
	if maxOutstanding > 0 {
		d.DialSem = semaphore.NewWeighted(int64(maxOutstanding))
	}
	return d
}

// Dial resolves addr:port, connects to the first candidate that
// accepts the connection within ConnectTimeout, falling back to the
// next candidate on failure, then performs a TLS handshake with
// serverName as SNI. Certificate chain verification is intentionally
// disabled until trust-on-first-use pinning exists; origin TLS is
// accepted as-is.
func (d *Dialer) Dial(ctx context.Context, addr, port, serverName string, noTLS bool) (net.Conn, error) {
	if d.DialSem != nil {
		if err := d.DialSem.Acquire(ctx, 1); err != nil {
			return nil, &DialError{Op: "admission", Err: err}
		}
		defer d.DialSem.Release(1)
	}

	resolver := d.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	ips, err := resolver.LookupIPAddr(ctx, addr)
	if err != nil {
		return nil, &DialError{Op: "resolve", Err: err}
	}
	if len(ips) == 0 {
		return nil, &DialError{Op: "resolve", Err: errNoAddresses}
	}

	var conn net.Conn
	var lastErr error
	dialer := &net.Dialer{Timeout: d.ConnectTimeout}

	for _, ip := range ips {
		candidate := net.JoinHostPort(ip.IP.String(), port)

		connectCtx, cancel := context.WithTimeout(ctx, d.ConnectTimeout)
		c, err := dialer.DialContext(connectCtx, "tcp", candidate)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		conn = c
		break
	}

	if conn == nil {
		if lastErr == nil {
			lastErr = errNoAddresses
		}
		return nil, &DialError{Op: "connect", Err: lastErr}
	}

	if noTLS {
		return conn, nil
	}

	tlsConn := tls.Client(conn, &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: true,
	})

	hsCtx, cancel := context.WithTimeout(ctx, d.TLSHandshakeTimeout)
	defer cancel()
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		conn.Close()
		return nil, &DialError{Op: "tls", Err: err}
	}

	return tlsConn, nil
}

// DialError wraps a failure from one of the resolve/connect/tls
// phases, preserving which phase failed for logging and for mapping
// onto the proxy error taxonomy.
type DialError struct {
	Op  string
	Err error
}

func (e *DialError) Error() string { return "upstream dial: " + e.Op + ": " + e.Err.Error() }
func (e *DialError) Unwrap() error { return e.Err }
