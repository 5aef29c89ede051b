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

package proxy

import (
	"github.com/omarpolo/galileo/sink"
	"github.com/omarpolo/galileo/tmpl"
)

// Kind classifies a request failure.
type Kind int

const (
	// BadRequest marks malformed input from the CGI side.
	BadRequest Kind = iota
	// NotImplemented marks a routing failure: empty PATH_INFO or no
	// matching ProxyConfig.
	NotImplemented
	// UpstreamUnreachable marks a DNS or connect failure.
	UpstreamUnreachable
	// UpstreamProtocol marks a malformed or oversized Gemini header,
	// or a redirect leaving the virtual host.
	UpstreamProtocol
	// UpstreamTimeout marks a connect, handshake or read/write
	// deadline expiring.
	UpstreamTimeout
	// UpstreamCharset marks a text/gemini response with an
	// unsupported charset parameter.
	UpstreamCharset
	// PeerAbort marks the FastCGI side going away; no error page is
	// rendered and the request ends flagged as a failure.
	PeerAbort
)

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "bad_request"
	case NotImplemented:
		return "not_implemented"
	case UpstreamUnreachable:
		return "upstream_unreachable"
	case UpstreamProtocol:
		return "upstream_protocol"
	case UpstreamTimeout:
		return "upstream_timeout"
	case UpstreamCharset:
		return "upstream_charset"
	case PeerAbort:
		return "peer_abort"
	default:
		return "unknown"
	}
}

// Status returns the CGI status code the kind renders as.
func (k Kind) Status() int {
	switch k {
	case BadRequest:
		return 400
	case PeerAbort:
		return 0
	default:
		return 501
	}
}

// Error is the typed error raised for every failure mode. Detail is
// the human-readable text shown on the rendered error page (or
// logged, for PeerAbort). GeminiCode is the
// origin's own status (e.g. 44, 51) for errors raised after a Gemini
// response header was parsed; zero when there is no such code (a
// routing failure, a connect failure, a local timeout).
type Error struct {
	Kind       Kind
	Detail     string
	GeminiCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Detail + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// RenderError renders e onto s using frags: every kind gets a full
// CGI status plus error page, except PeerAbort, which skips rendering
// (the peer is already gone) and simply calls Abort.
func RenderError(s sink.Sink, frags tmpl.Fragments, e *Error) {
	if e.Kind == PeerAbort {
		s.Abort()
		return
	}

	code := e.GeminiCode
	if code == 0 {
		code = e.Kind.Status()
	}

	s.SetStatus(e.Kind.Status())
	s.SetHeader("Content-Type", sink.ResolveContentType("text/html"))
	frags.Error(s, code, e.Detail)
	s.End(false)
}
