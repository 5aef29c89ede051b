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
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/omarpolo/galileo/cfg"
	"github.com/omarpolo/galileo/gemtext"
	"github.com/omarpolo/galileo/sink"
	"github.com/omarpolo/galileo/tmpl"
	"github.com/omarpolo/galileo/upstream"
)

// Serve drives a Client through the resolver, connector, TLS
// transport, Gemini protocol engine, body relay/translator and
// response sink, releasing every Client resource exactly once on
// return. Failures before the response body starts render a full
// error page through RenderError; a failure while the body is being
// relayed or translated ends the request with End(false), without
// closing open structural tags or emitting the document foot.
func Serve(ctx context.Context, client *Client, c *cfg.Config, dialer *upstream.Dialer, s sink.Sink, frags tmpl.Fragments) {
	defer client.release()

	req := client.Req
	pc := client.PC

	// A POST with a body is turned into a GET against the same path,
	// without ever contacting the origin: the form submission becomes
	// the query string, which is how Gemini carries user input.
	if req.Method == MethodPost && len(req.Body) > 0 {
		// req.Body is already the application/x-www-form-urlencoded
		// submission; it is used verbatim as the query string.
		location := req.ScriptName + req.PathInfo + "?" + string(req.Body)
		s.SetStatus(302)
		s.SetHeader("Location", location)
		s.End(true)
		return
	}

	conn, derr := dialer.Dial(ctx, pc.ProxyAddr, pc.ProxyPort, pc.ProxyName, pc.NoTLSSet())
	if derr != nil {
		RenderError(s, frags, classifyDialError(derr))
		return
	}
	client.addCloser(conn)

	if err := upstream.SetDeadlines(conn, c.TLSReadTimeout, c.TLSWriteTimeout); err != nil {
		RenderError(s, frags, newError(UpstreamUnreachable, "could not set I/O deadlines", err))
		return
	}

	resp, err := upstream.Exchange(conn, pc.ProxyName, req.PathInfo, req.Query, c.MaxResponseHeaderSize)
	if err != nil {
		RenderError(s, frags, classifyExchangeError(err))
		return
	}

	switch resp.StatusClass() {
	case 1:
		serveInput(s, frags, req, resp)

	case 2:
		serveSuccess(s, frags, pc, req, resp)

	case 3:
		serveRedirect(s, frags, pc, req, resp)

	default:
		RenderError(s, frags, &Error{
			Kind:       UpstreamProtocol,
			Detail:     resp.Meta,
			GeminiCode: resp.Code,
		})
	}
}

func serveInput(s sink.Sink, frags tmpl.Fragments, req Request, resp *upstream.Response) {
	s.SetStatus(200)
	s.SetHeader("Content-Type", sink.ResolveContentType("text/html"))
	frags.InputPage(s, resp.Meta, req.ScriptName+req.PathInfo)
	s.End(true)
}

func serveRedirect(s sink.Sink, frags tmpl.Fragments, pc *cfg.ProxyConfig, req Request, resp *upstream.Response) {
	location, local := ResolveLink(resp.Meta, pc.ProxyName, pc.ProxyPort, req.ScriptName)
	if !local {
		RenderError(s, frags, &Error{
			Kind:       UpstreamProtocol,
			Detail:     "redirect leaves the proxied host: " + resp.Meta,
			GeminiCode: resp.Code,
		})
		return
	}

	s.SetStatus(302)
	s.SetHeader("Location", location)
	s.End(true)
}

func serveSuccess(s sink.Sink, frags tmpl.Fragments, pc *cfg.ProxyConfig, req Request, resp *upstream.Response) {
	// Anything that isn't text/gemini is relayed byte for byte, with
	// the origin's meta string carried over verbatim as Content-Type.
	if !strings.HasPrefix(resp.Meta, "text/gemini") {
		s.SetStatus(200)
		s.SetHeader("Content-Type", resp.Meta)
		// Origins may drop the connection without a TLS close-notify;
		// an abrupt end of stream still counts as end of body.
		if _, err := io.Copy(s, resp.Body); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			s.End(false)
			return
		}
		s.End(true)
		return
	}

	mime, err := upstream.ParseMIME(resp.Meta)
	if err != nil {
		RenderError(s, frags, &Error{Kind: UpstreamCharset, Detail: err.Error(), GeminiCode: resp.Code})
		return
	}

	s.SetStatus(200)
	s.SetHeader("Content-Type", sink.ResolveContentType("text/html"))

	if err := frags.Head(s, mime.Lang, "", pc.Stylesheet); err != nil {
		s.End(false)
		return
	}

	tr := gemtext.Translator{
		Dst:       s,
		Fragments: frags,
		NoImgPrv:  pc.NoImgPrvSet(),
		ResolveLink: func(link string) string {
			resolved, _ := ResolveLink(link, pc.ProxyName, pc.ProxyPort, req.ScriptName)
			return resolved
		},
	}
	if err := tr.Translate(resp.Body); err != nil {
		s.End(false)
		return
	}

	frags.Foot(s, pc.NoNavbarSet(), pc.NoFooterSet())
	s.End(true)
}

func classifyDialError(err error) *Error {
	var de *upstream.DialError
	if errors.As(err, &de) {
		if errors.Is(de.Err, context.DeadlineExceeded) || os.IsTimeout(de.Err) {
			return newError(UpstreamTimeout, "upstream "+de.Op+" timed out", err)
		}
		return newError(UpstreamUnreachable, "can't "+de.Op+" to upstream", err)
	}
	return newError(UpstreamUnreachable, "can't reach upstream", err)
}

func classifyExchangeError(err error) *Error {
	var pe *upstream.ProtocolError
	if errors.As(err, &pe) {
		return newError(UpstreamProtocol, pe.Detail, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || os.IsTimeout(err) {
		return newError(UpstreamTimeout, "upstream read/write timed out", err)
	}
	return newError(UpstreamUnreachable, "upstream connection failed", err)
}
