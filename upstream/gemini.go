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

package upstream

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// MaxRequestLine is the hard ceiling the Gemini protocol puts on the
// outgoing request line, including its trailing CRLF.
const MaxRequestLine = 1024

// Response is a parsed Gemini response header: the two-digit status
// and the meta string that follows the single space.
type Response struct {
	Code int
	Meta string

	// Body is open for reading for as long as the underlying
	// connection is. Callers close Conn when done, not Body.
	Body io.Reader
}

// StatusClass returns the first digit of Code (1..6).
func (r Response) StatusClass() int { return r.Code / 10 }

// MIME is the parsed Content-Type meta for a 2x response: the type
// itself, and the recognized charset/lang parameters.
type MIME struct {
	Type    string
	Charset string
	Lang    string
}

// IsGemtext reports whether the response should be run through the
// gemtext translator rather than relayed byte for byte.
func (m MIME) IsGemtext() bool { return m.Type == "text/gemini" }

// BuildRequestLine renders the one-line Gemini request for proxyName
// and pathInfo (used verbatim; it arrives already URL-encoded from
// CGI). It returns an error if the encoded line, CRLF included, would
// exceed MaxRequestLine.
func BuildRequestLine(proxyName, pathInfo, query string) (string, error) {
	var b strings.Builder
	b.WriteString("gemini://")
	b.WriteString(proxyName)
	b.WriteByte('/')
	b.WriteString(strings.TrimPrefix(pathInfo, "/"))
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	b.WriteString("\r\n")

	line := b.String()
	if len(line) > MaxRequestLine {
		return "", fmt.Errorf("upstream: request line exceeds %d bytes", MaxRequestLine)
	}
	return line, nil
}

// Exchange writes the request line to conn and reads back the
// response header. The conn's read/write deadlines are the caller's
// responsibility to set before calling Exchange.
func Exchange(conn net.Conn, proxyName, pathInfo, query string, maxHeader int) (*Response, error) {
	line, err := BuildRequestLine(proxyName, pathInfo, query)
	if err != nil {
		return nil, err
	}

	if _, err := io.WriteString(conn, line); err != nil {
		return nil, fmt.Errorf("upstream: write request: %w", err)
	}

	r := bufio.NewReaderSize(conn, maxHeader)
	header, err := readHeaderLine(r, maxHeader)
	if err != nil {
		return nil, err
	}

	code, meta, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	return &Response{Code: code, Meta: meta, Body: r}, nil
}

// readHeaderLine reads a strict-CRLF line up to maxLen bytes,
// CRLF included.
func readHeaderLine(r *bufio.Reader, maxLen int) (string, error) {
	var b strings.Builder

	for {
		chunk, err := r.ReadString('\n')
		b.WriteString(chunk)
		if b.Len() > maxLen {
			return "", &ProtocolError{Detail: "response header too large"}
		}
		if err == nil {
			break
		}
		if err == io.EOF {
			return "", &ProtocolError{Detail: "connection closed before header"}
		}
		return "", fmt.Errorf("upstream: read header: %w", err)
	}

	line := b.String()
	if !strings.HasSuffix(line, "\r\n") {
		return "", &ProtocolError{Detail: "response header not CRLF-terminated"}
	}
	return strings.TrimSuffix(line, "\r\n"), nil
}

// parseHeader validates and splits a DIGIT DIGIT SP META header.
func parseHeader(line string) (int, string, error) {
	if len(line) < 4 {
		return 0, "", &ProtocolError{Detail: "response header too short"}
	}
	if line[0] < '0' || line[0] > '9' || line[1] < '0' || line[1] > '9' || line[2] != ' ' {
		return 0, "", &ProtocolError{Detail: "malformed response header"}
	}

	code, err := strconv.Atoi(line[:2])
	if err != nil || code < 10 || code > 69 {
		return 0, "", &ProtocolError{Detail: "invalid status code"}
	}

	return code, line[3:], nil
}

// ParseMIME splits a 2x meta string ("text/gemini; charset=utf-8;
// lang=en") into its type and recognized parameters. Only utf-8 and
// ascii charsets are accepted; anything else is reported via the
// returned error so the caller can raise UpstreamCharset.
func ParseMIME(meta string) (MIME, error) {
	parts := strings.Split(meta, ";")
	m := MIME{Type: strings.TrimSpace(parts[0])}

	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		switch {
		case strings.HasPrefix(p, "charset="):
			m.Charset = strings.ToLower(strings.TrimPrefix(p, "charset="))
		case strings.HasPrefix(p, "lang="):
			m.Lang = strings.TrimPrefix(p, "lang=")
		}
	}

	if m.Charset == "" {
		m.Charset = "utf-8"
	}
	if m.Charset != "utf-8" && m.Charset != "ascii" {
		return m, &ProtocolError{Detail: "unsupported charset: " + m.Charset}
	}

	return m, nil
}

// ProtocolError marks a malformed or unsupported Gemini response,
// mapping onto the proxy's UpstreamProtocol/UpstreamCharset kinds.
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string { return "upstream protocol: " + e.Detail }

func deadline(d time.Duration) time.Time {
	return time.Now().Add(d)
}

// SetDeadlines applies read/write deadlines derived from the
// configured timeouts to conn, ahead of calling Exchange.
func SetDeadlines(conn net.Conn, readTimeout, writeTimeout time.Duration) error {
	if writeTimeout > 0 {
		if err := conn.SetWriteDeadline(deadline(writeTimeout)); err != nil {
			return err
		}
	}
	if readTimeout > 0 {
		if err := conn.SetReadDeadline(deadline(readTimeout)); err != nil {
			return err
		}
	}
	return nil
}
