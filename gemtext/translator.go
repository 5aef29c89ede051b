/*
Copyright 2022 Omar Polo
Copyright 2023 - 2025 Dima Krasner

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

// Package gemtext implements the streaming text/gemini -> HTML
// translator: a line-oriented state machine that keeps track of which
// structural tag is currently open (a preformatted block, a bullet
// list, or a link navbar) and closes it before opening a different
// one, since the three are mutually exclusive in their opening tags.
package gemtext

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/omarpolo/galileo/danger"
	"github.com/omarpolo/galileo/tmpl"
)

// state bits for the structural tag currently open; at most one is
// set at a time.
type state int

const (
	statePre state = 1 << iota
	stateList
	stateNav
)

// imageSuffixes are the extensions recognized as image-like,
// triggering a <figure> preview instead of a navbar entry.
var imageSuffixes = []string{".jpg", ".jpeg", ".gif", ".png", ".svg", ".webp"}

// Translator converts a text/gemini body, line by line, into an HTML
// fragment written to Dst. It does not emit the surrounding document
// head/foot; callers invoke Fragments.Head/Foot around a Translator's
// output.
type Translator struct {
	Dst       io.Writer
	Fragments tmpl.Fragments

	// NoImgPrv disables the <figure> preview for image-like links,
	// rendering them as ordinary navbar entries instead.
	NoImgPrv bool

	// ResolveLink rewrites a link target before it is emitted,
	// turning same-host gemini:// URLs into local paths.
	ResolveLink func(url string) string

	state state
}

// Translate reads complete CRLF- or LF-terminated lines from src until
// EOF, translating each into HTML written to Dst, then flushes any
// structural tag still open. It returns on the first write or read
// error (other than io.EOF).
func (t *Translator) Translate(src io.Reader) error {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	scanner.Split(scanLinesTolerant)

	for scanner.Scan() {
		if err := t.line(danger.String(scanner.Bytes())); err != nil {
			return err
		}
	}
	// Origins may drop the connection without a TLS close-notify; an
	// abrupt end of stream still flushes open tags like a clean EOF.
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}

	return t.Close()
}

// scanLinesTolerant is bufio.ScanLines with \r\n as well as bare \n
// accepted as the line terminator.
func scanLinesTolerant(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line := data[:i]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		return i + 1, line, nil
	}

	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}

// Close flushes any structural tag still open, preformatted block
// first, then list, then navbar. It is idempotent: calling it with
// nothing open writes nothing.
func (t *Translator) Close() error {
	if t.state&statePre != 0 {
		if err := t.Fragments.PreClose(t.Dst); err != nil {
			return err
		}
		t.state &^= statePre
	}

	if err := t.closeList(); err != nil {
		return err
	}

	return t.closeNav()
}

func (t *Translator) closeList() error {
	if t.state&stateList == 0 {
		return nil
	}
	if _, err := io.WriteString(t.Dst, "</ul>"); err != nil {
		return err
	}
	t.state &^= stateList
	return nil
}

func (t *Translator) closeNav() error {
	if t.state&stateNav == 0 {
		return nil
	}
	if _, err := io.WriteString(t.Dst, "</ul></nav>"); err != nil {
		return err
	}
	t.state &^= stateNav
	return nil
}

func (t *Translator) closeListAndNav() error {
	if err := t.closeList(); err != nil {
		return err
	}
	return t.closeNav()
}

func escape(s string) string {
	return html.EscapeString(s)
}

// line classifies a single gemtext line by its prefix and translates
// it.
func (t *Translator) line(raw string) error {
	if t.state&statePre != 0 {
		if strings.HasPrefix(raw, "```") {
			t.state &^= statePre
			return t.Fragments.PreClose(t.Dst)
		}

		if _, err := io.WriteString(t.Dst, escape(raw)); err != nil {
			return err
		}
		_, err := io.WriteString(t.Dst, "\n")
		return err
	}

	if strings.HasPrefix(raw, "```") {
		if err := t.closeListAndNav(); err != nil {
			return err
		}
		t.state |= statePre
		return t.Fragments.PreOpen(t.Dst, wrapAlt(strings.TrimPrefix(raw, "```")))
	}

	switch {
	case strings.HasPrefix(raw, "=>"):
		return t.link(raw)

	case strings.HasPrefix(raw, "*"):
		return t.bullet(raw)

	case strings.HasPrefix(raw, ">"):
		if err := t.closeListAndNav(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(t.Dst, "<blockquote>%s</blockquote>", escape(strings.TrimPrefix(raw, ">")))
		return err

	case strings.HasPrefix(raw, "###"):
		return t.heading(raw, 3)

	case strings.HasPrefix(raw, "##"):
		return t.heading(raw, 2)

	case strings.HasPrefix(raw, "#"):
		return t.heading(raw, 1)

	case raw == "":
		return t.closeListAndNav()

	default:
		if err := t.closeListAndNav(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(t.Dst, "<p>%s</p>", escape(raw))
		return err
	}
}

func (t *Translator) heading(raw string, level int) error {
	if err := t.closeListAndNav(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(t.Dst, "<h%d>%s</h%d>", level, escape(raw[level:]), level)
	return err
}

func (t *Translator) bullet(raw string) error {
	if !strings.HasPrefix(raw, "* ") {
		// a lone "*" without the space is an ordinary paragraph
		if err := t.closeListAndNav(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(t.Dst, "<p>%s</p>", escape(raw))
		return err
	}

	if err := t.closeNav(); err != nil {
		return err
	}

	if t.state&stateList == 0 {
		if _, err := io.WriteString(t.Dst, "<ul>"); err != nil {
			return err
		}
		t.state |= stateList
	}

	_, err := fmt.Fprintf(t.Dst, "<li>%s</li>", escape(strings.TrimPrefix(raw, "* ")))
	return err
}

func (t *Translator) link(raw string) error {
	if err := t.closeList(); err != nil {
		return err
	}

	rest := strings.TrimPrefix(raw, "=>")
	rest = strings.TrimLeft(rest, " \t")

	var url, label string
	if i := strings.IndexAny(rest, " \t"); i < 0 {
		url = rest
		label = rest
	} else {
		url = rest[:i]
		label = strings.TrimLeft(rest[i:], " \t")
		if label == "" {
			label = url
		}
	}

	resolved := url
	if t.ResolveLink != nil {
		resolved = t.ResolveLink(url)
	}

	if !t.NoImgPrv && isImageLike(url) {
		if err := t.closeNav(); err != nil {
			return err
		}
		return t.Fragments.Figure(t.Dst, resolved, wrapAlt(label))
	}

	if t.state&stateNav == 0 {
		if _, err := io.WriteString(t.Dst, "<nav><ul>"); err != nil {
			return err
		}
		t.state |= stateNav
	}

	_, err := fmt.Fprintf(t.Dst, "<li><a href='%s'>%s</a></li>", escapeAttr(resolved), escape(label))
	return err
}

// escapeAttr escapes a URL for use inside a single-quoted HTML
// attribute: whitespace, quotes and backslashes are percent-encoded,
// everything else passes through.
func escapeAttr(url string) string {
	var b strings.Builder
	b.Grow(len(url))
	for i := 0; i < len(url); i++ {
		switch c := url[i]; c {
		case ' ', '\t', '\'', '\\':
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isImageLike(url string) bool {
	lower := strings.ToLower(url)
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
