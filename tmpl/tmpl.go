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

// Package tmpl renders the HTML fragments the proxy invokes at fixed
// points: the document head and foot, an error page, an input-prompt
// page and an image preview figure. It is a pluggable interface so a
// different skin can be substituted without touching the proxy state
// machine or the gemtext translator.
package tmpl

import (
	"fmt"
	"html"
	"io"
)

// Fragments renders the HTML fragments surrounding a translated or
// error response. Implementations must not assume buffering: every
// method may be called with a writer that flushes immediately.
type Fragments interface {
	// Head opens the HTML document: doctype, <html> with an optional
	// lang attribute, <head> with an optional stylesheet link, and
	// the opening <body>.
	Head(w io.Writer, lang, title, stylesheet string) error

	// Foot closes the document: </body></html>, optionally preceded
	// by a navbar and a footer fragment.
	Foot(w io.Writer, noNavbar, noFooter bool) error

	// Figure renders an image-like link as a <figure> preview.
	Figure(w io.Writer, url, alt string) error

	// PreOpen opens a preformatted block, given the fence's alt text.
	PreOpen(w io.Writer, alt string) error

	// PreClose closes a preformatted block.
	PreClose(w io.Writer) error

	// Error renders a full error page for a Gemini status code and
	// its meta string.
	Error(w io.Writer, code int, meta string) error

	// InputPage renders an HTML form prompting for the input a
	// Gemini "1x INPUT" response requested, posting back to action.
	InputPage(w io.Writer, prompt, action string) error
}

// Default is the plain, dependency-free HTML skin Galileo ships with.
type Default struct{}

func (Default) Head(w io.Writer, lang, title, stylesheet string) error {
	if _, err := io.WriteString(w, "<!doctype html>"); err != nil {
		return err
	}

	if lang != "" {
		if _, err := fmt.Fprintf(w, "<html lang='%s'>", html.EscapeString(lang)); err != nil {
			return err
		}
	} else {
		if _, err := io.WriteString(w, "<html>"); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w, "<head>"); err != nil {
		return err
	}

	if title != "" {
		if _, err := fmt.Fprintf(w, "<title>%s</title>", html.EscapeString(title)); err != nil {
			return err
		}
	}

	if stylesheet != "" {
		if _, err := fmt.Fprintf(w, "<link rel='stylesheet' href='%s' />", html.EscapeString(stylesheet)); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "</head><body>")
	return err
}

func (Default) Foot(w io.Writer, noNavbar, noFooter bool) error {
	if !noNavbar {
		if _, err := io.WriteString(w, "<nav class='bottom'><ul><li><a href='#'>Back to top</a></li></ul></nav>"); err != nil {
			return err
		}
	}
	if !noFooter {
		if _, err := io.WriteString(w, "<footer><hr><small>proxied content</small></footer>"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "</body></html>")
	return err
}

func (Default) Figure(w io.Writer, url, alt string) error {
	_, err := fmt.Fprintf(
		w,
		"<figure><a href='%s'><img src='%s' alt='%s' loading='lazy'/></a><figcaption>%s</figcaption></figure>",
		html.EscapeString(url), html.EscapeString(url), html.EscapeString(alt), html.EscapeString(alt),
	)
	return err
}

func (Default) PreOpen(w io.Writer, alt string) error {
	if alt == "" {
		_, err := io.WriteString(w, "<pre>")
		return err
	}
	_, err := fmt.Fprintf(w, "<pre aria-label='%s'>", html.EscapeString(alt))
	return err
}

func (Default) PreClose(w io.Writer) error {
	_, err := io.WriteString(w, "</pre>")
	return err
}

func (Default) Error(w io.Writer, code int, meta string) error {
	_, err := fmt.Fprintf(
		w,
		"<!doctype html><html><head><title>Error</title></head><body><h1>Proxy error</h1><p>Gemini status %d: %s</p></body></html>",
		code, html.EscapeString(meta),
	)
	return err
}

func (Default) InputPage(w io.Writer, prompt, action string) error {
	_, err := fmt.Fprintf(
		w,
		"<!doctype html><html><head><title>Input required</title></head><body><p>%s</p>"+
			"<form method='post' enctype='application/x-www-form-urlencoded' action='%s'><input name='q' type='text' autofocus/>"+
			"<input type='submit' value='Submit'/></form></body></html>",
		html.EscapeString(prompt), html.EscapeString(action),
	)
	return err
}
