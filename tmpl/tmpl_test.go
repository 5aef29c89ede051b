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

package tmpl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadWithLangAndStylesheet(t *testing.T) {
	var b strings.Builder
	require.NoError(t, Default{}.Head(&b, "en", "a title", "/style.css"))

	out := b.String()
	assert.Contains(t, out, "<html lang='en'>")
	assert.Contains(t, out, "<title>a title</title>")
	assert.Contains(t, out, "href='/style.css'")
	assert.True(t, strings.HasSuffix(out, "<body>"))
}

func TestHeadWithoutOptionalParts(t *testing.T) {
	var b strings.Builder
	require.NoError(t, Default{}.Head(&b, "", "", ""))

	out := b.String()
	assert.Contains(t, out, "<html>")
	assert.NotContains(t, out, "lang=")
	assert.NotContains(t, out, "<title>")
	assert.NotContains(t, out, "stylesheet")
}

func TestFootHonorsFlags(t *testing.T) {
	var full strings.Builder
	require.NoError(t, Default{}.Foot(&full, false, false))
	assert.Contains(t, full.String(), "<nav")
	assert.Contains(t, full.String(), "<footer>")

	var bare strings.Builder
	require.NoError(t, Default{}.Foot(&bare, true, true))
	assert.Equal(t, "</body></html>", bare.String())
}

func TestErrorEscapesMeta(t *testing.T) {
	var b strings.Builder
	require.NoError(t, Default{}.Error(&b, 51, "<not found>"))
	assert.Contains(t, b.String(), "51")
	assert.Contains(t, b.String(), "&lt;not found&gt;")
	assert.NotContains(t, b.String(), "<not found>")
}

func TestInputPagePostsBackToAction(t *testing.T) {
	var b strings.Builder
	require.NoError(t, Default{}.InputPage(&b, "enter your name", "/script/search"))

	out := b.String()
	assert.Contains(t, out, "method='post'")
	assert.Contains(t, out, "action='/script/search'")
	assert.Contains(t, out, "enter your name")
}

func TestPreOpenCarriesAltText(t *testing.T) {
	var b strings.Builder
	require.NoError(t, Default{}.PreOpen(&b, "ascii art"))
	assert.Equal(t, "<pre aria-label='ascii art'>", b.String())

	b.Reset()
	require.NoError(t, Default{}.PreOpen(&b, ""))
	assert.Equal(t, "<pre>", b.String())
}

func TestFigureEscapesURLAndCaption(t *testing.T) {
	var b strings.Builder
	require.NoError(t, Default{}.Figure(&b, "/cat.png", "a <cat>"))
	assert.Contains(t, b.String(), "src='/cat.png'")
	assert.Contains(t, b.String(), "a &lt;cat&gt;")
}
