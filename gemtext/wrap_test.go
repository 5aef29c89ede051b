/*
Copyright 2023 - 2026 Dima Krasner
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

package gemtext

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
)

func TestWrapAltShortStringUntouched(t *testing.T) {
	assert.Equal(t, "ascii art", wrapAlt("ascii art"))
	assert.Equal(t, "", wrapAlt(""))
}

func TestWrapAltBreaksOnWordBoundaries(t *testing.T) {
	long := strings.Repeat("word ", 40)
	wrapped := wrapAlt(long)

	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, runewidth.StringWidth(line), maxAltWidth)
		assert.False(t, strings.HasPrefix(line, " "))
		assert.False(t, strings.HasSuffix(line, " "))
	}
}

func TestWrapAltPreservesWords(t *testing.T) {
	long := strings.Repeat("alpha beta gamma ", 10)
	wrapped := wrapAlt(long)
	assert.Equal(t, strings.Fields(long), strings.Fields(wrapped))
}

func TestWrapAltSplitsUnbrokenWord(t *testing.T) {
	wrapped := wrapAlt(strings.Repeat("x", 200))

	lines := strings.Split(wrapped, "\n")
	assert.Greater(t, len(lines), 1)
	for _, line := range lines {
		assert.LessOrEqual(t, runewidth.StringWidth(line), maxAltWidth)
	}
	assert.Equal(t, strings.Repeat("x", 200), strings.Join(lines, ""))
}

func TestWrapAltCollapsesWhitespace(t *testing.T) {
	long := "spaced \t out " + strings.Repeat("filler ", 20)
	wrapped := wrapAlt(long)
	assert.NotContains(t, wrapped, "\t")
	assert.NotContains(t, wrapped, "  ")
}
