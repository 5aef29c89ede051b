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

	"github.com/mattn/go-runewidth"
)

// maxAltWidth bounds how wide a single line of a fence's alt text or
// a figure caption is allowed to get before it is broken across
// lines, so a pathologically long ``` alt string doesn't produce one
// unreadable <figcaption> line.
const maxAltWidth = 72

// splitWord breaks a single word wider than width display columns
// into chunks that each fit.
func splitWord(word string, width int) []string {
	var chunks []string
	var chunk strings.Builder
	w := 0

	for _, r := range word {
		rw := runewidth.RuneWidth(r)
		if w+rw > width && chunk.Len() > 0 {
			chunks = append(chunks, chunk.String())
			chunk.Reset()
			w = 0
		}
		chunk.WriteRune(r)
		w += rw
	}

	if chunk.Len() > 0 {
		chunks = append(chunks, chunk.String())
	}
	return chunks
}

// wrapAlt wraps a fence's alt text or a figure caption to maxAltWidth
// display columns, joining the result with newlines so it renders
// sanely inside an aria-label or figcaption regardless of how long a
// line the remote server sent. A string that already fits is returned
// unchanged; when wrapping, runs of whitespace collapse to a single
// space.
func wrapAlt(s string) string {
	if runewidth.StringWidth(s) <= maxAltWidth {
		return s
	}

	var lines []string
	var line strings.Builder
	w := 0

	flush := func() {
		if line.Len() > 0 {
			lines = append(lines, line.String())
			line.Reset()
			w = 0
		}
	}

	for _, word := range strings.Fields(s) {
		ww := runewidth.StringWidth(word)

		if ww > maxAltWidth {
			flush()
			lines = append(lines, splitWord(word, maxAltWidth)...)
			continue
		}

		sep := 0
		if line.Len() > 0 {
			sep = 1
		}
		if w+sep+ww > maxAltWidth {
			flush()
			sep = 0
		}
		if sep > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
		w += sep + ww
	}
	flush()

	return strings.Join(lines, "\n")
}
