// Copyright 2024 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package render

import (
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var punctuation = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'",
	"\u201c", `"`, "\u201d", `"`,
	"\u2013", "-", "\u2014", "--",
	"\u2026", "...",
	"\u00a0", " ",
	"\u00df", "ss",
	"\u00e6", "ae", "\u00c6", "AE",
	"\u00f8", "o", "\u00d8", "O",
)

// ASCII folds s to printable ASCII for iPXE: typographic punctuation is
// replaced, diacritics are stripped and anything left becomes '?'.
// Line breaks and control characters turn into spaces.
func ASCII(s string) string {
	s = punctuation.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r' || unicode.IsControl(r):
			b.WriteByte(' ')
		case r > unicode.MaxASCII:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// labelToken turns a display name into a [a-z0-9_] token
func labelToken(name string) string {
	snake := strcase.ToSnake(ASCII(name))
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(snake) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	token := strings.TrimSuffix(b.String(), "_")
	if token == "" {
		return "item"
	}
	return token
}
