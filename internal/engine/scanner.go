package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// segmentKind discriminates the three things template source is made of.
type segmentKind int

const (
	segText   segmentKind = iota // literal output
	segOutput                    // {{ expression }}
	segTag                       // {% tag %}
)

// segment is one scanned slice of template source. For output and tag
// segments, source is the inner text between the markers. Positions are
// 1-based template positions; inner is where source starts, so expression
// errors can point at the exact character.
type segment struct {
	kind      segmentKind
	source    string
	pos       int // position of the segment in the template
	inner     int // position of source within the template
	trimLeft  bool
	trimRight bool
}

var endRawMarker = regexp.MustCompile(`\{%-?\s*endraw\s*-?%\}`)

// scan splits template source into text, output, and tag segments. Markers
// may carry trim dashes ({{- -}} and {%- -%}); the resulting whitespace
// trimming is applied to neighboring text here, so later phases never see
// it.
func scan(src string) ([]segment, error) {
	var segs []segment
	pos := 0

	for pos < len(src) {
		next := -1
		var isOutput bool
		for i := pos; i+1 < len(src); i++ {
			if src[i] != '{' {
				continue
			}
			if src[i+1] == '{' {
				next, isOutput = i, true
				break
			}
			if src[i+1] == '%' {
				next, isOutput = i, false
				break
			}
		}

		if next < 0 {
			segs = append(segs, segment{kind: segText, source: src[pos:], pos: pos + 1})
			break
		}
		if next > pos {
			segs = append(segs, segment{kind: segText, source: src[pos:next], pos: pos + 1})
		}

		closer := "}}"
		kind := segOutput
		if !isOutput {
			closer = "%}"
			kind = segTag
		}

		inner := next + 2
		seg := segment{kind: kind, pos: next + 1}
		if inner < len(src) && src[inner] == '-' {
			seg.trimLeft = true
			inner++
		}
		seg.inner = inner + 1

		end := strings.Index(src[inner:], closer)
		if end < 0 {
			return nil, fmt.Errorf("unclosed %q at position %d", src[next:next+2], next+1)
		}
		end += inner

		body := src[inner:end]
		if strings.HasSuffix(body, "-") {
			seg.trimRight = true
			body = body[:len(body)-1]
		}
		seg.source = body
		segs = append(segs, seg)
		pos = end + 2

		// A raw tag swallows everything up to endraw as literal text.
		if kind == segTag && strings.TrimSpace(body) == "raw" {
			loc := endRawMarker.FindStringIndex(src[pos:])
			if loc == nil {
				return nil, fmt.Errorf("raw at position %d has no endraw", next+1)
			}
			segs[len(segs)-1] = segment{kind: segText, source: src[pos : pos+loc[0]], pos: pos + 1}
			pos += loc[1]
		}
	}

	applyTrim(segs)
	return segs, nil
}

// applyTrim strips whitespace off text segments adjacent to trim markers.
func applyTrim(segs []segment) {
	for i := range segs {
		if segs[i].trimLeft && i > 0 && segs[i-1].kind == segText {
			segs[i-1].source = strings.TrimRight(segs[i-1].source, " \t\r\n")
		}
		if segs[i].trimRight && i < len(segs)-1 && segs[i+1].kind == segText {
			segs[i+1].source = strings.TrimLeft(segs[i+1].source, " \t\r\n")
		}
	}
}

// tagName extracts the leading word of a tag segment.
func tagName(source string) string {
	s := strings.TrimSpace(source)
	for i := 0; i < len(s); i++ {
		if !isLetter(s[i]) && !isDigit(s[i]) {
			return s[:i]
		}
	}
	return s
}
