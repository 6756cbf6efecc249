// Package filters bundles the built-in filter packs the template pipeline
// registers by default. Packs are plain structs whose exported methods
// follow the pipeline calling convention: the running value arrives first,
// template arguments follow, and results are a single value with an
// optional trailing error. The package knows nothing about registration;
// the bank discovers methods by reflection.
package filters

import (
	"fmt"
	"html"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/rivo/uniseg"

	"github.com/zjrosen/tamis/internal/values"
)

// Standard implements the string, collection and arithmetic filters every
// template can rely on. It binds the environment for its clock, so "now"
// follows the render clock when one is pinned.
type Standard struct {
	env Environment
}

// BindEnvironment captures the environment's clock. Environments without
// one are ignored.
func (s *Standard) BindEnvironment(env any) {
	if e, ok := env.(Environment); ok {
		s.env = e
	}
}

func (s Standard) now() time.Time {
	if s.env != nil {
		return s.env.Now()
	}
	return time.Now()
}

var (
	scriptBlocks = regexp.MustCompile(`(?is)<script.*?</script>`)
	styleBlocks  = regexp.MustCompile(`(?is)<style.*?</style>`)
	htmlTags     = regexp.MustCompile(`(?s)<[^>]*?>`)
)

// Size reports the element count of a collection or the character count of
// a string. Anything else is sizeless and yields zero.
func (Standard) Size(input any) int {
	n, _ := values.Len(input)
	return n
}

// Downcase lowercases the input's string form.
func (Standard) Downcase(input any) string {
	return strings.ToLower(values.Str(input))
}

// Upcase uppercases the input's string form.
func (Standard) Upcase(input any) string {
	return strings.ToUpper(values.Str(input))
}

// Capitalize upcases the first character and downcases the rest.
func (Standard) Capitalize(input any) string {
	s := strings.ToLower(values.Str(input))
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Strip trims leading and trailing whitespace.
func (Standard) Strip(input any) string {
	return strings.TrimSpace(values.Str(input))
}

// Lstrip trims leading whitespace.
func (Standard) Lstrip(input any) string {
	return strings.TrimLeftFunc(values.Str(input), unicode.IsSpace)
}

// Rstrip trims trailing whitespace.
func (Standard) Rstrip(input any) string {
	return strings.TrimRightFunc(values.Str(input), unicode.IsSpace)
}

// StripNewlines removes every newline from the input.
func (Standard) StripNewlines(input any) string {
	s := strings.ReplaceAll(values.Str(input), "\r\n", "")
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// NewlineToBr inserts an HTML break before each newline.
func (Standard) NewlineToBr(input any) string {
	s := strings.ReplaceAll(values.Str(input), "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br />\n")
}

// Replace substitutes every occurrence of find with with.
func (Standard) Replace(input, find, with any) string {
	return strings.ReplaceAll(values.Str(input), values.Str(find), values.Str(with))
}

// ReplaceFirst substitutes only the first occurrence of find.
func (Standard) ReplaceFirst(input, find, with any) string {
	return strings.Replace(values.Str(input), values.Str(find), values.Str(with), 1)
}

// Remove deletes every occurrence of find.
func (Standard) Remove(input, find any) string {
	return strings.ReplaceAll(values.Str(input), values.Str(find), "")
}

// RemoveFirst deletes only the first occurrence of find.
func (Standard) RemoveFirst(input, find any) string {
	return strings.Replace(values.Str(input), values.Str(find), "", 1)
}

// Append concatenates suffix onto the input's string form.
func (Standard) Append(input, suffix any) string {
	return values.Str(input) + values.Str(suffix)
}

// Prepend concatenates prefix before the input's string form.
func (Standard) Prepend(input, prefix any) string {
	return values.Str(prefix) + values.Str(input)
}

// Split divides the input on sep, dropping trailing empty fields. An empty
// separator splits into characters.
func (Standard) Split(input, sep any) []any {
	parts := strings.Split(values.Str(input), values.Str(sep))
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

// Join renders each element and joins them with sep.
func (Standard) Join(input, sep any) string {
	items, ok := values.Slice(input)
	if !ok {
		return values.Str(input)
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = values.Str(it)
	}
	return strings.Join(parts, values.Str(sep))
}

// First returns the first element of a collection, or nil.
func (Standard) First(input any) any {
	if items, ok := values.Slice(input); ok && len(items) > 0 {
		return items[0]
	}
	return nil
}

// Last returns the last element of a collection, or nil.
func (Standard) Last(input any) any {
	if items, ok := values.Slice(input); ok && len(items) > 0 {
		return items[len(items)-1]
	}
	return nil
}

// Map projects the named property out of each element.
func (Standard) Map(input, key any) any {
	items, ok := values.Slice(input)
	if !ok {
		return values.Property(input, values.Str(key))
	}
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = values.Property(it, values.Str(key))
	}
	return out
}

// Reverse returns the collection's elements in reverse order.
func (Standard) Reverse(input any) any {
	items, ok := values.Slice(input)
	if !ok {
		return input
	}
	out := make([]any, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return out
}

// Sort orders a collection ascending. An optional property name sorts the
// elements by that member instead of by the elements themselves.
func (Standard) Sort(input any, args ...any) any {
	items, ok := values.Slice(input)
	if !ok {
		return input
	}
	out := make([]any, len(items))
	copy(out, items)
	var key string
	if len(args) > 0 {
		key = values.Str(args[0])
	}
	sortSlice(out, func(a, b any) int {
		if key != "" {
			a, b = values.Property(a, key), values.Property(b, key)
		}
		return values.Compare(a, b)
	})
	return out
}

// Uniq removes duplicate elements, keeping first occurrences in order.
func (Standard) Uniq(input any) any {
	items, ok := values.Slice(input)
	if !ok {
		return input
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]any, 0, len(items))
	for _, it := range items {
		id := identity(it)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Truncate shortens the input to at most length characters, ellipsis
// included. Characters are counted as grapheme clusters, so a flag emoji
// or a combining sequence is one character, not several. Length defaults
// to 50, the ellipsis to "...".
func (Standard) Truncate(input any, args ...any) string {
	s := values.Str(input)
	length := 50
	ellipsis := "..."
	if len(args) > 0 {
		if n, ok := values.Int(args[0]); ok {
			length = n
		}
	}
	if len(args) > 1 {
		ellipsis = values.Str(args[1])
	}

	if uniseg.GraphemeClusterCount(s) <= length {
		return s
	}
	keep := length - uniseg.GraphemeClusterCount(ellipsis)
	if keep < 0 {
		keep = 0
	}
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for i := 0; i < keep && g.Next(); i++ {
		b.WriteString(g.Str())
	}
	b.WriteString(ellipsis)
	return b.String()
}

// TruncateWords shortens the input to at most n words. The count defaults
// to 15, the ellipsis to "...".
func (Standard) TruncateWords(input any, args ...any) string {
	s := values.Str(input)
	n := 15
	ellipsis := "..."
	if len(args) > 0 {
		if got, ok := values.Int(args[0]); ok {
			n = got
		}
	}
	if len(args) > 1 {
		ellipsis = values.Str(args[1])
	}
	if n < 1 {
		n = 1
	}
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + ellipsis
}

// Plus adds. Two integral operands stay integral.
func (Standard) Plus(input, operand any) any {
	return arith(input, operand,
		func(a, b int) int { return a + b },
		func(a, b float64) float64 { return a + b })
}

// Minus subtracts. Two integral operands stay integral.
func (Standard) Minus(input, operand any) any {
	return arith(input, operand,
		func(a, b int) int { return a - b },
		func(a, b float64) float64 { return a - b })
}

// Times multiplies. Two integral operands stay integral.
func (Standard) Times(input, operand any) any {
	return arith(input, operand,
		func(a, b int) int { return a * b },
		func(a, b float64) float64 { return a * b })
}

// DividedBy divides, truncating when both operands are integral. Division
// by zero is an error.
func (Standard) DividedBy(input, operand any) (any, error) {
	if values.Integral(input) && values.Integral(operand) {
		a, _ := values.Int(input)
		b, _ := values.Int(operand)
		if b == 0 {
			return nil, fmt.Errorf("divided by 0")
		}
		return a / b, nil
	}
	a, _ := values.Float(input)
	b, _ := values.Float(operand)
	if b == 0 {
		return nil, fmt.Errorf("divided by 0")
	}
	return a / b, nil
}

// Modulo reduces, keeping integral operands integral. A zero modulus is an
// error.
func (Standard) Modulo(input, operand any) (any, error) {
	if values.Integral(input) && values.Integral(operand) {
		a, _ := values.Int(input)
		b, _ := values.Int(operand)
		if b == 0 {
			return nil, fmt.Errorf("modulo by 0")
		}
		return a % b, nil
	}
	a, _ := values.Float(input)
	b, _ := values.Float(operand)
	if b == 0 {
		return nil, fmt.Errorf("modulo by 0")
	}
	return math.Mod(a, b), nil
}

// Round rounds half away from zero. With no places argument the result is
// an integer; with places it keeps that many decimals.
func (Standard) Round(input any, args ...any) any {
	v, ok := values.Float(input)
	if !ok {
		return input
	}
	places := 0
	if len(args) > 0 {
		if n, got := values.Int(args[0]); got {
			places = n
		}
	}
	if places <= 0 {
		return int(math.Round(v))
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// Ceil rounds up to the nearest integer.
func (Standard) Ceil(input any) any {
	v, ok := values.Float(input)
	if !ok {
		return input
	}
	return int(math.Ceil(v))
}

// Floor rounds down to the nearest integer.
func (Standard) Floor(input any) any {
	v, ok := values.Float(input)
	if !ok {
		return input
	}
	return int(math.Floor(v))
}

// Abs returns the magnitude, preserving integral inputs.
func (Standard) Abs(input any) any {
	if values.Integral(input) {
		n, _ := values.Int(input)
		if n < 0 {
			n = -n
		}
		return n
	}
	v, ok := values.Float(input)
	if !ok {
		return input
	}
	return math.Abs(v)
}

// AtLeast clamps the input up to a minimum.
func (Standard) AtLeast(input, minimum any) any {
	return arith(input, minimum,
		func(a, b int) int {
			if a < b {
				return b
			}
			return a
		},
		func(a, b float64) float64 { return math.Max(a, b) })
}

// AtMost clamps the input down to a maximum.
func (Standard) AtMost(input, maximum any) any {
	return arith(input, maximum,
		func(a, b int) int {
			if a > b {
				return b
			}
			return a
		},
		func(a, b float64) float64 { return math.Min(a, b) })
}

// Slice extracts a run of characters or elements starting at offset, with
// an optional length defaulting to one. A negative offset counts back from
// the end.
func (Standard) Slice(input any, args ...any) any {
	offset := 0
	length := 1
	if len(args) > 0 {
		if n, ok := values.Int(args[0]); ok {
			offset = n
		}
	}
	if len(args) > 1 {
		if n, ok := values.Int(args[1]); ok {
			length = n
		}
	}

	if items, ok := values.Slice(input); ok {
		lo, hi := sliceBounds(len(items), offset, length)
		return items[lo:hi]
	}
	r := []rune(values.Str(input))
	lo, hi := sliceBounds(len(r), offset, length)
	return string(r[lo:hi])
}

// Default substitutes the fallback when the input is nil, false, or empty.
func (Standard) Default(input any, args ...any) any {
	if len(args) == 0 {
		return input
	}
	fallback := args[0]
	switch v := input.(type) {
	case nil:
		return fallback
	case bool:
		if !v {
			return fallback
		}
	case string:
		if v == "" {
			return fallback
		}
	default:
		if items, ok := values.Slice(input); ok && len(items) == 0 {
			return fallback
		}
	}
	return input
}

// Escape HTML-escapes the input's string form.
func (Standard) Escape(input any) string {
	return html.EscapeString(values.Str(input))
}

// EscapeOnce HTML-escapes without double-escaping entities already
// present.
func (Standard) EscapeOnce(input any) string {
	return html.EscapeString(html.UnescapeString(values.Str(input)))
}

// URLEncode percent-encodes the input for use in a query string.
func (Standard) URLEncode(input any) string {
	return url.QueryEscape(values.Str(input))
}

// URLDecode reverses percent-encoding.
func (Standard) URLDecode(input any) (string, error) {
	return url.QueryUnescape(values.Str(input))
}

// StripHTML removes tags, along with whole script and style blocks.
func (Standard) StripHTML(input any) string {
	s := values.Str(input)
	s = scriptBlocks.ReplaceAllString(s, "")
	s = styleBlocks.ReplaceAllString(s, "")
	return htmlTags.ReplaceAllString(s, "")
}

// arith applies the integer op when both operands are integral and the
// float op otherwise, coercing strings along the way.
func arith(a, b any, intOp func(int, int) int, floatOp func(float64, float64) float64) any {
	if values.Integral(a) && values.Integral(b) {
		ai, _ := values.Int(a)
		bi, _ := values.Int(b)
		return intOp(ai, bi)
	}
	af, _ := values.Float(a)
	bf, _ := values.Float(b)
	return floatOp(af, bf)
}

// sliceBounds clamps an offset and length to valid indexes.
func sliceBounds(size, offset, length int) (int, int) {
	if offset < 0 {
		offset += size
	}
	if offset < 0 {
		offset = 0
	}
	if offset > size {
		offset = size
	}
	if length < 0 {
		length = 0
	}
	hi := offset + length
	if hi > size {
		hi = size
	}
	return offset, hi
}
