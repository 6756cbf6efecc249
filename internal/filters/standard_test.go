package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var std Standard

// === Strings ===

func TestStandard_Casing(t *testing.T) {
	assert.Equal(t, "hello", std.Downcase("HeLLo"))
	assert.Equal(t, "HELLO", std.Upcase("heLLo"))
	assert.Equal(t, "My great title", std.Capitalize("my GREAT title"))
	assert.Equal(t, "", std.Capitalize(""))
}

func TestStandard_Strip(t *testing.T) {
	assert.Equal(t, "core", std.Strip("  core\t\n"))
	assert.Equal(t, "core  ", std.Lstrip("  core  "))
	assert.Equal(t, "  core", std.Rstrip("  core  "))
	assert.Equal(t, "ab", std.StripNewlines("a\r\nb"))
	assert.Equal(t, "a<br />\nb", std.NewlineToBr("a\nb"))
	assert.Equal(t, "a<br />\nb", std.NewlineToBr("a\r\nb"))
}

func TestStandard_ReplaceAndRemove(t *testing.T) {
	assert.Equal(t, "b_b_b", std.Replace("a_a_a", "a", "b"))
	assert.Equal(t, "b_a_a", std.ReplaceFirst("a_a_a", "a", "b"))
	assert.Equal(t, "__", std.Remove("a_a_", "a"))
	assert.Equal(t, "_a_", std.RemoveFirst("a_a_", "a"))
}

func TestStandard_AppendPrepend(t *testing.T) {
	assert.Equal(t, "a/b", std.Append("a/", "b"))
	assert.Equal(t, "/a", std.Prepend("a", "/"))
	assert.Equal(t, "x1", std.Append("x", 1), "numbers render without noise")
}

func TestStandard_Truncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		args     []any
		expected string
	}{
		{name: "short input untouched", input: "hi", args: []any{10}, expected: "hi"},
		{name: "length includes ellipsis", input: "hello world", args: []any{5}, expected: "he..."},
		{name: "custom ellipsis", input: "hello world", args: []any{5, "---"}, expected: "he---"},
		{name: "empty ellipsis", input: "hello world", args: []any{5, ""}, expected: "hello"},
		{name: "exact length untouched", input: "hello", args: []any{5}, expected: "hello"},
		{name: "default length is fifty", input: "hi", args: nil, expected: "hi"},
		{name: "combining sequence is one character", input: "aéiou", args: []any{4, "…"}, expected: "aéi…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, std.Truncate(tt.input, tt.args...))
		})
	}
}

func TestStandard_TruncateWords(t *testing.T) {
	assert.Equal(t, "one two...", std.TruncateWords("one two three four", 2))
	assert.Equal(t, "one two", std.TruncateWords("one two", 5))
	assert.Equal(t, "one--", std.TruncateWords("one two", 1, "--"))
}

func TestStandard_EscapeAndURL(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;", std.Escape("<b>"))
	assert.Equal(t, "&lt;b&gt;", std.EscapeOnce("&lt;b&gt;"))
	assert.Equal(t, "a+b%26c", std.URLEncode("a b&c"))

	got, err := std.URLDecode("a+b%26c")
	require.NoError(t, err)
	assert.Equal(t, "a b&c", got)

	_, err = std.URLDecode("%zz")
	assert.Error(t, err)
}

func TestStandard_StripHTML(t *testing.T) {
	assert.Equal(t, "text", std.StripHTML("<p>text</p>"))
	assert.Equal(t, "keep", std.StripHTML(`<script>var x = "<>";</script>keep<style>p {}</style>`))
	assert.Equal(t, "ab", std.StripHTML("a<br\n/>b"))
}

// === Collections ===

func TestStandard_Size(t *testing.T) {
	assert.Equal(t, 5, std.Size("héllo"), "characters, not bytes")
	assert.Equal(t, 3, std.Size([]any{1, 2, 3}))
	assert.Equal(t, 2, std.Size(map[string]any{"a": 1, "b": 2}))
	assert.Equal(t, 0, std.Size(nil))
	assert.Equal(t, 0, std.Size(42))
}

func TestStandard_Split(t *testing.T) {
	assert.Equal(t, []any{"a", "b"}, std.Split("a,b", ","))
	assert.Equal(t, []any{"a", "b"}, std.Split("a,b,,", ","), "trailing empties drop")
	assert.Equal(t, []any{"a", "", "b"}, std.Split("a,,b", ","), "inner empties stay")
	assert.Equal(t, []any{"h", "i"}, std.Split("hi", ""))
}

func TestStandard_JoinFirstLast(t *testing.T) {
	assert.Equal(t, "a-b-c", std.Join([]any{"a", "b", "c"}, "-"))
	assert.Equal(t, "1-2", std.Join([]int{1, 2}, "-"), "typed slices flatten")
	assert.Equal(t, "scalar", std.Join("scalar", "-"))

	assert.Equal(t, "a", std.First([]any{"a", "b"}))
	assert.Equal(t, "b", std.Last([]any{"a", "b"}))
	assert.Nil(t, std.First([]any{}))
	assert.Nil(t, std.Last("not a list"))
}

func TestStandard_Map(t *testing.T) {
	people := []any{
		map[string]any{"name": "ada", "age": 36},
		map[string]any{"name": "alan", "age": 41},
		map[string]any{"age": 99},
	}
	assert.Equal(t, []any{"ada", "alan", nil}, std.Map(people, "name"))

	type person struct{ Name string }
	assert.Equal(t, []any{"grace"}, std.Map([]any{person{Name: "grace"}}, "name"),
		"struct fields match case-folded")

	assert.Equal(t, "solo", std.Map(map[string]any{"k": "solo"}, "k"))
}

func TestStandard_ReverseSortUniq(t *testing.T) {
	assert.Equal(t, []any{3, 2, 1}, std.Reverse([]any{1, 2, 3}))
	assert.Equal(t, "scalar", std.Reverse("scalar"))

	assert.Equal(t, []any{1, 2, 10}, std.Sort([]any{10, 1, 2}), "numeric order, not lexical")
	assert.Equal(t, []any{"a", "b", "c"}, std.Sort([]any{"c", "a", "b"}))

	rows := []any{
		map[string]any{"n": 2},
		map[string]any{"n": 1},
	}
	sorted := std.Sort(rows, "n")
	assert.Equal(t, []any{map[string]any{"n": 1}, map[string]any{"n": 2}}, sorted)
	assert.Equal(t, map[string]any{"n": 2}, rows[0], "input order untouched")

	assert.Equal(t, []any{1, "1", 2}, std.Uniq([]any{1, "1", 1, 2, "1"}),
		"dedup keeps types distinct")
}

func TestStandard_Slice(t *testing.T) {
	assert.Equal(t, "e", std.Slice("hello", 1))
	assert.Equal(t, "ell", std.Slice("hello", 1, 3))
	assert.Equal(t, "lo", std.Slice("hello", -2, 2))
	assert.Equal(t, "", std.Slice("hello", 99, 3))
	assert.Equal(t, []any{2, 3}, std.Slice([]any{1, 2, 3}, 1, 5))
}

// === Arithmetic ===

func TestStandard_Arithmetic(t *testing.T) {
	assert.Equal(t, 3, std.Plus(1, 2))
	assert.Equal(t, 3.5, std.Plus(1, 2.5), "float infects the result")
	assert.Equal(t, -1, std.Minus(1, 2))
	assert.Equal(t, 6, std.Times(2, 3))
	assert.Equal(t, 8.0, std.Times("4", "2.0"), "numeric strings coerce")
}

func TestStandard_DividedBy(t *testing.T) {
	got, err := std.DividedBy(7, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, got, "integral operands truncate")

	got, err = std.DividedBy(7.0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3.5, got)

	_, err = std.DividedBy(7, 0)
	assert.ErrorContains(t, err, "divided by 0")
}

func TestStandard_Modulo(t *testing.T) {
	got, err := std.Modulo(7, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	_, err = std.Modulo(7, 0)
	assert.Error(t, err)
}

func TestStandard_Rounding(t *testing.T) {
	assert.Equal(t, 3, std.Round(2.7))
	assert.Equal(t, 3, std.Round(2.5), "half rounds away from zero")
	assert.Equal(t, 2.68, std.Round(2.684, 2))
	assert.Equal(t, 3, std.Ceil(2.1))
	assert.Equal(t, 2, std.Floor(2.9))
	assert.Equal(t, "n/a", std.Round("n/a"), "non-numbers pass through")
}

func TestStandard_AbsClamp(t *testing.T) {
	assert.Equal(t, 4, std.Abs(-4))
	assert.Equal(t, 4.5, std.Abs(-4.5))
	assert.Equal(t, 5, std.AtLeast(3, 5))
	assert.Equal(t, 7, std.AtLeast(7, 5))
	assert.Equal(t, 5, std.AtMost(7, 5))
	assert.Equal(t, 3, std.AtMost(3, 5))
}

// === Default ===

func TestStandard_Default(t *testing.T) {
	assert.Equal(t, "fb", std.Default(nil, "fb"))
	assert.Equal(t, "fb", std.Default("", "fb"))
	assert.Equal(t, "fb", std.Default(false, "fb"))
	assert.Equal(t, "fb", std.Default([]any{}, "fb"))
	assert.Equal(t, "set", std.Default("set", "fb"))
	assert.Equal(t, 0, std.Default(0, "fb"), "zero is present")
	assert.Equal(t, true, std.Default(true, "fb"))
	assert.Nil(t, std.Default(nil), "no fallback, nothing to do")
}
