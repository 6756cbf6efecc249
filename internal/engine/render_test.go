package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustRender parses and renders src with the default filter packs.
func mustRender(t *testing.T, src string, vars map[string]any) string {
	t.Helper()
	tmpl, err := Parse("test", src)
	require.NoError(t, err)
	out, err := tmpl.Render(vars)
	require.NoError(t, err)
	return out
}

// === Output ===

func TestRender_Output(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		vars     map[string]any
		expected string
	}{
		{
			name:     "plain text",
			src:      "Hello, world",
			expected: "Hello, world",
		},
		{
			name:     "variable",
			src:      "Hello, {{ name }}!",
			vars:     map[string]any{"name": "World"},
			expected: "Hello, World!",
		},
		{
			name:     "unknown variable renders empty",
			src:      "[{{ missing }}]",
			expected: "[]",
		},
		{
			name:     "string literal",
			src:      `{{ "quoted" }}`,
			expected: "quoted",
		},
		{
			name:     "integer literal",
			src:      `{{ 42 }}`,
			expected: "42",
		},
		{
			name:     "decimal literal",
			src:      `{{ 3.14 }}`,
			expected: "3.14",
		},
		{
			name:     "boolean variable",
			src:      `{{ flag }}`,
			vars:     map[string]any{"flag": true},
			expected: "true",
		},
		{
			name:     "float without fraction drops the point",
			src:      `{{ price }}`,
			vars:     map[string]any{"price": 42.0},
			expected: "42",
		},
		{
			name:     "comparison renders as boolean",
			src:      `{{ n > 1 }}`,
			vars:     map[string]any{"n": 3},
			expected: "true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mustRender(t, tt.src, tt.vars))
		})
	}
}

// === Paths ===

func TestRender_Paths(t *testing.T) {
	type address struct {
		City string
	}
	vars := map[string]any{
		"user": map[string]any{
			"name":    "Ada",
			"address": map[string]any{"city": "London"},
		},
		"home":  address{City: "Oslo"},
		"items": []any{"a", "b", "c"},
		"word":  "Ada",
	}

	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{"map property", `{{ user.name }}`, "Ada"},
		{"nested map property", `{{ user.address.city }}`, "London"},
		{"bracket lookup", `{{ user["name"] }}`, "Ada"},
		{"struct field case insensitive", `{{ home.city }}`, "Oslo"},
		{"index", `{{ items[0] }}`, "a"},
		{"negative index", `{{ items[-1] }}`, "c"},
		{"index out of bounds", `[{{ items[9] }}]`, "[]"},
		{"size of collection", `{{ items.size }}`, "3"},
		{"first and last", `{{ items.first }}{{ items.last }}`, "ac"},
		{"size of string", `{{ word.size }}`, "3"},
		{"missing property", `[{{ user.age }}]`, "[]"},
		{"lookup through nil", `[{{ ghost.name.deep }}]`, "[]"},
		{"unresolved lookup key", `[{{ items[i] }}]`, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mustRender(t, tt.src, vars))
		})
	}
}

func TestRender_DynamicLookupKeys(t *testing.T) {
	vars := map[string]any{
		"items": []any{"a", "b", "c"},
		"i":     1,
		"field": "name",
		"user":  map[string]any{"name": "Ada"},
	}
	assert.Equal(t, "b", mustRender(t, `{{ items[i] }}`, vars))
	assert.Equal(t, "Ada", mustRender(t, `{{ user[field] }}`, vars))
}

// === Filters ===

func TestRender_Filters(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		vars     map[string]any
		expected string
	}{
		{
			name:     "single filter",
			src:      `{{ "hello" | upcase }}`,
			expected: "HELLO",
		},
		{
			name:     "chained filters",
			src:      `{{ " hello " | strip | capitalize }}`,
			expected: "Hello",
		},
		{
			name:     "filter with argument",
			src:      `{{ "hello world" | truncate: 8 }}`,
			expected: "hello...",
		},
		{
			name:     "filter with two arguments",
			src:      `{{ "hello world" | truncate: 7, "-" }}`,
			expected: "hello -",
		},
		{
			name:     "split and join",
			src:      `{{ "a,b,c" | split: "," | join: " + " }}`,
			expected: "a + b + c",
		},
		{
			name:     "arithmetic",
			src:      `{{ 4 | plus: 2 | times: 3 }}`,
			expected: "18",
		},
		{
			name:     "default on missing value",
			src:      `{{ missing | default: "fallback" }}`,
			expected: "fallback",
		},
		{
			name:     "default keeps present value",
			src:      `{{ name | default: "fallback" }}`,
			vars:     map[string]any{"name": "Ada"},
			expected: "Ada",
		},
		{
			name:     "unknown filter passes value through",
			src:      `{{ "payload" | nonexistent }}`,
			expected: "payload",
		},
		{
			name:     "unknown filter mid pipeline",
			src:      `{{ "payload" | nonexistent | upcase }}`,
			expected: "PAYLOAD",
		},
		{
			name:     "underscored spelling",
			src:      `{{ "a b" | replace_first: " ", "-" }}`,
			expected: "a-b",
		},
		{
			name:     "map over property",
			src:      `{{ posts | map: "title" | join: "; " }}`,
			vars: map[string]any{"posts": []any{
				map[string]any{"title": "One"},
				map[string]any{"title": "Two"},
			}},
			expected: "One; Two",
		},
		{
			name:     "sort by property",
			src:      `{{ posts | sort: "title" | map: "title" | join: "" }}`,
			vars: map[string]any{"posts": []any{
				map[string]any{"title": "b"},
				map[string]any{"title": "a"},
			}},
			expected: "ab",
		},
		{
			name:     "filter on assign",
			src:      `{% assign loud = "psst" | upcase %}{{ loud }}`,
			expected: "PSST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mustRender(t, tt.src, tt.vars))
		})
	}
}

func TestRender_FilterError(t *testing.T) {
	tmpl, err := Parse("math", `{{ 5 | divided_by: 0 }}`)
	require.NoError(t, err)

	_, err = tmpl.Render(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rendering math:")
	assert.Contains(t, err.Error(), "divided by 0")
}

// === Conditionals ===

func TestRender_If(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		vars     map[string]any
		expected string
	}{
		{
			name:     "true branch",
			src:      `{% if ok %}yes{% endif %}`,
			vars:     map[string]any{"ok": true},
			expected: "yes",
		},
		{
			name:     "false skips",
			src:      `{% if ok %}yes{% endif %}`,
			vars:     map[string]any{"ok": false},
			expected: "",
		},
		{
			name:     "nil is falsy",
			src:      `{% if missing %}yes{% else %}no{% endif %}`,
			expected: "no",
		},
		{
			name:     "zero is truthy",
			src:      `{% if n %}yes{% endif %}`,
			vars:     map[string]any{"n": 0},
			expected: "yes",
		},
		{
			name:     "empty string is truthy",
			src:      `{% if s %}yes{% endif %}`,
			vars:     map[string]any{"s": ""},
			expected: "yes",
		},
		{
			name:     "elsif chain picks first match",
			src:      `{% if a %}1{% elsif b %}2{% elsif c %}3{% else %}4{% endif %}`,
			vars:     map[string]any{"a": false, "b": true, "c": true},
			expected: "2",
		},
		{
			name:     "else branch",
			src:      `{% if a %}1{% elsif b %}2{% else %}3{% endif %}`,
			vars:     map[string]any{"a": false, "b": false},
			expected: "3",
		},
		{
			name:     "unless renders on false",
			src:      `{% unless done %}pending{% endunless %}`,
			vars:     map[string]any{"done": false},
			expected: "pending",
		},
		{
			name:     "unless skips on true",
			src:      `{% unless done %}pending{% else %}finished{% endunless %}`,
			vars:     map[string]any{"done": true},
			expected: "finished",
		},
		{
			name:     "equality",
			src:      `{% if kind == "story" %}S{% endif %}`,
			vars:     map[string]any{"kind": "story"},
			expected: "S",
		},
		{
			name:     "numeric equality across types",
			src:      `{% if n == 3.0 %}eq{% endif %}`,
			vars:     map[string]any{"n": 3},
			expected: "eq",
		},
		{
			name:     "inequality with nil",
			src:      `{% if missing != "x" %}ne{% endif %}`,
			expected: "ne",
		},
		{
			name:     "ordering",
			src:      `{% if count > 2 and count <= 4 %}mid{% endif %}`,
			vars:     map[string]any{"count": 4},
			expected: "mid",
		},
		{
			name:     "string ordering",
			src:      `{% if "abc" < "abd" %}lt{% endif %}`,
			expected: "lt",
		},
		{
			name:     "contains substring",
			src:      `{% if title contains "sea" %}hit{% endif %}`,
			vars:     map[string]any{"title": "deep sea fishing"},
			expected: "hit",
		},
		{
			name:     "contains on slice",
			src:      `{% if tags contains "go" %}hit{% endif %}`,
			vars:     map[string]any{"tags": []string{"go", "web"}},
			expected: "hit",
		},
		{
			name:     "or short circuit",
			src:      `{% if a or b %}yes{% endif %}`,
			vars:     map[string]any{"a": true},
			expected: "yes",
		},
		{
			name:     "empty keyword matches empty slice",
			src:      `{% if items == empty %}none{% endif %}`,
			vars:     map[string]any{"items": []any{}},
			expected: "none",
		},
		{
			name:     "empty keyword rejects populated slice",
			src:      `{% if items == empty %}none{% else %}some{% endif %}`,
			vars:     map[string]any{"items": []any{1}},
			expected: "some",
		},
		{
			name:     "empty keyword matches empty string",
			src:      `{% if s == empty %}blank{% endif %}`,
			vars:     map[string]any{"s": ""},
			expected: "blank",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mustRender(t, tt.src, tt.vars))
		})
	}
}

func TestRender_CompareError(t *testing.T) {
	tmpl, err := Parse("test", `{% if x < y %}never{% endif %}`)
	require.NoError(t, err)

	_, err = tmpl.Render(map[string]any{"x": 1, "y": "apple"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot compare int with string")
}

// === Case ===

func TestRender_Case(t *testing.T) {
	src := `{% case kind %}{% when "a", "b" %}ab{% when "c" or "d" %}cd{% else %}other{% endcase %}`

	tests := []struct {
		kind     string
		expected string
	}{
		{"a", "ab"},
		{"b", "ab"},
		{"c", "cd"},
		{"d", "cd"},
		{"z", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			out := mustRender(t, src, map[string]any{"kind": tt.kind})
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestRender_CaseWithoutElse(t *testing.T) {
	src := `{% case n %}{% when 1 %}one{% endcase %}`
	assert.Equal(t, "one", mustRender(t, src, map[string]any{"n": 1}))
	assert.Equal(t, "", mustRender(t, src, map[string]any{"n": 2}))
}

// === Loops ===

func TestRender_For(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		vars     map[string]any
		expected string
	}{
		{
			name:     "range",
			src:      `{% for i in (1..3) %}{{ i }}{% endfor %}`,
			expected: "123",
		},
		{
			name:     "slice",
			src:      `{% for x in items %}[{{ x }}]{% endfor %}`,
			vars:     map[string]any{"items": []any{"a", "b"}},
			expected: "[a][b]",
		},
		{
			name:     "typed slice",
			src:      `{% for n in nums %}{{ n }}.{% endfor %}`,
			vars:     map[string]any{"nums": []int{7, 8}},
			expected: "7.8.",
		},
		{
			name:     "range bounds from variables",
			src:      `{% for i in (from..to) %}{{ i }}{% endfor %}`,
			vars:     map[string]any{"from": 2, "to": 4},
			expected: "234",
		},
		{
			name:     "inverted range is empty",
			src:      `{% for i in (3..1) %}{{ i }}{% else %}none{% endfor %}`,
			expected: "none",
		},
		{
			name:     "reversed",
			src:      `{% for i in (1..3) reversed %}{{ i }}{% endfor %}`,
			expected: "321",
		},
		{
			name:     "limit",
			src:      `{% for i in (1..5) limit: 2 %}{{ i }}{% endfor %}`,
			expected: "12",
		},
		{
			name:     "offset",
			src:      `{% for i in (1..5) offset: 3 %}{{ i }}{% endfor %}`,
			expected: "45",
		},
		{
			name:     "offset then limit",
			src:      `{% for i in (1..5) limit: 2 offset: 1 %}{{ i }}{% endfor %}`,
			expected: "23",
		},
		{
			name:     "offset beyond end",
			src:      `{% for i in (1..3) offset: 9 %}{{ i }}{% else %}none{% endfor %}`,
			expected: "none",
		},
		{
			name:     "else on empty collection",
			src:      `{% for x in items %}{{ x }}{% else %}empty{% endfor %}`,
			vars:     map[string]any{"items": []any{}},
			expected: "empty",
		},
		{
			name:     "else on missing collection",
			src:      `{% for x in items %}{{ x }}{% else %}empty{% endfor %}`,
			expected: "empty",
		},
		{
			name:     "nested",
			src:      `{% for i in (1..2) %}{% for j in (1..2) %}{{ i }}{{ j }} {% endfor %}{% endfor %}`,
			expected: "11 12 21 22 ",
		},
		{
			name:     "map iterates sorted pairs",
			src:      `{% for pair in m %}{{ pair[0] }}={{ pair[1] }};{% endfor %}`,
			vars:     map[string]any{"m": map[string]any{"b": 2, "a": 1, "c": 3}},
			expected: "a=1;b=2;c=3;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mustRender(t, tt.src, tt.vars))
		})
	}
}

func TestRender_Forloop(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{
			name:     "index and index0",
			src:      `{% for x in items %}{{ forloop.index }}/{{ forloop.index0 }} {% endfor %}`,
			expected: "1/0 2/1 3/2 ",
		},
		{
			name:     "rindex counts down",
			src:      `{% for x in items %}{{ forloop.rindex }}{{ forloop.rindex0 }} {% endfor %}`,
			expected: "32 21 10 ",
		},
		{
			name:     "first and last",
			src:      `{% for x in items %}{% if forloop.first %}<{% endif %}{{ x }}{% if forloop.last %}>{% endif %}{% endfor %}`,
			expected: "<abc>",
		},
		{
			name:     "length",
			src:      `{% for x in items limit: 2 %}{{ forloop.length }}{% endfor %}`,
			expected: "22",
		},
	}

	vars := map[string]any{"items": []any{"a", "b", "c"}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mustRender(t, tt.src, vars))
		})
	}
}

func TestRender_BreakContinue(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{
			name:     "break stops the loop",
			src:      `{% for i in (1..5) %}{% if i == 3 %}{% break %}{% endif %}{{ i }}{% endfor %}`,
			expected: "12",
		},
		{
			name:     "continue skips the iteration",
			src:      `{% for i in (1..5) %}{% if i == 3 %}{% continue %}{% endif %}{{ i }}{% endfor %}`,
			expected: "1245",
		},
		{
			name:     "break only exits the inner loop",
			src:      `{% for i in (1..2) %}{% for j in (1..3) %}{% if j == 2 %}{% break %}{% endif %}{{ i }}{{ j }}{% endfor %}{% endfor %}`,
			expected: "1121",
		},
		{
			name:     "break outside a loop stops the render quietly",
			src:      `a{% break %}b`,
			expected: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mustRender(t, tt.src, nil))
		})
	}
}

func TestRender_LoopVariableScope(t *testing.T) {
	// The loop variable dies with the loop; assignments made inside survive.
	out := mustRender(t, `{% for x in (1..2) %}{% assign seen = x %}{% endfor %}[{{ x }}]{{ seen }}`, nil)
	assert.Equal(t, "[]2", out)
}

func TestRender_RangeErrors(t *testing.T) {
	tmpl, err := Parse("test", `{% for i in (a..b) %}{{ i }}{% endfor %}`)
	require.NoError(t, err)

	_, err = tmpl.Render(map[string]any{"a": "x", "b": 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "range start x is not an integer")
}

// === Assign and capture ===

func TestRender_AssignCapture(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		vars     map[string]any
		expected string
	}{
		{
			name:     "assign literal",
			src:      `{% assign name = "world" %}Hello, {{ name }}`,
			expected: "Hello, world",
		},
		{
			name:     "assign copies variable",
			src:      `{% assign alias = name %}{{ alias }}`,
			vars:     map[string]any{"name": "Ada"},
			expected: "Ada",
		},
		{
			name:     "assign overrides initial binding",
			src:      `{% assign name = "new" %}{{ name }}`,
			vars:     map[string]any{"name": "old"},
			expected: "new",
		},
		{
			name:     "assign inside if is visible after",
			src:      `{% if true %}{% assign x = 1 %}{% endif %}{{ x }}`,
			expected: "1",
		},
		{
			name:     "capture renders body into variable",
			src:      `{% capture greeting %}Hello, {{ name }}!{% endcapture %}[{{ greeting }}]`,
			vars:     map[string]any{"name": "Ada"},
			expected: "[Hello, Ada!]",
		},
		{
			name:     "capture produces no direct output",
			src:      `a{% capture hidden %}invisible{% endcapture %}b`,
			expected: "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mustRender(t, tt.src, tt.vars))
		})
	}
}

// === Whitespace, raw, comment ===

func TestRender_TrimMarkers(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{
			name:     "output trim",
			src:      "a   {{- \"x\" -}}   b",
			expected: "axb",
		},
		{
			name:     "tag trim",
			src:      "x\n{%- if true -%}\ny\n{%- endif -%}\nz",
			expected: "xyz",
		},
		{
			name:     "untrimmed keeps whitespace",
			src:      "a {{ \"x\" }} b",
			expected: "a x b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mustRender(t, tt.src, nil))
		})
	}
}

func TestRender_Raw(t *testing.T) {
	out := mustRender(t, `docs: {% raw %}{{ user.name }} and {% if %} stay literal{% endraw %}!`, nil)
	assert.Equal(t, "docs: {{ user.name }} and {% if %} stay literal!", out)
}

func TestRender_Comment(t *testing.T) {
	out := mustRender(t, `a{% comment %} dropped {{ entirely }} {% endcomment %}b`, nil)
	assert.Equal(t, "ab", out)
}
