package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument_TextAndOutput(t *testing.T) {
	nodes, err := parseDocument("Hello {{ name }}!")
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	text, ok := nodes[0].(*TextNode)
	require.True(t, ok, "expected TextNode")
	assert.Equal(t, "Hello ", text.Text)

	out, ok := nodes[1].(*OutputNode)
	require.True(t, ok, "expected OutputNode")
	path, ok := out.Expr.Expr.(*PathExpr)
	require.True(t, ok, "expected PathExpr")
	assert.Equal(t, "name", path.Base)
	assert.Empty(t, out.Expr.Filters)

	text, ok = nodes[2].(*TextNode)
	require.True(t, ok, "expected TextNode")
	assert.Equal(t, "!", text.Text)
}

func TestParseDocument_FilterPipeline(t *testing.T) {
	nodes, err := parseDocument(`{{ name | upcase | truncate: 5, "..." }}`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	out, ok := nodes[0].(*OutputNode)
	require.True(t, ok, "expected OutputNode")
	require.Len(t, out.Expr.Filters, 2)

	assert.Equal(t, "upcase", out.Expr.Filters[0].Name)
	assert.Empty(t, out.Expr.Filters[0].Args)

	trunc := out.Expr.Filters[1]
	assert.Equal(t, "truncate", trunc.Name)
	require.Len(t, trunc.Args, 2)
	assert.Equal(t, &Literal{Value: 5}, trunc.Args[0])
	assert.Equal(t, &Literal{Value: "..."}, trunc.Args[1])
}

func TestParseDocument_PathLookups(t *testing.T) {
	nodes, err := parseDocument(`{{ user.address["city"].name }}`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	out := nodes[0].(*OutputNode)
	path, ok := out.Expr.Expr.(*PathExpr)
	require.True(t, ok, "expected PathExpr")
	assert.Equal(t, "user", path.Base)
	require.Len(t, path.Lookups, 3)
	assert.Equal(t, &Literal{Value: "address"}, path.Lookups[0])
	assert.Equal(t, &Literal{Value: "city"}, path.Lookups[1])
	assert.Equal(t, &Literal{Value: "name"}, path.Lookups[2])
}

func TestParseDocument_Assign(t *testing.T) {
	nodes, err := parseDocument(`{% assign greeting = "hello" | upcase %}`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	assign, ok := nodes[0].(*AssignNode)
	require.True(t, ok, "expected AssignNode")
	assert.Equal(t, "greeting", assign.Name)
	assert.Equal(t, &Literal{Value: "hello"}, assign.Expr.Expr)
	require.Len(t, assign.Expr.Filters, 1)
	assert.Equal(t, "upcase", assign.Expr.Filters[0].Name)
}

func TestParseDocument_Capture(t *testing.T) {
	nodes, err := parseDocument(`{% capture block %}a {{ b }} c{% endcapture %}`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	capture, ok := nodes[0].(*CaptureNode)
	require.True(t, ok, "expected CaptureNode")
	assert.Equal(t, "block", capture.Name)
	assert.Len(t, capture.Body, 3)
}

func TestParseDocument_IfElsifElse(t *testing.T) {
	nodes, err := parseDocument(`{% if a %}1{% elsif b %}2{% elsif c %}3{% else %}4{% endif %}`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	ifNode, ok := nodes[0].(*IfNode)
	require.True(t, ok, "expected IfNode")
	require.Len(t, ifNode.Branches, 3)

	for i, base := range []string{"a", "b", "c"} {
		path, ok := ifNode.Branches[i].Cond.(*PathExpr)
		require.True(t, ok, "branch %d cond should be PathExpr", i)
		assert.Equal(t, base, path.Base)
		require.Len(t, ifNode.Branches[i].Body, 1)
	}

	require.Len(t, ifNode.Else, 1)
	assert.Equal(t, "4", ifNode.Else[0].(*TextNode).Text)
}

func TestParseDocument_Unless(t *testing.T) {
	nodes, err := parseDocument(`{% unless done %}pending{% else %}done{% endunless %}`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	ifNode, ok := nodes[0].(*IfNode)
	require.True(t, ok, "expected IfNode")
	require.Len(t, ifNode.Branches, 1)

	not, ok := ifNode.Branches[0].Cond.(*NotExpr)
	require.True(t, ok, "unless condition should be negated")
	path := not.Expr.(*PathExpr)
	assert.Equal(t, "done", path.Base)
	require.Len(t, ifNode.Else, 1)
}

func TestParseDocument_CaseWhen(t *testing.T) {
	src := `{% case kind %}{% when "a", "b" %}ab{% when "c" or "d" %}cd{% else %}other{% endcase %}`
	nodes, err := parseDocument(src)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	caseNode, ok := nodes[0].(*CaseNode)
	require.True(t, ok, "expected CaseNode")
	assert.Equal(t, "kind", caseNode.Subject.(*PathExpr).Base)
	require.Len(t, caseNode.Whens, 2)

	// Comma and "or" both separate when values.
	require.Len(t, caseNode.Whens[0].Values, 2)
	assert.Equal(t, &Literal{Value: "a"}, caseNode.Whens[0].Values[0])
	assert.Equal(t, &Literal{Value: "b"}, caseNode.Whens[0].Values[1])
	require.Len(t, caseNode.Whens[1].Values, 2)
	assert.Equal(t, &Literal{Value: "c"}, caseNode.Whens[1].Values[0])
	assert.Equal(t, &Literal{Value: "d"}, caseNode.Whens[1].Values[1])

	require.Len(t, caseNode.Else, 1)
	assert.Equal(t, "other", caseNode.Else[0].(*TextNode).Text)
}

func TestParseDocument_For(t *testing.T) {
	nodes, err := parseDocument(`{% for item in items reversed limit: 3 offset: 1 %}{{ item }}{% endfor %}`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	forNode, ok := nodes[0].(*ForNode)
	require.True(t, ok, "expected ForNode")
	assert.Equal(t, "item", forNode.Var)
	assert.Equal(t, "items", forNode.Collection.(*PathExpr).Base)
	assert.True(t, forNode.Reversed)
	assert.Equal(t, &Literal{Value: 3}, forNode.Limit)
	assert.Equal(t, &Literal{Value: 1}, forNode.Offset)
	assert.Len(t, forNode.Body, 1)
	assert.Empty(t, forNode.Else)
}

func TestParseDocument_ForRange(t *testing.T) {
	nodes, err := parseDocument(`{% for i in (1..5) %}{{ i }}{% endfor %}`)
	require.NoError(t, err)

	forNode := nodes[0].(*ForNode)
	rng, ok := forNode.Collection.(*RangeExpr)
	require.True(t, ok, "expected RangeExpr")
	assert.Equal(t, &Literal{Value: 1}, rng.From)
	assert.Equal(t, &Literal{Value: 5}, rng.To)
}

func TestParseDocument_ForElse(t *testing.T) {
	nodes, err := parseDocument(`{% for x in items %}x{% else %}none{% endfor %}`)
	require.NoError(t, err)

	forNode := nodes[0].(*ForNode)
	require.Len(t, forNode.Body, 1)
	require.Len(t, forNode.Else, 1)
	assert.Equal(t, "none", forNode.Else[0].(*TextNode).Text)
}

func TestParseDocument_NestedBlocks(t *testing.T) {
	src := `{% for x in items %}{% if x %}{{ x }}{% endif %}{% endfor %}`
	nodes, err := parseDocument(src)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	forNode := nodes[0].(*ForNode)
	require.Len(t, forNode.Body, 1)
	ifNode, ok := forNode.Body[0].(*IfNode)
	require.True(t, ok, "expected nested IfNode")
	require.Len(t, ifNode.Branches, 1)
}

func TestParseDocument_BreakContinue(t *testing.T) {
	nodes, err := parseDocument(`{% for x in items %}{% break %}{% continue %}{% endfor %}`)
	require.NoError(t, err)

	forNode := nodes[0].(*ForNode)
	require.Len(t, forNode.Body, 2)
	assert.IsType(t, &BreakNode{}, forNode.Body[0])
	assert.IsType(t, &ContinueNode{}, forNode.Body[1])
}

func TestParseDocument_Comment(t *testing.T) {
	nodes, err := parseDocument(`a{% comment %}skipped {{ entirely }} here{% endcomment %}b`)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	assert.Equal(t, "a", nodes[0].(*TextNode).Text)
	assert.Equal(t, "b", nodes[1].(*TextNode).Text)
}

func TestParseDocument_Expressions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, expr Expr)
	}{
		{
			name:  "comparison",
			input: `{% if count > 3 %}x{% endif %}`,
			check: func(t *testing.T, expr Expr) {
				bin, ok := expr.(*BinaryExpr)
				require.True(t, ok, "expected BinaryExpr")
				assert.Equal(t, TokenGt, bin.Op)
			},
		},
		{
			name:  "contains",
			input: `{% if title contains "x" %}x{% endif %}`,
			check: func(t *testing.T, expr Expr) {
				bin, ok := expr.(*BinaryExpr)
				require.True(t, ok, "expected BinaryExpr")
				assert.Equal(t, TokenContains, bin.Op)
			},
		},
		{
			name:  "and binds tighter than or",
			input: `{% if a or b and c %}x{% endif %}`,
			check: func(t *testing.T, expr Expr) {
				or, ok := expr.(*BinaryExpr)
				require.True(t, ok, "expected BinaryExpr")
				require.Equal(t, TokenOr, or.Op)

				and, ok := or.Right.(*BinaryExpr)
				require.True(t, ok, "right side should be the and chain")
				assert.Equal(t, TokenAnd, and.Op)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := parseDocument(tt.input)
			require.NoError(t, err)
			ifNode := nodes[0].(*IfNode)
			tt.check(t, ifNode.Branches[0].Cond)
		})
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown tag", `{% widget %}`},
		{"unclosed if", `{% if x %}body`},
		{"unclosed for", `{% for x in items %}body`},
		{"unclosed capture", `{% capture x %}body`},
		{"stray endif", `{% endif %}`},
		{"stray else", `{% else %}`},
		{"elsif outside if", `{% for x in items %}{% elsif y %}{% endfor %}`},
		{"assign without equals", `{% assign x 5 %}`},
		{"assign without name", `{% assign = 5 %}`},
		{"for without in", `{% for x of items %}{% endfor %}`},
		{"for with unknown modifier", `{% for x in items backwards %}{% endfor %}`},
		{"for limit missing colon", `{% for x in items limit 3 %}{% endfor %}`},
		{"case without subject", `{% case %}{% when 1 %}{% endcase %}`},
		{"comment without end", `{% comment %}lost`},
		{"trailing tokens in output", `{{ a b }}`},
		{"filter without name", `{{ a | 5 }}`},
		{"empty output", `{{ }}`},
		{"range missing dots", `{{ (1 5) }}`},
		{"bracket not closed", `{{ items[0 }}`},
		{"dot without property", `{{ user. }}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDocument(tt.input)
			assert.Error(t, err, "expected error for: %s", tt.input)
		})
	}
}

func TestParser_ErrorPositions(t *testing.T) {
	_, err := parseDocument("line one\n{% widget %}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown tag "widget" at position 10`)

	_, err = parseDocument(`{% if x %}body`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reached end of template, expected else or elsif or endif")
}
