package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Parser builds the node tree from scanned segments. Expression parsing
// inside each marker is handed to exprParser.
type Parser struct {
	segs []segment
	idx  int
}

// blockTerminators are tags that close or continue an enclosing block.
// They are only legal where the enclosing block expects them.
var blockTerminators = map[string]bool{
	"elsif":      true,
	"else":       true,
	"endif":      true,
	"endunless":  true,
	"endfor":     true,
	"when":       true,
	"endcase":    true,
	"endcapture": true,
	"endcomment": true,
}

// parseDocument parses template source into a node tree.
func parseDocument(src string) ([]Node, error) {
	segs, err := scan(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{segs: segs}
	nodes, _, _, err := p.parseBlock(nil)
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// parseBlock consumes segments until it hits a terminator named in stop,
// returning the nodes parsed so far, the terminator, and the terminator
// tag's expression parser for callers that need its remainder. At the top
// level stop is nil and parsing runs to the end of the template.
func (p *Parser) parseBlock(stop map[string]bool) ([]Node, string, *exprParser, error) {
	var nodes []Node

	for p.idx < len(p.segs) {
		seg := p.segs[p.idx]
		p.idx++

		switch seg.kind {
		case segText:
			if seg.source != "" {
				nodes = append(nodes, &TextNode{Text: seg.source})
			}

		case segOutput:
			ep := newExprParser(seg.source, seg.inner)
			fe, err := ep.parseFilteredExpr()
			if err != nil {
				return nil, "", nil, err
			}
			if err := ep.expectEOF(); err != nil {
				return nil, "", nil, err
			}
			nodes = append(nodes, &OutputNode{Pos: seg.pos, Expr: fe})

		case segTag:
			ep := newExprParser(seg.source, seg.inner)
			if ep.current.Type != TokenIdent {
				return nil, "", nil, fmt.Errorf("expected tag name at position %d, got %q", seg.pos, ep.current.Literal)
			}
			name := ep.current.Literal
			ep.nextToken()

			if blockTerminators[name] {
				if stop[name] {
					return nodes, name, ep, nil
				}
				return nil, "", nil, fmt.Errorf("unexpected tag %q at position %d", name, seg.pos)
			}

			node, err := p.parseTag(name, ep, seg)
			if err != nil {
				return nil, "", nil, err
			}
			if node != nil {
				nodes = append(nodes, node)
			}
		}
	}

	if len(stop) > 0 {
		return nil, "", nil, fmt.Errorf("reached end of template, expected %s", stopList(stop))
	}
	return nodes, "", nil, nil
}

// parseTag dispatches on the tag name. Terminator tags never reach here.
func (p *Parser) parseTag(name string, ep *exprParser, seg segment) (Node, error) {
	switch name {
	case "assign":
		return p.parseAssign(ep, seg)
	case "capture":
		return p.parseCapture(ep, seg)
	case "if":
		return p.parseIf(ep, seg, false)
	case "unless":
		return p.parseIf(ep, seg, true)
	case "case":
		return p.parseCase(ep, seg)
	case "for":
		return p.parseFor(ep, seg)
	case "break":
		if err := ep.expectEOF(); err != nil {
			return nil, err
		}
		return &BreakNode{Pos: seg.pos}, nil
	case "continue":
		if err := ep.expectEOF(); err != nil {
			return nil, err
		}
		return &ContinueNode{Pos: seg.pos}, nil
	case "comment":
		return p.parseComment(seg)
	}
	return nil, fmt.Errorf("unknown tag %q at position %d", name, seg.pos)
}

// parseAssign parses: assign name = expression { "|" filter }
func (p *Parser) parseAssign(ep *exprParser, seg segment) (Node, error) {
	if ep.current.Type != TokenIdent {
		return nil, fmt.Errorf("expected variable name at position %d, got %q", ep.current.Pos, ep.current.Literal)
	}
	name := ep.current.Literal
	ep.nextToken()

	if ep.current.Type != TokenAssign {
		return nil, fmt.Errorf("expected '=' at position %d, got %q", ep.current.Pos, ep.current.Literal)
	}
	ep.nextToken()

	fe, err := ep.parseFilteredExpr()
	if err != nil {
		return nil, err
	}
	if err := ep.expectEOF(); err != nil {
		return nil, err
	}
	return &AssignNode{Pos: seg.pos, Name: name, Expr: fe}, nil
}

// parseCapture parses: capture name ... endcapture
func (p *Parser) parseCapture(ep *exprParser, seg segment) (Node, error) {
	if ep.current.Type != TokenIdent {
		return nil, fmt.Errorf("expected variable name at position %d, got %q", ep.current.Pos, ep.current.Literal)
	}
	name := ep.current.Literal
	ep.nextToken()
	if err := ep.expectEOF(); err != nil {
		return nil, err
	}

	body, _, _, err := p.parseBlock(map[string]bool{"endcapture": true})
	if err != nil {
		return nil, err
	}
	return &CaptureNode{Pos: seg.pos, Name: name, Body: body}, nil
}

// parseIf parses if/elsif/else and unless/else blocks. An unless condition
// is wrapped in a negation so rendering only knows about if.
func (p *Parser) parseIf(ep *exprParser, seg segment, negate bool) (Node, error) {
	node := &IfNode{Pos: seg.pos}
	endTag := "endif"
	stop := map[string]bool{"elsif": true, "else": true, "endif": true}
	if negate {
		endTag = "endunless"
		stop = map[string]bool{"else": true, "endunless": true}
	}

	cond, err := ep.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := ep.expectEOF(); err != nil {
		return nil, err
	}
	if negate {
		cond = &NotExpr{Expr: cond}
	}

	for {
		body, term, tp, err := p.parseBlock(stop)
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, CondBranch{Cond: cond, Body: body})

		switch term {
		case "elsif":
			cond, err = tp.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := tp.expectEOF(); err != nil {
				return nil, err
			}

		case "else":
			elseBody, _, _, err := p.parseBlock(map[string]bool{endTag: true})
			if err != nil {
				return nil, err
			}
			node.Else = elseBody
			return node, nil

		default:
			return node, nil
		}
	}
}

// parseCase parses: case subject { when v [, v] ... } [else ...] endcase.
// Output between the case tag and the first when is discarded.
func (p *Parser) parseCase(ep *exprParser, seg segment) (Node, error) {
	subject, err := ep.parsePrimary()
	if err != nil {
		return nil, err
	}
	if err := ep.expectEOF(); err != nil {
		return nil, err
	}
	node := &CaseNode{Pos: seg.pos, Subject: subject}

	_, term, tp, err := p.parseBlock(map[string]bool{"when": true, "endcase": true})
	if err != nil {
		return nil, err
	}

	for term == "when" {
		var branch WhenBranch
		for {
			v, err := tp.parsePrimary()
			if err != nil {
				return nil, err
			}
			branch.Values = append(branch.Values, v)

			// Values may be separated by commas or the word "or".
			if tp.current.Type == TokenComma || tp.current.Type == TokenOr {
				tp.nextToken()
				continue
			}
			break
		}
		if err := tp.expectEOF(); err != nil {
			return nil, err
		}

		body, next, np, err := p.parseBlock(map[string]bool{"when": true, "else": true, "endcase": true})
		if err != nil {
			return nil, err
		}
		branch.Body = body
		node.Whens = append(node.Whens, branch)
		term, tp = next, np
	}

	if term == "else" {
		elseBody, _, _, err := p.parseBlock(map[string]bool{"endcase": true})
		if err != nil {
			return nil, err
		}
		node.Else = elseBody
	}
	return node, nil
}

// parseFor parses: for var in collection [reversed] [limit: n] [offset: n]
// ... [else ...] endfor
func (p *Parser) parseFor(ep *exprParser, seg segment) (Node, error) {
	if ep.current.Type != TokenIdent {
		return nil, fmt.Errorf("expected loop variable at position %d, got %q", ep.current.Pos, ep.current.Literal)
	}
	node := &ForNode{Pos: seg.pos, Var: ep.current.Literal}
	ep.nextToken()

	if ep.current.Type != TokenIn {
		return nil, fmt.Errorf("expected 'in' at position %d, got %q", ep.current.Pos, ep.current.Literal)
	}
	ep.nextToken()

	coll, err := ep.parsePrimary()
	if err != nil {
		return nil, err
	}
	node.Collection = coll

	for ep.current.Type != TokenEOF {
		if ep.current.Type != TokenIdent {
			return nil, fmt.Errorf("expected loop modifier at position %d, got %q", ep.current.Pos, ep.current.Literal)
		}
		switch ep.current.Literal {
		case "reversed":
			node.Reversed = true
			ep.nextToken()
		case "limit":
			ep.nextToken()
			node.Limit, err = ep.parseModifierValue()
			if err != nil {
				return nil, err
			}
		case "offset":
			ep.nextToken()
			node.Offset, err = ep.parseModifierValue()
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown loop modifier %q at position %d", ep.current.Literal, ep.current.Pos)
		}
	}

	body, term, _, err := p.parseBlock(map[string]bool{"else": true, "endfor": true})
	if err != nil {
		return nil, err
	}
	node.Body = body

	if term == "else" {
		elseBody, _, _, err := p.parseBlock(map[string]bool{"endfor": true})
		if err != nil {
			return nil, err
		}
		node.Else = elseBody
	}
	return node, nil
}

// parseComment skips segments until endcomment, tolerating anything in
// between.
func (p *Parser) parseComment(seg segment) (Node, error) {
	for p.idx < len(p.segs) {
		s := p.segs[p.idx]
		p.idx++
		if s.kind == segTag && tagName(s.source) == "endcomment" {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("comment at position %d has no endcomment", seg.pos)
}

// stopList renders a terminator set for error messages.
func stopList(stop map[string]bool) string {
	names := make([]string, 0, len(stop))
	for name := range stop {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, " or ")
}

// exprParser parses the expression grammar inside one marker.
type exprParser struct {
	lexer   *Lexer
	current Token
	peek    Token
}

// newExprParser creates a parser for a marker's inner source.
func newExprParser(input string, offset int) *exprParser {
	ep := &exprParser{lexer: NewLexer(input, offset)}
	// Prime the parser with two tokens
	ep.nextToken()
	ep.nextToken()
	return ep
}

// nextToken advances to the next token.
func (ep *exprParser) nextToken() {
	ep.current = ep.peek
	ep.peek = ep.lexer.NextToken()
}

// expectEOF fails unless the marker's source is fully consumed.
func (ep *exprParser) expectEOF() error {
	if ep.current.Type != TokenEOF {
		return fmt.Errorf("unexpected %q at position %d", ep.current.Literal, ep.current.Pos)
	}
	return nil
}

// parseFilteredExpr parses an expression with its pipeline.
// filtered = expression { "|" filter }
func (ep *exprParser) parseFilteredExpr() (*FilteredExpr, error) {
	expr, err := ep.parseExpression()
	if err != nil {
		return nil, err
	}
	fe := &FilteredExpr{Expr: expr}

	for ep.current.Type == TokenPipe {
		ep.nextToken() // consume |
		call, err := ep.parseFilterCall()
		if err != nil {
			return nil, err
		}
		fe.Filters = append(fe.Filters, call)
	}
	return fe, nil
}

// parseFilterCall parses one pipeline stage.
// filter = name [ ":" arg { "," arg } ]
func (ep *exprParser) parseFilterCall() (FilterCall, error) {
	if ep.current.Type != TokenIdent {
		return FilterCall{}, fmt.Errorf("expected filter name at position %d, got %q", ep.current.Pos, ep.current.Literal)
	}
	call := FilterCall{Pos: ep.current.Pos, Name: ep.current.Literal}
	ep.nextToken()

	if ep.current.Type == TokenColon {
		ep.nextToken() // consume :
		for {
			arg, err := ep.parsePrimary()
			if err != nil {
				return FilterCall{}, err
			}
			call.Args = append(call.Args, arg)

			if ep.current.Type == TokenComma {
				ep.nextToken()
				continue
			}
			break
		}
	}
	return call, nil
}

// parseModifierValue parses the ": value" half of a loop modifier.
func (ep *exprParser) parseModifierValue() (Expr, error) {
	if ep.current.Type != TokenColon {
		return nil, fmt.Errorf("expected ':' at position %d, got %q", ep.current.Pos, ep.current.Literal)
	}
	ep.nextToken() // consume :
	return ep.parsePrimary()
}

// parseExpression parses OR-separated terms.
// expression = term { "or" term }
func (ep *exprParser) parseExpression() (Expr, error) {
	left, err := ep.parseTerm()
	if err != nil {
		return nil, err
	}

	for ep.current.Type == TokenOr {
		pos := ep.current.Pos
		ep.nextToken() // consume OR
		right, err := ep.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: pos, Op: TokenOr, Left: left, Right: right}
	}
	return left, nil
}

// parseTerm parses AND-separated comparisons.
// term = comparison { "and" comparison }
func (ep *exprParser) parseTerm() (Expr, error) {
	left, err := ep.parseComparison()
	if err != nil {
		return nil, err
	}

	for ep.current.Type == TokenAnd {
		pos := ep.current.Pos
		ep.nextToken() // consume AND
		right, err := ep.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: pos, Op: TokenAnd, Left: left, Right: right}
	}
	return left, nil
}

// parseComparison parses an optional infix comparison.
// comparison = primary [ op primary ]
func (ep *exprParser) parseComparison() (Expr, error) {
	left, err := ep.parsePrimary()
	if err != nil {
		return nil, err
	}

	if ep.current.Type.IsComparisonOp() {
		op := ep.current.Type
		pos := ep.current.Pos
		ep.nextToken()
		right, err := ep.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Pos: pos, Op: op, Left: left, Right: right}, nil
	}
	return left, nil
}

// parsePrimary parses a literal, a range, or a variable path.
// primary = literal | "(" primary ".." primary ")" | path
func (ep *exprParser) parsePrimary() (Expr, error) {
	switch ep.current.Type {
	case TokenString:
		v := ep.current.Literal
		ep.nextToken()
		return &Literal{Value: v}, nil

	case TokenNumber:
		lit := ep.current.Literal
		pos := ep.current.Pos
		ep.nextToken()
		if n, err := strconv.Atoi(lit); err == nil {
			return &Literal{Value: n}, nil
		}
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", lit, pos)
		}
		return &Literal{Value: f}, nil

	case TokenTrue:
		ep.nextToken()
		return &Literal{Value: true}, nil

	case TokenFalse:
		ep.nextToken()
		return &Literal{Value: false}, nil

	case TokenNil:
		ep.nextToken()
		return &Literal{Value: nil}, nil

	case TokenEmpty:
		ep.nextToken()
		return &Literal{Value: emptyMarker{}}, nil

	case TokenLParen:
		ep.nextToken() // consume (
		from, err := ep.parsePrimary()
		if err != nil {
			return nil, err
		}
		if ep.current.Type != TokenDotDot {
			return nil, fmt.Errorf("expected '..' at position %d, got %q", ep.current.Pos, ep.current.Literal)
		}
		ep.nextToken()
		to, err := ep.parsePrimary()
		if err != nil {
			return nil, err
		}
		if ep.current.Type != TokenRParen {
			return nil, fmt.Errorf("expected ')' at position %d, got %q", ep.current.Pos, ep.current.Literal)
		}
		ep.nextToken()
		return &RangeExpr{From: from, To: to}, nil

	case TokenIdent:
		return ep.parsePath()
	}
	return nil, fmt.Errorf("unexpected %q at position %d", ep.current.Literal, ep.current.Pos)
}

// parsePath parses a variable reference with its lookups.
// path = ident { "." ident | "[" primary "]" }
func (ep *exprParser) parsePath() (Expr, error) {
	path := &PathExpr{Pos: ep.current.Pos, Base: ep.current.Literal}
	ep.nextToken()

	for {
		switch ep.current.Type {
		case TokenDot:
			if ep.peek.Type != TokenIdent {
				return nil, fmt.Errorf("expected property name at position %d, got %q", ep.peek.Pos, ep.peek.Literal)
			}
			ep.nextToken()
			path.Lookups = append(path.Lookups, &Literal{Value: ep.current.Literal})
			ep.nextToken()

		case TokenLBracket:
			ep.nextToken() // consume [
			idx, err := ep.parsePrimary()
			if err != nil {
				return nil, err
			}
			if ep.current.Type != TokenRBracket {
				return nil, fmt.Errorf("expected ']' at position %d, got %q", ep.current.Pos, ep.current.Literal)
			}
			ep.nextToken()
			path.Lookups = append(path.Lookups, idx)

		default:
			return path, nil
		}
	}
}
