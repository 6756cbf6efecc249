// Package engine implements the template language: scanning source text
// into segments, parsing segments into a tree, and rendering the tree
// against a set of variables. Pipeline stages inside output expressions
// dispatch through the filter bank.
package engine

import "strings"

// TokenType represents the type of lexical token inside a tag or output
// expression.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdent  // variable and filter names
	TokenString // "quoted" or 'quoted'
	TokenNumber // integers and decimals

	// Delimiters
	TokenPipe     // |
	TokenColon    // :
	TokenComma    // ,
	TokenDot      // .
	TokenDotDot   // ..
	TokenLBracket // [
	TokenRBracket // ]
	TokenLParen   // (
	TokenRParen   // )
	TokenAssign   // =

	// Comparison operators
	TokenEq  // ==
	TokenNeq // !=
	TokenLt  // <
	TokenGt  // >
	TokenLte // <=
	TokenGte // >=

	// Keyword operators
	TokenAnd      // and
	TokenOr       // or
	TokenContains // contains
	TokenIn       // in

	// Literal keywords
	TokenTrue  // true
	TokenFalse // false
	TokenNil   // nil, null
	TokenEmpty // empty
)

// String returns the string representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenIllegal:
		return "ILLEGAL"
	case TokenIdent:
		return "IDENT"
	case TokenString:
		return "STRING"
	case TokenNumber:
		return "NUMBER"
	case TokenPipe:
		return "|"
	case TokenColon:
		return ":"
	case TokenComma:
		return ","
	case TokenDot:
		return "."
	case TokenDotDot:
		return ".."
	case TokenLBracket:
		return "["
	case TokenRBracket:
		return "]"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenAssign:
		return "="
	case TokenEq:
		return "=="
	case TokenNeq:
		return "!="
	case TokenLt:
		return "<"
	case TokenGt:
		return ">"
	case TokenLte:
		return "<="
	case TokenGte:
		return ">="
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenContains:
		return "CONTAINS"
	case TokenIn:
		return "IN"
	case TokenTrue:
		return "TRUE"
	case TokenFalse:
		return "FALSE"
	case TokenNil:
		return "NIL"
	case TokenEmpty:
		return "EMPTY"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // Position in the template for error reporting
}

// keywords maps keyword strings to their token types.
var keywords = map[string]TokenType{
	"and":      TokenAnd,
	"or":       TokenOr,
	"contains": TokenContains,
	"in":       TokenIn,
	"true":     TokenTrue,
	"false":    TokenFalse,
	"nil":      TokenNil,
	"null":     TokenNil,
	"empty":    TokenEmpty,
}

// LookupKeyword returns the token type for the given identifier. If the
// identifier is a keyword, returns the keyword token type. Otherwise,
// returns TokenIdent.
func LookupKeyword(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return TokenIdent
}

// IsComparisonOp returns true if the token type is a comparison operator.
func (t TokenType) IsComparisonOp() bool {
	switch t {
	case TokenEq, TokenNeq, TokenLt, TokenGt, TokenLte, TokenGte, TokenContains:
		return true
	}
	return false
}
