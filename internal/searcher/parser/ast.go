package parser

import "strings"

// Op is a binary set operator.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpAndNot
)

// Operator tokens of the query language.
const (
	TokenAnd    = "&&"
	TokenOr     = "||"
	TokenAndNot = "&!"
	TokenOpen   = "("
	TokenClose  = ")"
)

func (o Op) String() string {
	switch o {
	case OpAnd:
		return TokenAnd
	case OpOr:
		return TokenOr
	case OpAndNot:
		return TokenAndNot
	default:
		return "?"
	}
}

// Node is a query expression: either a *Term leaf or a *Binary operator
// owning both of its operands.
type Node interface {
	String() string
	node()
}

// Term matches the documents containing Text.
type Term struct {
	Text string
}

// Binary combines the document sets of Left and Right with Op.
type Binary struct {
	Op    Op
	Left  Node
	Right Node
}

func (*Term) node()   {}
func (*Binary) node() {}

func (t *Term) String() string { return t.Text }

// String renders the expression fully parenthesized, e.g. "((a && b) || c)".
func (b *Binary) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	sb.WriteString(b.Left.String())
	sb.WriteByte(' ')
	sb.WriteString(b.Op.String())
	sb.WriteByte(' ')
	sb.WriteString(b.Right.String())
	sb.WriteByte(')')
	return sb.String()
}

// Walk visits every node of the tree in post-order.
func Walk(n Node, fn func(Node)) {
	if b, ok := n.(*Binary); ok {
		Walk(b.Left, fn)
		Walk(b.Right, fn)
	}
	fn(n)
}

// Terms returns the leaf texts of n from left to right, duplicates kept.
func Terms(n Node) []string {
	var out []string
	Walk(n, func(n Node) {
		if t, ok := n.(*Term); ok {
			out = append(out, t.Text)
		}
	})
	return out
}

func isOperator(tok string) bool {
	switch tok {
	case TokenAnd, TokenOr, TokenAndNot, TokenOpen, TokenClose:
		return true
	}
	return false
}
