// Package newick parses the newick tree format used to serialize language
// phylogenies.
//
// The accepted grammar is the common subset emitted by phylogenetics tools:
//
//	tree   = node ";"
//	node   = [ "(" node { "," node } ")" ] [ label ] [ ":" length ]
//	label  = bare-word | "'" quoted "'"
//
// Whitespace around tokens is ignored and the trailing semicolon is optional.
// Bare labels run up to the next structural character, so they may contain
// inner spaces or brackets (as Glottolog labels do).
package newick

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is one node of a parsed tree.
type Node struct {
	Name     string
	Length   float64
	Children []*Node
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Leaves returns the leaves below n in document order.
func (n *Node) Leaves() []*Node {
	var out []*Node
	n.Walk(func(node *Node, _ *Node) {
		if node.IsLeaf() {
			out = append(out, node)
		}
	})
	return out
}

// Walk visits n and its descendants in pre-order, passing each node's parent
// (nil for n itself).
func (n *Node) Walk(fn func(node, parent *Node)) {
	var walk func(node, parent *Node)
	walk = func(node, parent *Node) {
		fn(node, parent)
		for _, c := range node.Children {
			walk(c, node)
		}
	}
	walk(n, nil)
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node, *Node) { count++ })
	return count
}

// String serializes the subtree back to newick (without the trailing ';').
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if len(n.Children) > 0 {
		sb.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				sb.WriteByte(',')
			}
			c.write(sb)
		}
		sb.WriteByte(')')
	}
	sb.WriteString(quoteLabel(n.Name))
	if n.Length != 0 {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(n.Length, 'g', -1, 64))
	}
}

func quoteLabel(s string) string {
	if s == "" || !strings.ContainsAny(s, "()':;,") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ParseError describes malformed newick input.
type ParseError struct {
	Offset int    // Byte offset into the input
	Msg    string // What went wrong
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("newick: %s at offset %d", e.Msg, e.Offset)
}

// Parse reads a single tree from s.
func Parse(s string) (*Node, error) {
	p := &parser{src: s}
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("empty input")
	}

	root, err := p.node(0)
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if !p.eof() && p.peek() == ';' {
		p.pos++
		p.skipSpace()
	}
	if !p.eof() {
		return nil, p.errorf("unexpected %q after tree", p.peek())
	}
	return root, nil
}

// maxDepth bounds recursion on hostile input.
const maxDepth = 10000

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool  { return p.pos >= len(p.src) }
func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) node(depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, p.errorf("tree nested deeper than %d", maxDepth)
	}
	n := &Node{}

	p.skipSpace()
	if !p.eof() && p.peek() == '(' {
		p.pos++
		for {
			child, err := p.node(depth + 1)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)

			p.skipSpace()
			if p.eof() {
				return nil, p.errorf("unterminated child list")
			}
			switch p.peek() {
			case ',':
				p.pos++
				continue
			case ')':
				p.pos++
			default:
				return nil, p.errorf("expected ',' or ')', found %q", p.peek())
			}
			break
		}
	}

	p.skipSpace()
	name, err := p.label()
	if err != nil {
		return nil, err
	}
	n.Name = name

	p.skipSpace()
	if !p.eof() && p.peek() == ':' {
		p.pos++
		p.skipSpace()
		length, err := p.number()
		if err != nil {
			return nil, err
		}
		n.Length = length
	}
	return n, nil
}

func (p *parser) label() (string, error) {
	if p.eof() {
		return "", nil
	}
	if p.peek() == '\'' {
		return p.quoted()
	}
	start := p.pos
	for !p.eof() && !isDelimiter(p.peek()) {
		p.pos++
	}
	return strings.TrimSpace(p.src[start:p.pos]), nil
}

func (p *parser) quoted() (string, error) {
	start := p.pos
	p.pos++ // opening quote
	var sb strings.Builder
	for !p.eof() {
		c := p.peek()
		p.pos++
		if c != '\'' {
			sb.WriteByte(c)
			continue
		}
		if !p.eof() && p.peek() == '\'' {
			sb.WriteByte('\'')
			p.pos++
			continue
		}
		return sb.String(), nil
	}
	return "", &ParseError{Offset: start, Msg: "unterminated quoted label"}
}

func (p *parser) number() (float64, error) {
	start := p.pos
	for !p.eof() && !isDelimiter(p.peek()) {
		p.pos++
	}
	raw := strings.TrimSpace(p.src[start:p.pos])
	if raw == "" {
		return 0, &ParseError{Offset: start, Msg: "missing branch length"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ParseError{Offset: start, Msg: fmt.Sprintf("invalid branch length %q", raw)}
	}
	return v, nil
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', ',', ':', ';':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
