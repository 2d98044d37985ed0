package boolean

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/graphmem/internal/errors"
)

// Limits guards query complexity before evaluation.
type Limits struct {
	// MaxDepth bounds AST nesting depth.
	MaxDepth int
	// MaxTerms bounds the number of term/phrase leaves.
	MaxTerms int
	// MaxOperators bounds the number of AND/OR/NOT nodes.
	MaxOperators int
	// MaxQueryLength bounds the raw query string length.
	MaxQueryLength int
}

// DefaultLimits returns the default complexity guard.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:       10,
		MaxTerms:       50,
		MaxOperators:   50,
		MaxQueryLength: 1000,
	}
}

// Parse tokenizes and parses a query into an AST, enforcing limits.
// Precedence, low to high: OR, AND, NOT. The implicit operator between
// adjacent atoms is AND.
func Parse(query string, limits Limits) (*Node, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "empty boolean query", nil)
	}
	if limits.MaxQueryLength > 0 && len(query) > limits.MaxQueryLength {
		return nil, errors.Capacity(fmt.Sprintf("query exceeds %d characters", limits.MaxQueryLength))
	}

	tokens, err := lex(trimmed)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "empty boolean query", nil)
	}

	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, errors.Parse("unexpected token after end of query")
	}

	if err := checkLimits(node, limits); err != nil {
		return nil, err
	}
	return node, nil
}

func checkLimits(node *Node, limits Limits) error {
	if limits.MaxDepth > 0 && node.Depth() > limits.MaxDepth {
		return errors.Capacity(fmt.Sprintf("query nesting exceeds depth %d", limits.MaxDepth))
	}
	terms, operators := node.Counts()
	if limits.MaxTerms > 0 && terms > limits.MaxTerms {
		return errors.Capacity(fmt.Sprintf("query exceeds %d terms", limits.MaxTerms))
	}
	if limits.MaxOperators > 0 && operators > limits.MaxOperators {
		return errors.Capacity(fmt.Sprintf("query exceeds %d operators", limits.MaxOperators))
	}
	return nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

// parseOr handles the lowest-precedence operator.
func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	children := []*Node{left}
	for {
		tok, ok := p.peek()
		if !ok || tok.typ != tokOr {
			break
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}

	if len(children) == 1 {
		return left, nil
	}
	return Or(children...), nil
}

// parseAnd handles explicit AND and the implicit AND between adjacent atoms.
func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	children := []*Node{left}
	for {
		tok, ok := p.peek()
		if !ok {
			break
		}
		switch tok.typ {
		case tokAnd:
			p.pos++
		case tokWord, tokPhrase, tokField, tokNot, tokLParen:
			// implicit AND
		default:
			return andOf(children), nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	return andOf(children), nil
}

func andOf(children []*Node) *Node {
	if len(children) == 1 {
		return children[0]
	}
	return And(children...)
}

// parseNot handles the highest-precedence operator.
func (p *parser) parseNot() (*Node, error) {
	tok, ok := p.peek()
	if ok && tok.typ == tokNot {
		p.pos++
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not(child), nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (*Node, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, errors.Parse("unexpected end of query")
	}

	switch tok.typ {
	case tokWord:
		p.pos++
		return Term(tok.value), nil
	case tokPhrase:
		p.pos++
		return &Node{Kind: KindPhrase, Field: tok.field, Value: strings.ToLower(tok.value)}, nil
	case tokField:
		p.pos++
		return FieldTerm(tok.field, tok.value), nil
	case tokLParen:
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		next, ok := p.peek()
		if !ok || next.typ != tokRParen {
			return nil, errors.Parse("unbalanced parentheses")
		}
		p.pos++
		return inner, nil
	case tokRParen:
		return nil, errors.Parse("unexpected closing parenthesis")
	case tokAnd, tokOr:
		return nil, errors.Parse("operator without operand")
	}
	return nil, errors.Parse("unexpected token")
}
