package boolean

// ToCNF rewrites the AST into conjunctive normal form. Evaluation over the
// CNF form is equivalent to evaluation over the original AST, which makes it
// a useful cross-check for the evaluator.
func ToCNF(n *Node) *Node {
	return distribute(toNNF(n.Clone()))
}

// toNNF pushes negations down to the leaves with De Morgan's laws and
// removes double negations.
func toNNF(n *Node) *Node {
	switch n.Kind {
	case KindNot:
		child := n.Children[0]
		switch child.Kind {
		case KindNot:
			return toNNF(child.Children[0])
		case KindAnd:
			or := &Node{Kind: KindOr}
			for _, c := range child.Children {
				or.Children = append(or.Children, toNNF(Not(c)))
			}
			return or
		case KindOr:
			and := &Node{Kind: KindAnd}
			for _, c := range child.Children {
				and.Children = append(and.Children, toNNF(Not(c)))
			}
			return and
		default:
			return n
		}
	case KindAnd, KindOr:
		for i, c := range n.Children {
			n.Children[i] = toNNF(c)
		}
		return n
	default:
		return n
	}
}

// distribute applies OR-over-AND distribution bottom-up.
func distribute(n *Node) *Node {
	switch n.Kind {
	case KindAnd:
		and := &Node{Kind: KindAnd}
		for _, c := range n.Children {
			dc := distribute(c)
			if dc.Kind == KindAnd {
				and.Children = append(and.Children, dc.Children...)
			} else {
				and.Children = append(and.Children, dc)
			}
		}
		return and
	case KindOr:
		// Distribute pairwise across children.
		result := distribute(n.Children[0])
		for _, c := range n.Children[1:] {
			result = distributeOr(result, distribute(c))
		}
		return result
	default:
		return n
	}
}

// distributeOr computes CNF(a OR b) given a, b already in CNF.
func distributeOr(a, b *Node) *Node {
	aClauses := clausesOf(a)
	bClauses := clausesOf(b)

	and := &Node{Kind: KindAnd}
	for _, ac := range aClauses {
		for _, bc := range bClauses {
			or := &Node{Kind: KindOr}
			or.Children = append(or.Children, literalsOf(ac)...)
			or.Children = append(or.Children, literalsOf(bc)...)
			and.Children = append(and.Children, or)
		}
	}
	if len(and.Children) == 1 {
		return and.Children[0]
	}
	return and
}

// clausesOf returns the conjunct clauses of a CNF node.
func clausesOf(n *Node) []*Node {
	if n.Kind == KindAnd {
		return n.Children
	}
	return []*Node{n}
}

// literalsOf returns the disjunct literals of a clause.
func literalsOf(n *Node) []*Node {
	if n.Kind == KindOr {
		return n.Children
	}
	return []*Node{n}
}
