// Package trie implements the character-indexed pattern tree the matcher
// walks: every network rule pattern is inserted character by character,
// rules accumulate on the node reached after their last character, and a
// child node keyed '^' (the separator placeholder) is always kept ahead
// of its siblings. Filter lists share long pattern prefixes ("/ads/",
// "ad."), so matching cost grows with URL length rather than with the
// number of rules.
package trie

import "github.com/adguard-community/cfblock/rule"

// Separator is the placeholder byte for "any non-alphanumeric,
// non-separator character". At end of string the matcher re-evaluates
// the rules of the node holding the '^' child, not the child's own rules,
// so a rule ending in '^' only fires on a separator character consumed
// mid-string.
const Separator = '^'

// Wildcard is the placeholder byte for "zero or more of any character".
const Wildcard = '*'

// Node is one character position in the trie. The root Node has a zero
// Value and holds only the rules inserted with an empty pattern.
type Node struct {
	// Value is the character this node matches. Meaningless on the root.
	Value byte

	// Children are the next characters reachable from this node. A
	// Separator child, if present, is always Children[0] (Insert
	// maintains this), since a future walk must try it before falling
	// through to ordinary literal children.
	Children []*Node

	// Rules are the patterns whose last character lands on this node.
	Rules []*rule.Rule
}

// New returns an empty root node.
func New() *Node {
	return &Node{}
}

// child returns the existing child keyed value, or nil.
func (n *Node) child(value byte) *Node {
	for _, c := range n.Children {
		if c.Value == value {
			return c
		}
	}
	return nil
}

// Insert walks pattern from n, creating nodes as needed, and appends r to
// the rules of the node reached after pattern's last character. An empty
// pattern attaches r directly to n, which is how a rule whose body is
// consumed entirely by its prefixes (a bare "@@" or "||") ends up on the
// root.
func (n *Node) Insert(pattern string, r *rule.Rule) {
	node := n

	for i := 0; i < len(pattern); i++ {
		value := pattern[i]

		next := node.child(value)
		if next == nil {
			next = &Node{Value: value}

			if value == Separator {
				// A separator child must be tried before any literal
				// child during a walk, so it is always prepended.
				node.Children = append([]*Node{next}, node.Children...)
			} else {
				node.Children = append(node.Children, next)
			}
		}

		node = next
	}

	node.Rules = append(node.Rules, r)
}

// Walk calls visit for every node reachable by consuming value-equal
// children along path, stopping at the first position with no matching
// child. It does not interpret Separator or Wildcard children specially;
// that traversal, which also needs to evaluate rule and domain state,
// lives in package matcher. Walk exists mainly so tests can assert on
// trie shape without depending on the matcher package.
func (n *Node) Walk(path string, visit func(*Node, int)) {
	node := n
	visit(node, 0)

	for i := 0; i < len(path); i++ {
		next := node.child(path[i])
		if next == nil {
			return
		}

		node = next
		visit(node, i+1)
	}
}
