// Package matcher walks the pattern trie for every suffix of a request
// URL, evaluates the rules attached to each node reached, and combines
// the per-rule decisions into one CheckResult.
package matcher

import (
	"strings"

	"github.com/adguard-community/cfblock/rule"
	"github.com/adguard-community/cfblock/trie"
)

// CosmeticMode tells the host how an exception rule should narrow cosmetic
// filtering on the page that triggered it.
type CosmeticMode int

// CosmeticMode values.
const (
	Unchanged CosmeticMode = iota
	NoFilters
	DomainOnlyFilters
)

// CheckResult is the outcome of matching one request against a profile.
type CheckResult struct {
	// IsBlocked is true when a block rule won.
	IsBlocked bool

	// IsException is true when an exception rule won.
	IsException bool

	// Rule is the raw text of the decisive rule, if any.
	Rule string

	// CosmeticMode is only meaningful when IsException is true and the
	// rule carried ElementHide or GenericHide.
	CosmeticMode CosmeticMode
}

// separators are the non-alphanumeric characters that do NOT count as a
// '^' separator match.
const separators = "_-.%"

// CheckURL walks root for every suffix of req.RequestURL and combines the
// per-suffix results: any exception short-circuits immediately, otherwise
// the last blocking suffix to match wins.
func CheckURL(root *trie.Node, req *rule.Request) CheckResult {
	var result CheckResult

	for i := 0; i < len(req.RequestURL); i++ {
		current := checkURLSubstring(root, req.RequestURL[i:], "", req)

		if current.IsException {
			return current
		}

		if current.IsBlocked {
			result = current
		}
	}

	return result
}

// checkURLSubstring descends the trie along s, evaluating node.Rules at
// every step and recursing into '*' and '^' children.
func checkURLSubstring(node *trie.Node, s, pathSoFar string, req *rule.Request) CheckResult {
	var result CheckResult

	for i := 0; i < len(s); i++ {
		treeChar := s[i]

		current := evaluateNodeRules(node, pathSoFar, req)
		if current.IsException {
			return current
		}
		if current.IsBlocked {
			result = current
		}

		childFound := false

		for _, child := range node.Children {
			if child.Value == trie.Wildcard {
				wildcardSub := s[i:]

				for k := 0; k < len(wildcardSub); k++ {
					current = checkURLSubstring(child, wildcardSub[k:], pathSoFar+wildcardSub[:k], req)

					if current.IsException {
						return current
					}
					if current.IsBlocked {
						result = current
					}
				}
			}

			if child.Value == trie.Separator && !isWordOrSeparatorChar(treeChar) {
				current = checkURLSubstring(child, s[i:], pathSoFar, req)

				if current.IsException {
					return current
				}
				if current.IsBlocked {
					result = current
				}
			}

			if child.Value == treeChar {
				node = child
				childFound = true
				break
			}
		}

		if !childFound {
			return result
		}

		pathSoFar += string(treeChar)
	}

	current := evaluateNodeRules(node, pathSoFar, req)
	if current.IsException {
		return current
	}
	if current.IsBlocked {
		result = current
	}

	for _, child := range node.Children {
		if child.Value == trie.Separator {
			// End-of-string counts as a separator match. Note this
			// re-evaluates node's own rules rather than descending into
			// child, so a rule terminating on a '^' node only fires when
			// the separator was consumed mid-string.
			current = evaluateNodeRules(node, pathSoFar, req)

			if current.IsException {
				return current
			}
			if current.IsBlocked {
				result = current
			}
		}
	}

	return result
}

// isWordOrSeparatorChar reports whether c is a letter, digit, or one of
// the four characters that are NOT treated as a '^' separator match.
func isWordOrSeparatorChar(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	default:
		return strings.IndexByte(separators, c) >= 0
	}
}

// evaluateNodeRules runs checkRuleMatch over every rule attached to node,
// in insertion order, keeping the last blocking result the same way
// checkURLSubstring's caller does, and returning immediately on the first
// exception.
func evaluateNodeRules(node *trie.Node, currentPath string, req *rule.Request) CheckResult {
	var result CheckResult

	for _, r := range node.Rules {
		current := checkRuleMatch(r, currentPath, req)
		if !current.IsBlocked && !current.IsException {
			continue
		}

		if current.IsException {
			return current
		}

		result = current
	}

	return result
}
