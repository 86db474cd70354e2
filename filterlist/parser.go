// Package filterlist implements the line-oriented Adblock Plus filter
// list parser: line classification (comment, cosmetic, network), network
// rule option parsing, and insertion of the resulting rules into a
// pattern trie and cosmetic table.
package filterlist

import (
	"bufio"
	"io"
	"log/slog"
	"strings"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/adguard-community/cfblock/cosmetic"
	"github.com/adguard-community/cfblock/filterutil"
	"github.com/adguard-community/cfblock/rule"
	"github.com/adguard-community/cfblock/trie"
)

// CosmeticMode gates how much cosmetic filtering the parser retains.
type CosmeticMode int

// CosmeticMode values.
const (
	AllFilters CosmeticMode = iota
	DomainFilters
	NoFilters
)

// Options configures Parse.
type Options struct {
	// FilterListID is stamped onto every parsed rule.Rule.
	// matcher.CheckResult does not report it.
	FilterListID int

	// CosmeticMode gates cosmetic rule handling.
	CosmeticMode CosmeticMode

	// WildcardsEnabled controls whether a residual "*" in a network
	// rule body is accepted or causes the rule to be discarded.
	WildcardsEnabled bool
}

// Result is everything Parse extracted from one filter list.
type Result struct {
	// Root is the pattern trie built from every accepted network rule.
	Root *trie.Node

	// Cosmetic holds every accepted cosmetic rule/exception.
	Cosmetic *cosmetic.Table

	// RuleCount is the number of network rules inserted into Root.
	RuleCount int

	// DiscardedCount is the number of non-comment, non-cosmetic lines
	// that were rejected (unknown option, disabled wildcard support).
	DiscardedCount int
}

// Parse reads r line by line and classifies each one as a comment, a
// cosmetic rule, or a network rule.
func Parse(r io.Reader, opts Options) (*Result, error) {
	res := &Result{
		Root:     trie.New(),
		Cosmetic: cosmetic.New(),
	}

	scanner := bufio.NewScanner(r)
	// Filter lists occasionally carry very long single-line entries
	// (e.g. base64 exception data); grow past bufio's 64KiB default.
	scanner.Buffer(make([]byte, 4096), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		res.parseLine(line, opts)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return res, nil
}

func (res *Result) parseLine(line string, opts Options) {
	if line == "" || strings.IndexByte(line, '!') == 0 {
		return
	}

	if strings.HasPrefix(line, "##") {
		if opts.CosmeticMode == AllFilters {
			res.Cosmetic.AddGlobal(line[2:])
		}
		return
	}

	if idx := strings.Index(line, "##"); idx >= 0 {
		if opts.CosmeticMode != NoFilters {
			addDomainCosmetic(res.Cosmetic.AddDomainRule, line[:idx], line[idx+2:])
		}
		return
	}

	if idx := strings.Index(line, "#@#"); idx >= 0 {
		if opts.CosmeticMode != NoFilters {
			addDomainCosmetic(res.Cosmetic.AddDomainException, line[:idx], line[idx+3:])
		}
		return
	}

	r, ok := parseNetworkRule(line, opts)
	if !ok {
		res.DiscardedCount++
		return
	}

	res.Root.Insert(r.body, r.Rule)
	res.RuleCount++
}

// addDomainCosmetic splits domainsCsv on ',' and inserts (domain,
// selector) for each. Entries that aren't a syntactically valid domain
// name (garbage produced by a malformed list) are dropped; the
// "example.*" TLD-wildcard form is validated on its literal-label prefix
// only.
func addDomainCosmetic(insert func(domain, selector string), domainsCsv, selector string) {
	for _, d := range strings.Split(domainsCsv, ",") {
		if d == "" {
			continue
		}

		check := d
		if strings.HasSuffix(check, ".*") {
			check = check[:len(check)-2]
		}

		if !filterutil.IsDomainName(check) {
			continue
		}

		insert(d, selector)
	}
}

// parsedRule bundles the trie insertion key alongside the built Rule.
type parsedRule struct {
	*rule.Rule
	body string
}

// parseNetworkRule parses one network rule line. ok is false when the
// rule must be discarded (unrecognized option, or a residual wildcard
// while wildcards are disabled).
func parseNetworkRule(line string, opts Options) (parsedRule, bool) {
	body := line
	rawOptions := ""

	if idx := strings.IndexByte(body, '$'); idx >= 0 {
		rawOptions = body[idx+1:]
		body = body[:idx]
	}

	if strings.HasSuffix(body, "*") {
		body = body[:len(body)-1]
	}
	if strings.HasPrefix(body, "*") {
		body = body[1:]
	}

	if !opts.WildcardsEnabled && strings.ContainsRune(body, '*') {
		return parsedRule{}, false
	}

	r := &rule.Rule{
		Raw:          line,
		FilterListID: opts.FilterListID,
	}

	r.IsException = strings.HasPrefix(body, "@@")
	if r.IsException {
		body = body[2:]
	}

	r.NeedsDomainCheck = strings.HasPrefix(body, "||")
	if r.NeedsDomainCheck {
		body = body[2:]
	}

	if strings.HasPrefix(body, "|") {
		r.Anchor = rule.Start
		body = body[1:]
	}

	if strings.HasSuffix(body, "|") {
		if r.Anchor == rule.Start {
			r.Anchor = rule.Exact
		} else {
			r.Anchor = rule.End
		}
		body = body[:len(body)-1]
	}

	opt, exc, blocked, allowed, err := rule.ParseOptions(rawOptions, r.IsException)
	if err != nil {
		slog.Debug("filterlist: discarding rule", "rule", line, slogutil.KeyError, err)
		return parsedRule{}, false
	}

	r.Options = opt
	r.Exceptions = exc
	r.BlockedDomains = blocked
	r.AllowedDomains = allowed

	return parsedRule{Rule: r, body: body}, true
}
