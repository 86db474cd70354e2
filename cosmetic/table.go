// Package cosmetic holds a profile's element-hiding selector tables: a
// global list applied everywhere, plus per-domain rules and exceptions
// keyed by the domain the "##"/"#@#" line named.
package cosmetic

import (
	"strings"

	"github.com/adguard-community/cfblock/rule"
)

// Table is one profile's cosmetic selector store.
type Table struct {
	// global holds selectors that apply on every page, added by a line
	// starting with "##".
	global []string

	// domainRules maps a host to the selectors added by a
	// "domain1,domain2##selector" line.
	domainRules map[string][]string

	// domainExceptions maps a host to the selectors added by a
	// "domain1,domain2#@#selector" line.
	domainExceptions map[string][]string
}

// New returns an empty Table.
func New() *Table {
	return &Table{
		domainRules:      make(map[string][]string),
		domainExceptions: make(map[string][]string),
	}
}

// AddGlobal appends selector to the global set.
func (t *Table) AddGlobal(selector string) {
	t.global = append(t.global, selector)
}

// AddDomainRule inserts (domain, selector) into the domain cosmetic
// table. The parser calls it once per entry of a comma-separated domain
// list, against the same selector.
func (t *Table) AddDomainRule(domain, selector string) {
	t.domainRules[domain] = append(t.domainRules[domain], selector)
}

// AddDomainException inserts (domain, selector) into the domain
// exceptions table.
func (t *Table) AddDomainException(domain, selector string) {
	t.domainExceptions[domain] = append(t.domainExceptions[domain], selector)
}

// Clear empties every structure, the cosmetic half of Profile.Clear.
func (t *Table) Clear() {
	t.global = nil
	t.domainRules = make(map[string][]string)
	t.domainExceptions = make(map[string][]string)
}

// Filters is the result of GetCosmeticFilters: selectors to apply, and
// selectors to suppress (because an exception rule matched the page's
// domain).
type Filters struct {
	Rules      []string
	Exceptions []string
}

// GetCosmeticFilters returns global (unless isDomainOnly) plus the union
// over domains of domainRules, and separately the union of
// domainExceptions. domains is expected to already be
// the subdomain list of the page host (rule.SubdomainList), so that both
// "example.com" and "www.example.com" entries are honored for a page on
// "www.example.com".
func (t *Table) GetCosmeticFilters(domains []string, isDomainOnly bool) Filters {
	var f Filters

	if !isDomainOnly {
		f.Rules = append(f.Rules, t.global...)
	}

	for _, d := range domains {
		f.Rules = append(f.Rules, t.domainRules[d]...)
		f.Exceptions = append(f.Exceptions, t.domainExceptions[d]...)
	}

	return f
}

// TLDWildcardFilters additionally honors "example.*" domain entries the
// way rule.IsDomainOrSubdomainOfAny does for network rules, so a cosmetic
// rule authored against a TLD wildcard still applies.
func (t *Table) TLDWildcardFilters(host string, isDomainOnly bool) Filters {
	f := t.GetCosmeticFilters(rule.SubdomainList(host), isDomainOnly)

	for d, selectors := range t.domainRules {
		if strings.HasSuffix(d, ".*") && rule.IsDomainOrSubdomainOfAny(host, []string{d}) {
			f.Rules = append(f.Rules, selectors...)
		}
	}

	for d, selectors := range t.domainExceptions {
		if strings.HasSuffix(d, ".*") && rule.IsDomainOrSubdomainOfAny(host, []string{d}) {
			f.Exceptions = append(f.Exceptions, selectors...)
		}
	}

	return f
}
