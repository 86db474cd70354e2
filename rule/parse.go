package rule

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrUnknownOption is returned by ParseOptions when an option token is
// not recognized. The parser discards the whole rule when this happens
// and continues with the next line.
type ErrUnknownOption struct {
	Token string
}

func (e *ErrUnknownOption) Error() string {
	return "unknown filter option: " + e.Token
}

// ParseOptions parses the comma-separated "$opt1,opt2,domain=a|~b" tail of
// a network rule:
//
//   - "~name" is the exception form of "name".
//   - WebSocket and Popup never enter the exceptions set, even when
//     written as "~websocket"/"~popup" (they are simply dropped, the rule
//     parse itself does not fail).
//   - ElementHide/GenericHide are meaningful only in their plain form on
//     exception rules; on a block rule, or negated as "~elemhide"/
//     "~generichide" on either rule kind, they are silently dropped
//     (parsing continues, neither opts nor excs is touched).
//   - A token starting with "domain" carries an '='-separated value which
//     is itself split on '|'; "~"-prefixed entries are allowed domains,
//     the rest are blocked domains.
//   - Any other unrecognized token aborts parsing of the whole rule.
func ParseOptions(raw string, isException bool) (opts, excs Options, blocked, allowed []string, err error) {
	if raw == "" {
		return 0, 0, nil, nil, nil
	}

	for _, token := range splitOptions(raw) {
		if token == "" {
			continue
		}

		negated := strings.HasPrefix(token, "~")
		name := token
		if negated {
			name = token[1:]
		}

		if strings.HasPrefix(name, "domain") {
			value := name
			if eq := strings.IndexByte(name, '='); eq >= 0 {
				value = name[eq+1:]
			}

			for _, entry := range strings.Split(value, "|") {
				if entry == "" {
					continue
				}
				if strings.HasPrefix(entry, "~") {
					allowed = append(allowed, entry[1:])
				} else {
					blocked = append(blocked, entry)
				}
			}

			continue
		}

		bit, ok := lookupOption(name)
		if !ok {
			return 0, 0, nil, nil, &ErrUnknownOption{Token: token}
		}

		if (bit == ElementHide || bit == GenericHide) && (!isException || negated) {
			// Honored only in their plain (non-negated) form on
			// exception rules; silently dropped for block rules, and a
			// negated "~elemhide"/"~generichide" never reaches the
			// exceptions set even on an exception rule.
			continue
		}

		if !negated {
			opts |= bit
			continue
		}

		if supportsException(bit) {
			excs |= bit
		}
	}

	return opts, excs, blocked, allowed, nil
}

// splitOptions splits a comma-separated option list, skipping empty
// entries.
func splitOptions(raw string) []string {
	parts := strings.Split(raw, ",")
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsDomainOrSubdomainOfAny reports whether domain equals, or is a
// subdomain of, any entry in domains. An entry of the form "example.*"
// matches "example" under any public suffix.
func IsDomainOrSubdomainOfAny(domain string, domains []string) bool {
	for _, d := range domains {
		if strings.HasSuffix(d, ".*") {
			withoutWildcard := d[:len(d)-1]

			if strings.HasPrefix(domain, withoutWildcard) ||
				strings.Contains(domain, "."+withoutWildcard) {
				tld, icann := publicsuffix.PublicSuffix(domain)
				if tld != "" && icann && strings.HasSuffix(domain, withoutWildcard+tld) {
					return true
				}
			}

			continue
		}

		if domain == d || (strings.HasSuffix(domain, d) && strings.HasSuffix(domain, "."+d)) {
			return true
		}
	}

	return false
}

// ContainsSubstring reports whether s contains needle as a substring. It
// gives the matcher's domain-constraint checks a single, obviously-named
// call site.
func ContainsSubstring(s, needle string) bool {
	return strings.Contains(s, needle)
}
