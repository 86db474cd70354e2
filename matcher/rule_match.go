package matcher

import (
	"strings"

	"github.com/adguard-community/cfblock/rule"
)

// hostDelimiters are the characters that end the host-like prefix of a
// matched path.
const hostDelimiters = ":?&/="

// checkRuleMatch evaluates one rule against the path matched so far:
// anchors first, then the "||" host check, domain constraints, ThirdParty
// handling, and resource-type gating, in that order.
func checkRuleMatch(r *rule.Rule, path string, req *rule.Request) CheckResult {
	if !anchorMatches(r.Anchor, req.RequestURL, path) {
		return CheckResult{}
	}

	requestSubdomains := rule.SubdomainList(req.RequestHost)

	if r.NeedsDomainCheck {
		hostPart := path
		if idx := strings.IndexAny(path, hostDelimiters); idx >= 0 {
			hostPart = path[:idx]
		}

		if !contains(requestSubdomains, hostPart) {
			return CheckResult{}
		}
	}

	hasBlocked := len(r.BlockedDomains) > 0
	hasAllowed := len(r.AllowedDomains) > 0
	blocked := true

	if hasBlocked {
		blocked = anyContainedIn(req.BaseHost, r.BlockedDomains)
		if !blocked {
			return CheckResult{}
		}
	}

	if hasAllowed {
		blocked = !anyContainedIn(req.BaseHost, r.AllowedDomains)
	}

	if r.HasOption(rule.ThirdParty) || r.HasException(rule.ThirdParty) {
		if req.BaseHost == "" || contains(requestSubdomains, req.BaseHost) {
			blocked = r.HasException(rule.ThirdParty)
		} else if !hasBlocked && !hasAllowed {
			blocked = r.HasOption(rule.ThirdParty)
		}
	}

	switch {
	case r.Options != 0 || r.Exceptions != 0:
		for opt, mapped := range rule.ResourceTypeOptions() {
			supportsExc := rule.SupportsException(mapped)

			if !r.HasOption(mapped) && !(supportsExc && r.HasException(mapped)) {
				continue
			}

			switch {
			case req.ResourceType == opt:
				if blocked {
					blocked = r.HasOption(mapped)
				}
			case supportsExc:
				if blocked {
					blocked = r.HasException(mapped)
				}
			default:
				blocked = false
			}
		}
	case req.ResourceType == rule.TypePopup:
		blocked = false
	}

	if !blocked {
		return CheckResult{}
	}

	if r.IsException {
		result := CheckResult{Rule: r.Raw, IsException: true}

		switch {
		case r.HasOption(rule.ElementHide):
			result.CosmeticMode = NoFilters
		case r.HasOption(rule.GenericHide):
			result.CosmeticMode = DomainOnlyFilters
		}

		return result
	}

	return CheckResult{Rule: r.Raw, IsBlocked: true}
}

func anchorMatches(a rule.Anchor, requestURL, path string) bool {
	switch a {
	case rule.Start:
		return strings.HasPrefix(requestURL, path)
	case rule.End:
		return strings.HasSuffix(requestURL, path)
	case rule.Exact:
		return requestURL == path
	default:
		return strings.Contains(requestURL, path)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// anyContainedIn reports whether any entry of domains constrains host: a
// plain entry matches by substring containment, while an "example.*"
// entry is resolved against host's actual public suffix.
func anyContainedIn(host string, domains []string) bool {
	for _, d := range domains {
		if strings.HasSuffix(d, ".*") {
			if rule.IsDomainOrSubdomainOfAny(host, []string{d}) {
				return true
			}

			continue
		}

		if rule.ContainsSubstring(host, d) {
			return true
		}
	}

	return false
}
