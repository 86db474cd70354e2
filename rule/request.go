package rule

import "strings"

// Request carries everything the matcher needs to know about one outgoing
// request, derived once per check rather than recomputed per trie node.
type Request struct {
	// RequestURL is the full URL string being requested.
	RequestURL string

	// RequestHost is the host portion of RequestURL.
	RequestHost string

	// BaseHost is the host of the page that initiated the request. Empty
	// for a top-level navigation.
	BaseHost string

	// ResourceType is the kind of resource being requested.
	ResourceType ResourceType
}

// NewRequest builds a Request from raw strings, extracting the hosts of
// both URLs up front.
func NewRequest(requestURL, baseURL string, resourceType ResourceType) *Request {
	return &Request{
		RequestURL:   requestURL,
		RequestHost:  ExtractHostname(requestURL),
		BaseHost:     ExtractHostname(baseURL),
		ResourceType: resourceType,
	}
}

// ExtractHostname retrieves the host component from a URL-like string. It
// is a best-effort, allocation-light extraction: it does not claim full
// RFC 3986 correctness, only enough to drive filter matching.
func ExtractHostname(url string) string {
	if url == "" {
		return ""
	}

	firstIdx := strings.Index(url, "//")
	if firstIdx == -1 {
		firstIdx = strings.Index(url, ":")
		if firstIdx == -1 {
			return ""
		}
		firstIdx--
	} else {
		firstIdx += 2
	}

	if firstIdx < 0 {
		return ""
	}

	nextIdx := strings.IndexAny(url[firstIdx:], "/:?")
	if nextIdx == -1 {
		nextIdx = len(url)
	} else {
		nextIdx += firstIdx
	}

	if nextIdx <= firstIdx {
		return ""
	}

	return url[firstIdx:nextIdx]
}

// SubdomainList yields [host, parent, grandparent, ..., tld]. The "||"
// host-boundary check tests membership against this list.
func SubdomainList(host string) []string {
	if host == "" {
		return nil
	}

	labels := strings.Split(host, ".")
	subdomains := make([]string, 0, len(labels))
	for i := 0; i < len(labels); i++ {
		subdomains = append(subdomains, strings.Join(labels[i:], "."))
	}

	return subdomains
}
