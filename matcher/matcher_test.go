package matcher

import (
	"testing"

	"github.com/adguard-community/cfblock/rule"
	"github.com/adguard-community/cfblock/trie"
	"github.com/stretchr/testify/assert"
)

func TestCheckURL_SimpleBlock(t *testing.T) {
	root := trie.New()
	root.Insert("ads/banner", &rule.Rule{Raw: "ads/banner"})

	req := rule.NewRequest("http://example.com/ads/banner.png", "", rule.TypeImage)

	result := CheckURL(root, req)

	assert.True(t, result.IsBlocked)
	assert.Equal(t, "ads/banner", result.Rule)
}

func TestCheckURL_NoMatch(t *testing.T) {
	root := trie.New()
	root.Insert("ads/banner", &rule.Rule{Raw: "ads/banner"})

	req := rule.NewRequest("http://example.com/safe/image.png", "", rule.TypeImage)

	result := CheckURL(root, req)

	assert.False(t, result.IsBlocked)
	assert.False(t, result.IsException)
}

func TestCheckURL_ExceptionShortCircuits(t *testing.T) {
	root := trie.New()
	root.Insert("ads/banner", &rule.Rule{Raw: "ads/banner"})
	root.Insert("banner", &rule.Rule{Raw: "@@banner", IsException: true})

	req := rule.NewRequest("http://example.com/ads/banner.png", "", rule.TypeImage)

	result := CheckURL(root, req)

	assert.True(t, result.IsException)
	assert.False(t, result.IsBlocked)
	assert.Equal(t, "@@banner", result.Rule)
}

func TestCheckURL_LastBlockWins(t *testing.T) {
	root := trie.New()
	root.Insert("first", &rule.Rule{Raw: "first"})
	root.Insert("second", &rule.Rule{Raw: "second"})

	req := rule.NewRequest("http://example.com/first/second", "", rule.TypeOther)

	result := CheckURL(root, req)

	assert.True(t, result.IsBlocked)
	assert.Equal(t, "second", result.Rule)
}

func TestCheckURL_Wildcard(t *testing.T) {
	root := trie.New()
	root.Insert("ads/*/track", &rule.Rule{Raw: "ads/*/track"})

	req := rule.NewRequest("http://example.com/ads/123/track", "", rule.TypeOther)

	result := CheckURL(root, req)

	assert.True(t, result.IsBlocked)
}

// End-of-string handling re-evaluates the node reached, not the pending
// '^' child's own rules, reproducing the reference engine's traversal
// exactly: a rule parked on a separator node is never reached by this
// branch, only by the in-loop separator check at a non-final position.
func TestCheckURL_SeparatorAtEndOfStringDoesNotMatchChildRules(t *testing.T) {
	root := trie.New()
	root.Insert("ads^", &rule.Rule{Raw: "ads^"})

	req := rule.NewRequest("http://example.com/ads", "", rule.TypeOther)

	result := CheckURL(root, req)

	assert.False(t, result.IsBlocked)
}

func TestCheckURL_SeparatorMidStringMatchesNonWordChar(t *testing.T) {
	root := trie.New()
	root.Insert("ads^", &rule.Rule{Raw: "ads^"})

	req := rule.NewRequest("http://example.com/ads/index.html", "", rule.TypeOther)

	result := CheckURL(root, req)

	assert.True(t, result.IsBlocked)
}

func TestCheckRuleMatch_AnchorVariants(t *testing.T) {
	req := rule.NewRequest("http://example.com/ads/banner.png", "", rule.TypeImage)

	testCases := []struct {
		name   string
		anchor rule.Anchor
		path   string
		want   bool
	}{
		{"start ok", rule.Start, "http://example.com", true},
		{"start fail", rule.Start, "/ads", false},
		{"end ok", rule.End, "banner.png", true},
		{"end fail", rule.End, "example.com", false},
		{"exact fail", rule.Exact, "banner.png", false},
		{"substring ok", rule.Substring, "/ads/", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := &rule.Rule{Raw: "r", Anchor: tc.anchor}
			result := checkRuleMatch(r, tc.path, req)
			assert.Equal(t, tc.want, result.IsBlocked)
		})
	}
}

func TestCheckRuleMatch_DomainConstraints(t *testing.T) {
	req := &rule.Request{
		RequestURL:  "http://ads.example.com/banner",
		RequestHost: "ads.example.com",
		BaseHost:    "news.example.com",
	}

	blocked := &rule.Rule{Raw: "r1", BlockedDomains: []string{"example.com"}}
	assert.True(t, checkRuleMatch(blocked, "banner", req).IsBlocked)

	notBlocked := &rule.Rule{Raw: "r2", BlockedDomains: []string{"other.com"}}
	assert.False(t, checkRuleMatch(notBlocked, "banner", req).IsBlocked)

	allowed := &rule.Rule{Raw: "r3", AllowedDomains: []string{"news.example.com"}}
	assert.False(t, checkRuleMatch(allowed, "banner", req).IsBlocked)
}

func TestCheckRuleMatch_TLDWildcardDomainConstraint(t *testing.T) {
	req := &rule.Request{
		RequestURL:  "http://ads.example.com/banner",
		RequestHost: "ads.example.com",
		BaseHost:    "news.co.uk",
	}

	blocked := &rule.Rule{Raw: "r1", BlockedDomains: []string{"news.*"}}
	assert.True(t, checkRuleMatch(blocked, "banner", req).IsBlocked)

	other := &rule.Rule{Raw: "r2", BlockedDomains: []string{"sport.*"}}
	assert.False(t, checkRuleMatch(other, "banner", req).IsBlocked)
}

func TestCheckRuleMatch_ThirdParty(t *testing.T) {
	firstParty := &rule.Request{RequestURL: "x", RequestHost: "example.com", BaseHost: "example.com"}
	thirdParty := &rule.Request{RequestURL: "x", RequestHost: "cdn.example.com", BaseHost: "news.com"}

	r := &rule.Rule{Raw: "r", Options: rule.ThirdParty}

	assert.False(t, checkRuleMatch(r, "x", firstParty).IsBlocked)
	assert.True(t, checkRuleMatch(r, "x", thirdParty).IsBlocked)
}

func TestCheckRuleMatch_ResourceTypeGating(t *testing.T) {
	req := &rule.Request{RequestURL: "x", ResourceType: rule.TypeScript}

	matching := &rule.Rule{Raw: "r1", Options: rule.Script}
	assert.True(t, checkRuleMatch(matching, "x", req).IsBlocked)

	nonMatching := &rule.Rule{Raw: "r2", Options: rule.Image}
	assert.False(t, checkRuleMatch(nonMatching, "x", req).IsBlocked)
}

func TestCheckRuleMatch_PopupWithNoOptionsNeverBlocks(t *testing.T) {
	req := &rule.Request{RequestURL: "x", ResourceType: rule.TypePopup}
	r := &rule.Rule{Raw: "r"}

	assert.False(t, checkRuleMatch(r, "x", req).IsBlocked)
}

func TestCheckRuleMatch_ExceptionWithNegatedElemhideDoesNotSetException(t *testing.T) {
	req := &rule.Request{RequestURL: "x", ResourceType: rule.TypePopup}

	// "@@||example.com^$~elemhide" parses ~elemhide as a no-op (it must
	// never set r.Exceptions), so this rule must behave exactly like an
	// options-less exception rule and never match a Popup request.
	r := &rule.Rule{Raw: "@@r$~elemhide", IsException: true}

	result := checkRuleMatch(r, "x", req)
	assert.False(t, result.IsBlocked)
	assert.False(t, result.IsException)
}

func TestCheckRuleMatch_ExceptionCosmeticMode(t *testing.T) {
	req := &rule.Request{RequestURL: "x"}

	elemHide := &rule.Rule{Raw: "@@eh", IsException: true, Options: rule.ElementHide}
	result := checkRuleMatch(elemHide, "x", req)
	assert.True(t, result.IsException)
	assert.Equal(t, NoFilters, result.CosmeticMode)

	genericHide := &rule.Rule{Raw: "@@gh", IsException: true, Options: rule.GenericHide}
	result = checkRuleMatch(genericHide, "x", req)
	assert.True(t, result.IsException)
	assert.Equal(t, DomainOnlyFilters, result.CosmeticMode)
}

func TestCheckRuleMatch_NeedsDomainCheck(t *testing.T) {
	path := "ads.example.com/banner?x=1"
	req := &rule.Request{RequestURL: path, RequestHost: "ads.example.com"}

	r := &rule.Rule{Raw: "r", NeedsDomainCheck: true}

	assert.True(t, checkRuleMatch(r, path, req).IsBlocked)

	other := &rule.Request{RequestURL: path, RequestHost: "other.com"}
	assert.False(t, checkRuleMatch(r, path, other).IsBlocked)
}

func TestIsWordOrSeparatorChar(t *testing.T) {
	assert.True(t, isWordOrSeparatorChar('a'))
	assert.True(t, isWordOrSeparatorChar('9'))
	assert.True(t, isWordOrSeparatorChar('_'))
	assert.True(t, isWordOrSeparatorChar('.'))
	assert.False(t, isWordOrSeparatorChar('/'))
	assert.False(t, isWordOrSeparatorChar('?'))
}
