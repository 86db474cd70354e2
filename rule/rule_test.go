package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Has(t *testing.T) {
	o := Script | ThirdParty

	assert.True(t, o.Has(Script))
	assert.True(t, o.Has(ThirdParty))
	assert.True(t, o.Has(Script|ThirdParty))
	assert.False(t, o.Has(Image))
}

func TestOptions_Count(t *testing.T) {
	assert.Equal(t, 0, Options(0).Count())
	assert.Equal(t, 1, Script.Count())
	assert.Equal(t, 2, (Script | Image).Count())
	assert.Equal(t, 12, (ThirdParty | StyleSheet | Image | Script | Object |
		ObjectSubRequest | SubDocument | XmlHttpRequest | WebSocket | Popup |
		ElementHide | GenericHide).Count())
}

func TestSupportsException(t *testing.T) {
	assert.False(t, supportsException(WebSocket))
	assert.False(t, supportsException(Popup))
	assert.True(t, supportsException(Script))
	assert.True(t, supportsException(ThirdParty))
}

func TestParseOptions(t *testing.T) {
	testCases := []struct {
		name        string
		raw         string
		isException bool
		wantOpts    Options
		wantExcs    Options
		wantBlocked []string
		wantAllowed []string
		wantErr     bool
	}{{
		name:     "empty",
		raw:      "",
		wantOpts: 0,
		wantExcs: 0,
	}, {
		name:     "simple",
		raw:      "script,third-party",
		wantOpts: Script | ThirdParty,
	}, {
		name:     "negated",
		raw:      "~script,~third-party",
		wantExcs: Script | ThirdParty,
	}, {
		name:    "unknown",
		raw:     "script,bogus",
		wantErr: true,
	}, {
		name:        "domain list",
		raw:         "script,domain=example.com|~sub.example.com",
		wantOpts:    Script,
		wantBlocked: []string{"example.com"},
		wantAllowed: []string{"sub.example.com"},
	}, {
		name:     "websocket negated dropped",
		raw:      "~websocket",
		wantExcs: 0,
	}, {
		name:        "elemhide on block rule ignored",
		raw:         "elemhide",
		isException: false,
		wantOpts:    0,
	}, {
		name:        "elemhide on exception rule kept",
		raw:         "elemhide",
		isException: true,
		wantOpts:    ElementHide,
	}, {
		name:        "negated elemhide on exception rule dropped",
		raw:         "~elemhide",
		isException: true,
		wantOpts:    0,
		wantExcs:    0,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts, excs, blocked, allowed, err := ParseOptions(tc.raw, tc.isException)
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantOpts, opts)
			assert.Equal(t, tc.wantExcs, excs)
			assert.Equal(t, tc.wantBlocked, blocked)
			assert.Equal(t, tc.wantAllowed, allowed)
		})
	}
}

func TestIsDomainOrSubdomainOfAny(t *testing.T) {
	domains := []string{"example.com", "other.*"}

	assert.True(t, IsDomainOrSubdomainOfAny("example.com", domains))
	assert.True(t, IsDomainOrSubdomainOfAny("www.example.com", domains))
	assert.True(t, IsDomainOrSubdomainOfAny("other.co.uk", domains))
	assert.False(t, IsDomainOrSubdomainOfAny("evil.com", domains))
}

func TestExtractHostname(t *testing.T) {
	testCases := []struct {
		url  string
		want string
	}{
		{"https://example.com/path", "example.com"},
		{"http://example.com:8080/path", "example.com"},
		{"//example.com/path", "example.com"},
		{"example.com", ""},
		{"", ""},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, ExtractHostname(tc.url), tc.url)
	}
}

func TestSubdomainList(t *testing.T) {
	assert.Equal(t, []string{
		"www.example.com",
		"example.com",
		"com",
	}, SubdomainList("www.example.com"))

	assert.Nil(t, SubdomainList(""))
}

func TestRule_HasOptionHasException(t *testing.T) {
	r := &Rule{
		Options:    Script,
		Exceptions: ThirdParty,
	}

	assert.True(t, r.HasOption(Script))
	assert.False(t, r.HasOption(ThirdParty))
	assert.True(t, r.HasException(ThirdParty))
	assert.False(t, r.HasException(Script))
}
