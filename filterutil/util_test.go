package filterutil_test

import (
	"testing"

	"github.com/adguard-community/cfblock/filterutil"
	"github.com/stretchr/testify/assert"
)

func TestIsDomainName(t *testing.T) {
	assert.True(t, filterutil.IsDomainName("1.cc"))
	assert.True(t, filterutil.IsDomainName("1.2.cc"))
	assert.True(t, filterutil.IsDomainName("a.b.cc"))
	assert.True(t, filterutil.IsDomainName("abc.abc.abc"))
	assert.True(t, filterutil.IsDomainName("a-bc.ab--c.abc"))
	assert.True(t, filterutil.IsDomainName("abc.xn--p1ai"))
	assert.True(t, filterutil.IsDomainName("xn--p1ai.xn--p1ai"))
	assert.True(t, filterutil.IsDomainName("cc"))
	assert.True(t, filterutil.IsDomainName("xn--p1ai"))

	assert.False(t, filterutil.IsDomainName("#cc"))
	assert.False(t, filterutil.IsDomainName("a.cc#"))
	assert.False(t, filterutil.IsDomainName("abc.xn--"))
	assert.False(t, filterutil.IsDomainName("abc.xn--asd"))

	assert.False(t, filterutil.IsDomainName(".a.cc"))
	assert.False(t, filterutil.IsDomainName("a.cc."))

	assert.False(t, filterutil.IsDomainName("-a.cc"))
	assert.False(t, filterutil.IsDomainName("a-.cc"))

	assert.False(t, filterutil.IsDomainName("a.1cc"))
	assert.False(t, filterutil.IsDomainName("a.cc1"))
	assert.False(t, filterutil.IsDomainName("a.c"))

	const longLabel = "123456789012345678901234567890123456789012345678901234567890123"
	assert.True(t, filterutil.IsDomainName(longLabel+".cc"))
	assert.False(t, filterutil.IsDomainName(longLabel+"4.cc"))
}
