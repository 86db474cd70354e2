package profile

import (
	"path/filepath"
	"testing"

	"github.com/adguard-community/cfblock/filterlist"
	"github.com/adguard-community/cfblock/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoadedProfile(t *testing.T, dir, name, contents string) *Profile {
	t.Helper()
	path := writeFile(t, dir, name+".txt", contents)
	p := New(name, path, nil, 0, OtherCategory, 0)
	require.True(t, p.LoadRules(filterlist.AllFilters, true))
	return p
}

func TestRegistry_AddDuplicateNameRejected(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()

	p1 := newLoadedProfile(t, dir, "ads", "[Adblock Plus 2.0]\n||ads.example.com^\n")
	p2 := New("ads", filepath.Join(dir, "other.txt"), nil, 0, OtherCategory, 0)

	require.NoError(t, reg.Add(p1))
	assert.Error(t, reg.Add(p2))
}

func TestRegistry_CheckURL_BlockAcrossProfiles(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()

	require.NoError(t, reg.Add(newLoadedProfile(t, dir, "ads", "[Adblock Plus 2.0]\n||ads.example.com^\n")))
	require.NoError(t, reg.Add(newLoadedProfile(t, dir, "privacy", "[Adblock Plus 2.0]\n||tracker.example.com^\n")))

	result := reg.CheckURL("", "http://ads.example.com/x", rule.TypeOther)
	assert.True(t, result.IsBlocked)

	result = reg.CheckURL("", "http://harmless.example.com/x", rule.TypeOther)
	assert.False(t, result.IsBlocked)
}

func TestRegistry_CheckURL_ExceptionInOneProfileWinsOverBlockInAnother(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()

	require.NoError(t, reg.Add(newLoadedProfile(t, dir, "ads", "[Adblock Plus 2.0]\n||example.com^\n")))
	require.NoError(t, reg.Add(newLoadedProfile(t, dir, "allow", "[Adblock Plus 2.0]\n@@||example.com^\n")))

	result := reg.CheckURL("", "http://example.com/x", rule.TypeOther)
	assert.False(t, result.IsBlocked)
	assert.True(t, result.IsException)
}

func TestRegistry_GetCosmeticFilters_UnionsAcrossProfiles(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()

	require.NoError(t, reg.Add(newLoadedProfile(t, dir, "ads", "[Adblock Plus 2.0]\n##.ad-banner\n")))
	require.NoError(t, reg.Add(newLoadedProfile(t, dir, "social", "[Adblock Plus 2.0]\n##.share-widget\n")))

	filters := reg.GetCosmeticFilters(nil, false)
	assert.ElementsMatch(t, []string{".ad-banner", ".share-widget"}, filters.Rules)
}

func TestRegistry_RemoveStopsMatching(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()

	p := newLoadedProfile(t, dir, "ads", "[Adblock Plus 2.0]\n||ads.example.com^\n")
	require.NoError(t, reg.Add(p))

	reg.Remove("ads")

	assert.Nil(t, reg.Get("ads"))
	result := reg.CheckURL("", "http://ads.example.com/x", rule.TypeOther)
	assert.False(t, result.IsBlocked)
}
