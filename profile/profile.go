// Package profile implements the lifecycle of one Adblock filter list
// backed by a single file, combining a lazily-built pattern trie with a
// cosmetic selector table and an optional auto-update schedule.
package profile

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/adguard-community/cfblock/cosmetic"
	"github.com/adguard-community/cfblock/filterlist"
	"github.com/adguard-community/cfblock/matcher"
	"github.com/adguard-community/cfblock/rule"
	"github.com/adguard-community/cfblock/trie"
	"github.com/adguard-community/cfblock/updater"
)

// Error classifies a failure surfaced to the host.
type Error int

// Error values.
const (
	NoError Error = iota
	ReadError
	DownloadError
	ChecksumError
	ParseError
)

// String implements fmt.Stringer for diagnostics.
func (e Error) String() string {
	switch e {
	case NoError:
		return "no error"
	case ReadError:
		return "read error"
	case DownloadError:
		return "download error"
	case ChecksumError:
		return "checksum error"
	case ParseError:
		return "parse error"
	default:
		return "unknown error"
	}
}

// Flags is a bit-set of profile metadata overrides.
type Flags int

// Flags values.
const (
	HasCustomTitle Flags = 1 << iota
	HasCustomUpdateURL
)

// Category classifies the source of a profile.
type Category int

// Category values.
const (
	OtherCategory Category = iota
	AdvertisementsCategory
	AnnoyanceCategory
	PrivacyCategory
	SocialCategory
	RegionalCategory
)

// ErrHeaderMissing is raised when the first line doesn't contain
// "[Adblock" (any case).
const ErrHeaderMissing errors.Error = "content filter profile: missing [Adblock header"

// Profile is one filter list, owned by the host goroutine that
// constructed it. CheckURL and GetCosmeticFilters are safe to call
// concurrently from other goroutines once LoadRules has completed; every
// mutator must only be called from the owning goroutine.
type Profile struct {
	// Name identifies the profile and its backing file
	// ("<dataDir>/contentBlocking/<name>.txt").
	Name string

	// Path is the backing file's full path.
	Path string

	mu sync.Mutex // guards everything below except root/cosmetic

	title          string
	updateURL      string
	lastUpdate     time.Time
	languages      []string
	updateInterval int // days; 0 disables auto-update
	category       Category
	flags          Flags
	err            Error
	isEmpty        bool
	wasLoaded      bool
	updating       bool

	// cosmeticMode and wildcards remember the most recent LoadRules
	// arguments, so a lazy reload after Update parses the same way.
	cosmeticMode filterlist.CosmeticMode
	wildcards    bool

	// root is swapped atomically so a concurrent checkUrl never observes
	// a torn trie while clear+loadRules runs.
	root atomic.Pointer[trie.Node]

	cosmeticMu sync.RWMutex
	cosmetic   *cosmetic.Table

	// OnModified is invoked, synchronously and from the owning
	// goroutine, after any mutator changes observable state. Nil is a
	// valid no-op host.
	OnModified func()

	// FilterListID is stamped on every rule parsed from this profile.
	FilterListID int
}

// New constructs a Profile and scans its header inline, so Title and
// IsEmpty are meaningful immediately.
func New(name, path string, languages []string, updateInterval int, category Category, flags Flags) *Profile {
	p := &Profile{
		Name:           name,
		Path:           path,
		languages:      languages,
		updateInterval: updateInterval,
		category:       category,
		flags:          flags,
		cosmetic:       cosmetic.New(),
		cosmeticMode:   filterlist.AllFilters,
		wildcards:      true,
	}

	if len(languages) == 0 {
		p.languages = []string{"any"}
	}

	p.loadHeader()

	return p
}

// Create writes a fresh filter file at path, containing the Adblock
// header, a title comment, and any initial rules, then constructs the
// Profile for it. The write is atomic (write-then-rename) so a crash
// never leaves a torn file behind.
func Create(name, path, title string, rules []string) (*Profile, error) {
	var b strings.Builder
	b.WriteString("[Adblock Plus 2.0]\n")
	b.WriteString("! Title: " + title + "\n")
	for _, r := range rules {
		b.WriteString(r)
		b.WriteByte('\n')
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return nil, err
	}

	return New(name, path, nil, 0, OtherCategory, 0), nil
}

// Title returns the display title, or "(Unknown)" when none has been
// set.
func (p *Profile) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.title == "" {
		return "(Unknown)"
	}
	return p.title
}

// LastUpdate returns the last successful update time, zero if never
// updated.
func (p *Profile) LastUpdate() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUpdate
}

// UpdateURL returns the configured update source, empty if none.
func (p *Profile) UpdateURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateURL
}

// Languages returns the locale list the profile targets; a profile
// constructed without languages reports the "any" sentinel.
func (p *Profile) Languages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.languages
}

// IsEmpty reports whether the profile has no usable rules yet.
func (p *Profile) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isEmpty
}

// Err returns the last error classification, NoError if none.
func (p *Profile) Err() Error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// SetTitle updates the title, flags it as custom, and notifies the host.
func (p *Profile) SetTitle(title string) {
	p.mu.Lock()
	changed := title != p.title
	if changed {
		p.title = title
		p.flags |= HasCustomTitle
	}
	p.mu.Unlock()

	if changed {
		p.notify()
	}
}

// SetUpdateURL updates the update URL and flags it as custom.
func (p *Profile) SetUpdateURL(url string) {
	p.mu.Lock()
	changed := url != "" && url != p.updateURL
	if changed {
		p.updateURL = url
		p.flags |= HasCustomUpdateURL
	}
	p.mu.Unlock()

	if changed {
		p.notify()
	}
}

// SetCategory updates the category.
func (p *Profile) SetCategory(c Category) {
	p.mu.Lock()
	changed := c != p.category
	if changed {
		p.category = c
	}
	p.mu.Unlock()

	if changed {
		p.notify()
	}
}

// SetUpdateInterval updates the auto-update interval in days.
func (p *Profile) SetUpdateInterval(days int) {
	p.mu.Lock()
	changed := days != p.updateInterval
	if changed {
		p.updateInterval = days
	}
	p.mu.Unlock()

	if changed {
		p.notify()
	}
}

func (p *Profile) notify() {
	if p.OnModified != nil {
		p.OnModified()
	}
}

func (p *Profile) raiseError(err Error, message string) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()

	slog.Error("content filter profile error", "name", p.Name, slogutil.KeyError, message)

	p.notify()
}

// loadHeader opens Path (if it exists) and scans at most the first 50
// lines, reading "! Title:" (unless HasCustomTitle is set), detecting
// emptiness, and verifying the first line contains "[Adblock"
// case-insensitively.
func (p *Profile) loadHeader() {
	f, err := os.Open(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			p.mu.Lock()
			p.isEmpty = true
			p.mu.Unlock()
			p.maybeScheduleUpdate()
			return
		}

		p.raiseError(ReadError, err.Error())
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 4096), 1<<20)

	lineNum := 0
	sawHeader := false
	sawRule := false
	customTitle := p.flags&HasCustomTitle != 0

	for scanner.Scan() && lineNum < 50 {
		line := strings.TrimSpace(scanner.Text())
		lineNum++

		if lineNum == 1 {
			if !strings.Contains(strings.ToLower(line), "[adblock") {
				p.raiseError(ParseError, string(ErrHeaderMissing))
				return
			}
			sawHeader = true
			continue
		}

		if line == "" {
			continue
		}

		if !customTitle && strings.HasPrefix(line, "! Title:") {
			p.mu.Lock()
			p.title = strings.TrimSpace(line[len("! Title:"):])
			p.mu.Unlock()
			continue
		}

		if strings.HasPrefix(line, "!") {
			continue
		}

		sawRule = true
	}

	if err := scanner.Err(); err != nil {
		p.raiseError(ReadError, err.Error())
		return
	}

	if !sawHeader {
		p.raiseError(ParseError, string(ErrHeaderMissing))
		return
	}

	p.mu.Lock()
	p.isEmpty = !sawRule
	p.mu.Unlock()

	p.maybeScheduleUpdate()
}

func (p *Profile) maybeScheduleUpdate() {
	p.mu.Lock()
	interval := p.updateInterval
	last := p.lastUpdate
	url := p.updateURL
	p.mu.Unlock()

	if interval <= 0 || url == "" {
		return
	}

	if last.IsZero() || time.Since(last) > time.Duration(interval)*24*time.Hour {
		slog.Debug("content filter profile scheduling update", "name", p.Name)
		// The caller (profile.Registry or the host) owns the Fetcher
		// and actually invokes Update; scheduling itself is a
		// notification, not a side effect, since update() is only
		// valid from the owning goroutine.
		p.notify()
	}
}

// LoadRules lazily parses Path and builds the trie and cosmetic table on
// first call. If the header indicated emptiness and an update URL is
// set, it notifies the host to trigger an update and returns false
// ("not yet loaded") instead of opening the (absent or stale) file.
func (p *Profile) LoadRules(cosmeticMode filterlist.CosmeticMode, wildcardsEnabled bool) bool {
	p.mu.Lock()
	p.cosmeticMode = cosmeticMode
	p.wildcards = wildcardsEnabled
	isEmpty := p.isEmpty
	url := p.updateURL
	wasLoaded := p.wasLoaded
	p.mu.Unlock()

	if wasLoaded {
		return true
	}

	if isEmpty && url != "" {
		p.notify()
		return false
	}

	f, err := os.Open(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		p.raiseError(ReadError, err.Error())
		return false
	}
	defer f.Close()

	res, err := filterlist.Parse(f, filterlist.Options{
		FilterListID:     p.FilterListID,
		CosmeticMode:     cosmeticMode,
		WildcardsEnabled: wildcardsEnabled,
	})
	if err != nil {
		p.raiseError(ReadError, err.Error())
		return false
	}

	p.root.Store(res.Root)

	p.cosmeticMu.Lock()
	p.cosmetic = res.Cosmetic
	p.cosmeticMu.Unlock()

	p.mu.Lock()
	p.wasLoaded = true
	p.mu.Unlock()

	return true
}

// Clear releases the trie asynchronously, since deleting a large tree
// must not block the caller, and empties the cosmetic tables
// synchronously (they are cheap maps).
func (p *Profile) Clear() {
	p.mu.Lock()
	wasLoaded := p.wasLoaded
	p.wasLoaded = false
	p.mu.Unlock()

	if !wasLoaded {
		return
	}

	old := p.root.Swap(trie.New())

	go freeTrie(old)

	p.cosmeticMu.Lock()
	p.cosmetic.Clear()
	p.cosmeticMu.Unlock()
}

// freeTrie walks old post-order, dropping every child slice so the
// garbage collector can reclaim the tree incrementally instead of all at
// once.
func freeTrie(node *trie.Node) {
	if node == nil {
		return
	}

	for _, c := range node.Children {
		freeTrie(c)
	}

	node.Children = nil
}

// CheckURL matches one request against the profile's trie, lazily
// loading it first if needed. Safe for concurrent callers once loaded.
func (p *Profile) CheckURL(baseURL, requestURL string, resourceType rule.ResourceType) matcher.CheckResult {
	root := p.root.Load()
	if root == nil {
		p.mu.Lock()
		mode, wild := p.cosmeticMode, p.wildcards
		p.mu.Unlock()

		if !p.LoadRules(mode, wild) {
			return matcher.CheckResult{}
		}
		root = p.root.Load()
		if root == nil {
			return matcher.CheckResult{}
		}
	}

	req := rule.NewRequest(requestURL, baseURL, resourceType)

	return matcher.CheckURL(root, req)
}

// GetCosmeticFilters lazily loads the profile, then returns its cosmetic
// selectors for domains.
func (p *Profile) GetCosmeticFilters(domains []string, isDomainOnly bool) cosmetic.Filters {
	p.mu.Lock()
	wasLoaded := p.wasLoaded
	p.mu.Unlock()

	if !wasLoaded {
		p.mu.Lock()
		mode, wild := p.cosmeticMode, p.wildcards
		p.mu.Unlock()

		p.LoadRules(mode, wild)
	}

	p.cosmeticMu.RLock()
	defer p.cosmeticMu.RUnlock()

	return p.cosmetic.GetCosmeticFilters(domains, isDomainOnly)
}

// GetCosmeticFiltersForHost is the host-oriented form of
// GetCosmeticFilters: it derives the subdomain list itself and also
// honors "example.*" TLD-wildcard domain entries.
func (p *Profile) GetCosmeticFiltersForHost(host string, isDomainOnly bool) cosmetic.Filters {
	p.mu.Lock()
	wasLoaded := p.wasLoaded
	mode, wild := p.cosmeticMode, p.wildcards
	p.mu.Unlock()

	if !wasLoaded {
		p.LoadRules(mode, wild)
	}

	p.cosmeticMu.RLock()
	defer p.cosmeticMu.RUnlock()

	return p.cosmetic.TLDWildcardFilters(host, isDomainOnly)
}

// Update downloads the profile's list from url (or the configured
// update URL when url is empty) via fetcher, replaces the backing file,
// and rescans the header. If the profile had already been loaded, the
// trie and cosmetic tables are rebuilt eagerly. Returns false when
// another update is already running or no URL is known; it must only be
// called from the owning goroutine.
func (p *Profile) Update(ctx context.Context, fetcher updater.Fetcher, url string) bool {
	p.mu.Lock()
	if p.updating {
		p.mu.Unlock()
		return false
	}
	if url == "" {
		url = p.updateURL
	}
	if url == "" {
		p.mu.Unlock()
		return false
	}
	p.updating = true
	wasLoaded := p.wasLoaded
	mode, wild := p.cosmeticMode, p.wildcards
	p.mu.Unlock()

	res, err := updater.Update(ctx, fetcher, url, p.Path)

	p.mu.Lock()
	p.updating = false
	p.mu.Unlock()

	if err != nil {
		switch {
		case errors.Is(err, updater.ErrChecksum):
			p.raiseError(ChecksumError, err.Error())
		case errors.Is(err, updater.ErrParse):
			p.raiseError(ParseError, err.Error())
		case errors.Is(err, updater.ErrDownload):
			p.raiseError(DownloadError, err.Error())
		default:
			p.raiseError(ReadError, err.Error())
		}

		return false
	}

	p.mu.Lock()
	p.lastUpdate = res.LastUpdate
	p.err = NoError
	p.mu.Unlock()

	p.Clear()
	p.loadHeader()

	if wasLoaded {
		p.LoadRules(mode, wild)
	}

	p.notify()

	return true
}

// Remove clears the profile's rules (see Clear). It neither deletes the
// backing file nor cancels an Update in progress, and Registry.Remove
// does neither of these either.
func (p *Profile) Remove() {
	p.Clear()
}
