// Package config defines the process-wide settings shared by every
// profile a host loads.
package config

import (
	"time"

	goFlags "github.com/jessevdk/go-flags"
)

// CosmeticMode mirrors filterlist.CosmeticMode without importing it, so
// config stays a leaf package.
type CosmeticMode string

// CosmeticMode flag values.
const (
	AllFilters    CosmeticMode = "all"
	DomainFilters CosmeticMode = "domain"
	NoFilters     CosmeticMode = "none"
)

// Options is the flag-parsed process configuration.
type Options struct {
	// Verbose enables debug-level logging.
	Verbose bool `short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`

	// LogOutput is the path to the log file. Empty writes to stderr.
	LogOutput string `short:"o" long:"output" description:"Path to the log file. If not set, it writes to stderr." default:""`

	// ListenAddr is the proxy's listen address.
	ListenAddr string `short:"l" long:"listen" description:"Listen address." default:"0.0.0.0"`

	// ListenPort is the proxy's listen port.
	ListenPort int `short:"p" long:"port" description:"Listen port." default:"8080"`

	// TLSCertPath is the root CA certificate used for MITM interception.
	TLSCertPath string `short:"c" long:"ca-cert" description:"Path to a file with the root certificate." required:"true"`

	// TLSKeyPath is the CA's private key.
	TLSKeyPath string `short:"k" long:"ca-key" description:"Path to a file with the CA private key." required:"true"`

	// FilterLists are the filter list files to load into the registry, one
	// profile per entry, named by base file name. An entry may be written
	// "url@path" to fetch the list from url into path on first run (or
	// whenever path is still empty), instead of a bare local path.
	FilterLists []string `short:"f" long:"filter" description:"Path to a filter list file, or \"url@path\" to fetch it first. Can be specified multiple times."`

	// ProxyUser, if set, requires proxy authorization.
	ProxyUser string `short:"u" long:"username" description:"Proxy auth username. If specified, proxy authorization is required."`

	// ProxyPassword is the proxy auth password.
	ProxyPassword string `short:"a" long:"password" description:"Proxy auth password. If specified, proxy authorization is required."`

	// HTTPSProxy, if set, runs an HTTPS proxy instead of plain HTTP.
	HTTPSProxy bool `short:"t" long:"https" description:"Run an HTTPS proxy (otherwise, it runs a plain HTTP proxy)." optional:"yes" optional-value:"true"`

	// HTTPSHostname is the server name presented by the HTTPS proxy.
	HTTPSHostname string `short:"n" long:"https-name" description:"Server name or IP address of the HTTPS proxy."`

	// DataDir is the base directory profile files live under
	// ("<DataDir>/contentBlocking/<name>.txt").
	DataDir string `short:"d" long:"data-dir" env:"CFBLOCK_DATA_DIR" description:"Base directory for profile files." default:"."`

	// WildcardsEnabled accepts rules with a residual '*' in the body;
	// when off, such rules are discarded at parse time.
	WildcardsEnabled bool `long:"wildcards" env:"CFBLOCK_WILDCARDS" description:"Accept a residual '*' in network rule bodies." optional:"yes" optional-value:"true"`

	// CosmeticMode is one of "all", "domain", "none".
	CosmeticMode string `long:"cosmetic-mode" env:"CFBLOCK_COSMETIC_MODE" description:"Cosmetic filtering mode: all, domain, or none." default:"all" choice:"all" choice:"domain" choice:"none"`

	// DefaultUpdateInterval is the number of days between automatic
	// filter list refreshes when a profile doesn't override it. Zero
	// disables auto-update.
	DefaultUpdateInterval int `long:"update-interval" env:"CFBLOCK_UPDATE_INTERVAL" description:"Days between automatic filter list updates. Zero disables auto-update." default:"1"`

	// HTTPTimeoutSeconds bounds updater.HTTPFetcher's requests.
	HTTPTimeoutSeconds int `long:"http-timeout" env:"CFBLOCK_HTTP_TIMEOUT" description:"Timeout, in seconds, for filter list downloads." default:"60"`
}

// Parse parses args (via go-flags' Default group, which also handles
// -h/--help) into an Options.
func Parse(args []string) (*Options, error) {
	var opts Options
	parser := goFlags.NewParser(&opts, goFlags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	return &opts, nil
}

// ResolvedCosmeticMode parses the CosmeticMode string flag, defaulting to
// AllFilters for an empty or unrecognized value.
func (o *Options) ResolvedCosmeticMode() CosmeticMode {
	switch CosmeticMode(o.CosmeticMode) {
	case DomainFilters:
		return DomainFilters
	case NoFilters:
		return NoFilters
	default:
		return AllFilters
	}
}

// HTTPTimeout returns the configured download timeout as a Duration.
func (o *Options) HTTPTimeout() time.Duration {
	if o.HTTPTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(o.HTTPTimeoutSeconds) * time.Second
}
