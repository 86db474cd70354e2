// Command cfblockproxy is a demonstration MITM proxy exercising the
// whole filtering stack end to end: it loads every configured filter
// list into a profile.Registry and consults it for each intercepted
// request.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/gomitmproxy"
	"github.com/AdguardTeam/gomitmproxy/mitm"
	"github.com/adguard-community/cfblock/config"
	"github.com/adguard-community/cfblock/filterlist"
	"github.com/adguard-community/cfblock/filterutil"
	"github.com/adguard-community/cfblock/profile"
	"github.com/adguard-community/cfblock/proxy"
	"github.com/adguard-community/cfblock/updater"
	goFlags "github.com/jessevdk/go-flags"
	"github.com/shirou/gopsutil/v3/process"
)

// slogLevel controls the level of the default [slog] logger. It exists
// because this module targets a Go toolchain older than the one that
// introduced slog.SetLogLoggerLevel.
var slogLevel = new(slog.LevelVar)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel,
	})))
}

func main() {
	opts, err := config.Parse(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*goFlags.Error); ok && flagsErr.Type == goFlags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	run(opts)
}

func run(opts *config.Options) {
	if opts.Verbose {
		log.SetLevel(log.DEBUG)
		slogLevel.Set(slog.LevelDebug)
	}

	if opts.LogOutput != "" {
		//nolint:gosec // path comes from an operator-supplied CLI flag.
		file, err := os.OpenFile(opts.LogOutput, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("cannot create a log file: %s", err)
		}
		defer file.Close()
		log.SetOutput(file)
	}

	log.Info("starting cfblockproxy")

	registry := buildRegistry(opts)
	stopStats := logResourceUsagePeriodically(30 * time.Second)
	defer stopStats()

	serverConfig := createServerConfig(opts, registry)
	server, err := proxy.NewServer(serverConfig)
	if err != nil {
		log.Fatalf("failed to create new proxy server: %v", err)
	}

	if err := server.Start(); err != nil {
		log.Fatalf("failed to start the proxy server: %v", err)
	}

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)
	<-signalChannel

	server.Close()
}

// buildRegistry loads every configured filter list into a
// profile.Registry. A -f value of the form "url@path" is fetched via
// updater.Update into path first if path doesn't exist yet or is still
// empty after the header scan; a bare path is loaded as-is with no
// update source.
func buildRegistry(opts *config.Options) *profile.Registry {
	registry := profile.NewRegistry()
	cosmeticMode := resolveCosmeticMode(opts.ResolvedCosmeticMode())
	fetcher := updater.NewHTTPFetcher()
	fetcher.Client.Timeout = opts.HTTPTimeout()

	for _, entry := range opts.FilterLists {
		url, path, hasURL := strings.Cut(entry, "@")
		if !hasURL {
			path = url
			url = ""
		}
		path = profilePath(opts, path)

		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		p := profile.New(name, path, nil, opts.DefaultUpdateInterval, profile.OtherCategory, 0)
		if url != "" {
			p.SetUpdateURL(url)
		}

		if p.IsEmpty() && url != "" {
			log.Info("cfblockproxy: fetching %q from %s", name, url)
			if !p.Update(context.Background(), fetcher, "") {
				log.Error("cfblockproxy: failed to fetch %q: %s", name, p.Err())
			}
		}

		if err := registry.Add(p); err != nil {
			log.Error("cfblockproxy: %s", err)
			continue
		}

		p.LoadRules(cosmeticMode, opts.WildcardsEnabled)

		log.Info("cfblockproxy: loaded profile %q (%s)", name, path)
	}

	return registry
}

// profilePath resolves a -f entry's path: a bare file name is placed
// under "<DataDir>/contentBlocking/", while an explicit relative or
// absolute path is used as-is.
func profilePath(opts *config.Options, path string) string {
	if filepath.IsAbs(path) || strings.ContainsRune(path, os.PathSeparator) {
		return path
	}

	return filepath.Join(opts.DataDir, "contentBlocking", path)
}

func resolveCosmeticMode(m config.CosmeticMode) filterlist.CosmeticMode {
	switch m {
	case config.DomainFilters:
		return filterlist.DomainFilters
	case config.NoFilters:
		return filterlist.NoFilters
	default:
		return filterlist.AllFilters
	}
}

func createServerConfig(opts *config.Options, registry *profile.Registry) proxy.Config {
	listenIP := filterutil.ParseIP(opts.ListenAddr)
	if listenIP == nil {
		log.Fatalf("cannot parse listen address %q", opts.ListenAddr)
	}

	mitmConfig := createMITMConfig(opts)

	var tlsConfig *tls.Config
	if opts.HTTPSProxy {
		if opts.HTTPSHostname == "" {
			log.Fatalf("HTTPS hostname must be specified")
		}

		proxyCert, err := mitmConfig.GetOrCreateCert(opts.HTTPSHostname)
		if err != nil {
			log.Fatalf("failed to generate HTTPS proxy certificate for %s: %v", opts.HTTPSHostname, err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{*proxyCert},
			ServerName:   opts.HTTPSHostname,
		}
	}

	addr := &net.TCPAddr{IP: listenIP, Port: opts.ListenPort}

	return proxy.Config{
		Registry: registry,
		ProxyConfig: gomitmproxy.Config{
			ListenAddr: addr,
			TLSConfig:  tlsConfig,

			Username: opts.ProxyUser,
			Password: opts.ProxyPassword,
			APIHost:  "cfblockproxy",

			MITMConfig:     mitmConfig,
			MITMExceptions: []string{},
		},
	}
}

func createMITMConfig(opts *config.Options) *mitm.Config {
	tlsCert, err := tls.LoadX509KeyPair(opts.TLSCertPath, opts.TLSKeyPath)
	if err != nil {
		log.Fatalf("failed to load root CA: %v", err)
	}
	privateKey, ok := tlsCert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		log.Fatalf("root CA private key must be RSA")
	}

	x509c, err := x509.ParseCertificate(tlsCert.Certificate[0])
	if err != nil {
		log.Fatalf("invalid certificate: %v", err)
	}

	mitmConfig, err := mitm.NewConfig(x509c, privateKey, nil)
	if err != nil {
		log.Fatalf("failed to create MITM config: %v", err)
	}

	mitmConfig.SetValidity(7 * 24 * time.Hour)
	mitmConfig.SetOrganization("cfblockproxy")

	return mitmConfig
}

// logResourceUsagePeriodically logs the process's resident memory every
// interval, so an operator can watch the footprint of large filter
// lists. The returned func stops the background goroutine.
func logResourceUsagePeriodically(interval time.Duration) (stop func()) {
	done := make(chan struct{})

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		slog.Warn("cfblockproxy: resource usage logging disabled", "err", err)
		return func() {}
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				mem, err := proc.MemoryInfo()
				if err != nil {
					continue
				}
				slog.Debug("cfblockproxy: resource usage", "rss_bytes", mem.RSS, "vms_bytes", mem.VMS)
			}
		}
	}()

	return func() { close(done) }
}
