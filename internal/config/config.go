// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package config parses the bridge's recognized environment options
// (§6): the listen port, the reverse-proxy trust policy, TLS material,
// and the optional GitHub OAuth exchange credentials. TLS certificate
// and key files are watched with fsnotify so a rotated certificate is
// picked up without a process restart.
//
// Thread Safety:
//
//	Config is a plain value, safe to share read-only after Load. Watcher
//	is safe for concurrent use; its callback fires on its own goroutine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// TrustProxy is BRIDGE's TRUST_PROXY policy: none, trust every proxy
// header blindly, trust up to N hops, or trust only the named
// subnet/host list — mirroring the "`true|false|integer|string`" shape
// named in §6.
type TrustProxy struct {
	All   bool
	Hops  int
	Rules []string
}

// ParseTrustProxy interprets the TRUST_PROXY environment value.
func ParseTrustProxy(raw string) TrustProxy {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "false":
		return TrustProxy{}
	case "true":
		return TrustProxy{All: true}
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return TrustProxy{Hops: n}
	}
	return TrustProxy{Rules: strings.Split(raw, ",")}
}

// TLS bundles the MCP_SSL_* material.
type TLS struct {
	Enabled    bool
	KeyPath    string
	CertPath   string
	CAPath     string
	Passphrase string
}

// OAuth bundles the optional GitHub OAuth exchange credentials.
type OAuth struct {
	ClientID     string
	ClientSecret string
}

// Config is the bridge's resolved environment configuration.
type Config struct {
	Port       int
	TrustProxy TrustProxy
	TLS        TLS
	OAuth      OAuth
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// Load reads the recognized environment options, defaulting BRIDGE_PORT
// to 3001 per §6.
func Load() (Config, error) {
	port, err := strconv.Atoi(getenv("BRIDGE_PORT", "3001"))
	if err != nil {
		return Config{}, fmt.Errorf("parsing BRIDGE_PORT: %w", err)
	}

	cfg := Config{
		Port:       port,
		TrustProxy: ParseTrustProxy(os.Getenv("TRUST_PROXY")),
		TLS: TLS{
			Enabled:    strings.EqualFold(getenv("MCP_USE_HTTPS", "false"), "true"),
			KeyPath:    os.Getenv("MCP_SSL_KEY_PATH"),
			CertPath:   os.Getenv("MCP_SSL_CERT_PATH"),
			CAPath:     os.Getenv("MCP_SSL_CA_PATH"),
			Passphrase: os.Getenv("MCP_SSL_PASSPHRASE"),
		},
		OAuth: OAuth{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		},
	}
	if cfg.TLS.Enabled && (cfg.TLS.KeyPath == "" || cfg.TLS.CertPath == "") {
		return Config{}, fmt.Errorf("MCP_USE_HTTPS=true requires MCP_SSL_KEY_PATH and MCP_SSL_CERT_PATH")
	}
	return cfg, nil
}

// LoadYAML reads additional non-secret defaults (e.g. scheduler cadence,
// layout panel constraints) from a YAML file, overlaying them onto a
// zero-value map the caller decodes into its own typed struct. Absent
// file is not an error — env vars and code defaults already cover the
// required configuration.
func LoadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Watcher watches the TLS key/cert/CA paths for changes and invokes
// onReload whenever any of them is written or renamed into place (the
// pattern used by most ACME/cert-manager rotation tools).
type Watcher struct {
	fsw *fsnotify.Watcher
}

// WatchTLS starts watching tls's configured paths. Returns nil if TLS is
// disabled or no paths are configured — there is nothing to watch.
func WatchTLS(tls TLS, onReload func()) (*Watcher, error) {
	if !tls.Enabled {
		return nil, nil
	}
	if tls.KeyPath == "" && tls.CertPath == "" && tls.CAPath == "" {
		return nil, nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating TLS file watcher: %w", err)
	}
	for _, p := range []string{tls.KeyPath, tls.CertPath, tls.CAPath} {
		if p == "" {
			continue
		}
		if err := fsw.Add(p); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", p, err)
		}
	}

	go func() {
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					onReload()
				}
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return &Watcher{fsw: fsw}, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	return w.fsw.Close()
}
