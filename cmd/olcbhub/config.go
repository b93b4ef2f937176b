package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/openlcb-go/openlcb/hub"
	"github.com/openlcb-go/openlcb/olcb"
)

type fileConfig struct {
	Listen            string  `toml:"listen"`
	LogLevel          string  `toml:"log_level"`
	PortQueue         int     `toml:"port_queue"`
	RateLimit         float64 `toml:"rate_limit"`
	RateBurst         int     `toml:"rate_burst"`
	NodeAlias         int     `toml:"node_alias"`
	ReassemblyTimeout string  `toml:"reassembly_timeout"`
}

type serveConfig struct {
	Listen    string
	LogLevel  string
	NodeAlias olcb.Alias
	Hub       hub.Config
	Iface     olcb.Config
}

func defaultServeConfig() serveConfig {
	return serveConfig{
		Listen:    ":12021",
		LogLevel:  "info",
		NodeAlias: 0,
		Hub:       hub.DefaultConfig(),
		Iface:     olcb.DefaultConfig(),
	}
}

func loadServeConfig(path string) (serveConfig, error) {
	cfg := defaultServeConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serveConfig{}, fmt.Errorf("load hub config: %w", err)
	}

	if meta.IsDefined("listen") {
		if v := strings.TrimSpace(raw.Listen); v != "" {
			cfg.Listen = v
		}
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("port_queue") {
		cfg.Hub.PortQueue = raw.PortQueue
	}
	if meta.IsDefined("rate_limit") {
		cfg.Hub.RateLimit = raw.RateLimit
	}
	if meta.IsDefined("rate_burst") {
		cfg.Hub.RateBurst = raw.RateBurst
	}
	if meta.IsDefined("node_alias") {
		if raw.NodeAlias < 0 || raw.NodeAlias > int(olcb.MaxAlias) {
			return serveConfig{}, fmt.Errorf("node_alias out of range: %d", raw.NodeAlias)
		}
		cfg.NodeAlias = olcb.Alias(raw.NodeAlias)
	}
	if meta.IsDefined("reassembly_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReassemblyTimeout))
		if err != nil {
			return serveConfig{}, fmt.Errorf("parse reassembly_timeout: %w", err)
		}
		cfg.Iface.ReassemblyTimeout = d
	}

	if err := cfg.Hub.Validate(); err != nil {
		return serveConfig{}, err
	}
	if err := cfg.Iface.Validate(); err != nil {
		return serveConfig{}, err
	}
	return cfg, nil
}
