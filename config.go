package main

import (
	"os"

	"github.com/magiconair/properties"
	"github.com/sirupsen/logrus"
)

// Well-known locations and defaults. Every properties key is optional.
const (
	propFile = "./Cogru.properties"
	dotCogru = "./.cogru"

	defaultHost       = "127.0.0.1"
	defaultPort       = 8786
	defaultAPIPort    = 8787
	defaultBufferSize = 8192
	defaultUseLF      = false
	defaultLogLevel   = "info"
)

// Config is the read-only server configuration loaded from the properties
// file at startup.
type Config struct {
	Host       string // bind address; peers from this IP get admin
	Port       int
	APIPort    int // HTTP status API port; 0 disables
	BufferSize int // per-connection read buffer in bytes
	UseLF      bool
	LogLevel   string
}

// loadConfig reads the properties file at path. A missing file yields the
// defaults; a malformed one is logged and likewise falls back.
func loadConfig(path string) *Config {
	cfg := &Config{
		Host:       defaultHost,
		Port:       defaultPort,
		APIPort:    defaultAPIPort,
		BufferSize: defaultBufferSize,
		UseLF:      defaultUseLF,
		LogLevel:   defaultLogLevel,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg
	}

	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		logrus.Warnf("[config] %s: %v; using defaults", path, err)
		return cfg
	}

	cfg.Host = p.GetString("cogru.Host", cfg.Host)
	cfg.Port = p.GetInt("cogru.Port", cfg.Port)
	cfg.APIPort = p.GetInt("cogru.ApiPort", cfg.APIPort)
	cfg.BufferSize = p.GetInt("cogru.BufferSize", cfg.BufferSize)
	cfg.UseLF = p.GetString("cogru.UseLF", "false") == "true"
	cfg.LogLevel = p.GetString("cogru.LogLevel", cfg.LogLevel)
	return cfg
}
