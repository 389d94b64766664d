package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath       = "/etc/dsplug/host.yaml"
	DefaultSampleRate = 44100
	DefaultBlockSize  = 512
	DefaultScanTTL    = 168
)

// DefaultLoaders is the loader order used when the configuration names none.
var DefaultLoaders = []string{"native", "remote", "static"}

// KnownLoaders are the loader backends the host can build by name.
var KnownLoaders = []string{"native", "remote", "static"}

type HostConf struct {
	PluginDirs []string      `yaml:"plugin_dirs"`
	Loaders    []string      `yaml:"loaders"`
	SampleRate float64       `yaml:"sample_rate"`
	BlockSize  int           `yaml:"block_size"`
	ScanCache  ScanCacheConf `yaml:"scan_cache"`
	Http       HTTPConf      `yaml:"http"`
	LogLevel   string        `yaml:"log_level"`
	slogLevel  slog.Level
}

type ScanCacheConf struct {
	// Dir holds the badger files; empty keeps the cache in memory.
	Dir string `yaml:"dir"`
	// TTL in hours. Zero selects the default, negative values keep entries
	// forever.
	TTL int64 `yaml:"ttl"`
}

type HTTPConf struct {
	ListenPort    int    `yaml:"listen_port"`
	ListenAddress string `yaml:"listen_address"`
}

func (hc *HostConf) setLogLevel() {
	switch strings.ToUpper(hc.LogLevel) {
	case "DEBUG":
		hc.slogLevel = slog.LevelDebug
	case "INFO":
		hc.slogLevel = slog.LevelInfo
	case "WARN":
		hc.slogLevel = slog.LevelWarn
	case "ERROR":
		hc.slogLevel = slog.LevelError
	default:
		hc.slogLevel = slog.LevelInfo
	}
}

func (hc *HostConf) GetLogLevel() slog.Level {
	return hc.slogLevel
}

// Default returns the configuration used when no file exists.
func Default() HostConf {
	conf := HostConf{}
	conf.applyDefaults()
	return conf
}

// ParseHostConfig reads the YAML file at path. A missing file yields the
// defaults; an unreadable or malformed one is an error.
func ParseHostConfig(path string) (HostConf, error) {
	file, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return HostConf{}, fmt.Errorf("cannot read host config %s: %w", path, err)
	}

	conf := HostConf{}
	if err := yaml.Unmarshal(file, &conf); err != nil {
		return HostConf{}, fmt.Errorf("cannot parse host config %s: %w", path, err)
	}
	conf.applyDefaults()
	return conf, nil
}

func (hc *HostConf) applyDefaults() {
	hc.setLoaders()
	hc.setSampleRate()
	hc.setBlockSize()
	hc.setScanCacheTTL()
	hc.setLogLevel()
}

// setLoaders drops unknown and repeated names, keeping the configured order.
func (hc *HostConf) setLoaders() {
	var loaders []string
	for _, name := range hc.Loaders {
		name = strings.ToLower(strings.TrimSpace(name))
		if !slices.Contains(KnownLoaders, name) || slices.Contains(loaders, name) {
			continue
		}
		loaders = append(loaders, name)
	}
	if len(loaders) == 0 {
		loaders = append(loaders, DefaultLoaders...)
	}
	hc.Loaders = loaders
}

func (hc *HostConf) setSampleRate() {
	if hc.SampleRate <= 0 {
		hc.SampleRate = DefaultSampleRate
	}
}

func (hc *HostConf) setBlockSize() {
	if hc.BlockSize <= 0 {
		hc.BlockSize = DefaultBlockSize
	}
}

func (hc *HostConf) setScanCacheTTL() {
	switch {
	case hc.ScanCache.TTL == 0:
		hc.ScanCache.TTL = DefaultScanTTL
	case hc.ScanCache.TTL < 0:
		hc.ScanCache.TTL = 0
	}
}
