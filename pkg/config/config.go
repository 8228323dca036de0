// Package config layers defaults, an optional incbuild.toml in the project
// folder, INCBUILD_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ritzau/incbuild/pkg/build"
)

// FileName is the optional configuration file in the project folder
const FileName = "incbuild.toml"

// EnvPrefix prefixes environment overrides, e.g. INCBUILD_OUTPUT_DIR=build
const EnvPrefix = "INCBUILD_"

// Config holds all configuration for the application
type Config struct {
	Project      string   `koanf:"project"`
	SourceDir    string   `koanf:"source_dir"`
	OutputDir    string   `koanf:"output_dir"`
	StateFile    string   `koanf:"state_file"`
	Manifest     string   `koanf:"manifest"`
	PackageStore string   `koanf:"package_store"`
	Compiler     string   `koanf:"compiler"`
	Extension    string   `koanf:"extension"`
	Lint         []string `koanf:"lint"`

	Verbosity  string `koanf:"verbosity"`
	VerboseCnt int    `koanf:"verbose"`
	JSONLogs   bool   `koanf:"json_logs"`

	Port    int  `koanf:"port"`
	Serve   bool `koanf:"serve"`
	Quiet   int  `koanf:"quiet"`    // debounce quiet period, ms
	MaxWait int  `koanf:"max_wait"` // debounce max wait, ms
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"project":       ".",
		"source_dir":    "src",
		"output_dir":    "out",
		"state_file":    ".incbuild/state.json",
		"manifest":      "project.json",
		"package_store": "~/.incbuild/packages",
		"compiler":      "javac",
		"extension":     ".java",
		"lint":          []string{"-Xlint:all"},
		"verbosity":     "",
		"verbose":       0,
		"json_logs":     false,
		"port":          8080,
		"serve":         false,
		"quiet":         300,
		"max_wait":      2000,
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file in the project folder, if present
	path := filepath.Join(projectDir(f), FileName)
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	// 3. Environment variables; INCBUILD_LINT is a space separated list
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if key == "lint" {
			return key, strings.Fields(value)
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags; "--source-dir" sets "source_dir". Lint flags may contain
	// commas ("-Xlint:all,-serial") so --lint is a string array.
	if f != nil {
		if err := k.Load(posflag.ProviderWithFlag(f, ".", k, func(flag *pflag.Flag) (string, interface{}) {
			key := strings.ReplaceAll(flag.Name, "-", "_")
			if flag.Value.Type() == "stringArray" {
				v, _ := f.GetStringArray(flag.Name)
				return key, v
			}
			return key, posflag.FlagVal(f, flag)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	store, err := expandHome(cfg.PackageStore)
	if err != nil {
		return nil, err
	}
	cfg.PackageStore = store

	return &cfg, nil
}

// projectDir finds the project folder before the file layer is loaded
func projectDir(f *pflag.FlagSet) string {
	if f != nil {
		if flag := f.Lookup("project"); flag != nil && flag.Changed {
			return flag.Value.String()
		}
	}
	if dir := os.Getenv(EnvPrefix + "PROJECT"); dir != "" {
		return dir
	}
	return "."
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// QuietPeriod is the debounce quiet period
func (c *Config) QuietPeriod() time.Duration {
	return time.Duration(c.Quiet) * time.Millisecond
}

// MaxWaitPeriod is the longest a change waits for a rebuild
func (c *Config) MaxWaitPeriod() time.Duration {
	return time.Duration(c.MaxWait) * time.Millisecond
}

// BuildOptions maps the configuration onto builder options
func (c *Config) BuildOptions() (build.Options, error) {
	root, err := filepath.Abs(c.Project)
	if err != nil {
		return build.Options{}, fmt.Errorf("resolving project folder: %w", err)
	}
	return build.Options{
		Root:         root,
		SourceDir:    c.SourceDir,
		OutputDir:    c.OutputDir,
		StateFile:    c.StateFile,
		ManifestPath: c.Manifest,
		PackageStore: c.PackageStore,
		Extension:    c.Extension,
		Lint:         c.Lint,
	}, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
