package intercept

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Environment variables read by LoadConfig.
const (
	// EnvEnabled toggles all instrumentation. Accepts "true"/"1" and
	// "false"/"0"; anything else keeps the default (enabled).
	EnvEnabled = "INTERCEPT_ENABLED"

	// EnvIntegrations names a JSON or YAML file listing integrations.
	// When set, only integrations listed in the file (and not marked
	// disabled) are dispatched.
	EnvIntegrations = "INTERCEPT_INTEGRATIONS"
)

// ErrInvalidIntegrations is returned when an integrations file cannot be
// parsed or has the wrong structure.
var ErrInvalidIntegrations = errors.New("invalid integrations file")

// Config controls which integrations dispatch. Apply it with WithConfig.
type Config struct {
	// Enabled gates all dispatch. When false every shape resolves to
	// the no-op binding.
	Enabled bool

	// Integrations lists per-integration toggles. A nil list enables
	// every registered integration; a non-nil list enables only the
	// integrations it names with Enabled true.
	Integrations []IntegrationConfig
}

// IntegrationConfig is one integration entry from an integrations file.
type IntegrationConfig struct {
	Name    string
	Enabled bool
}

// DefaultConfig returns the configuration used when no environment is
// set: everything enabled.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// LoadConfig builds a Config from the environment. A set but unreadable
// or malformed integrations file disables instrumentation entirely;
// configuration problems must never surface as errors in the host
// application.
func LoadConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = readBoolEnv(EnvEnabled, true)

	path := os.Getenv(EnvIntegrations)
	if path == "" {
		return cfg
	}
	integrations, err := ReadIntegrationsFile(path)
	if err != nil {
		cfg.Enabled = false
		return cfg
	}
	cfg.Integrations = integrations
	return cfg
}

// ReadIntegrationsFile parses an integrations file. The format is chosen
// by extension: ".yml"/".yaml" is YAML, everything else is JSON. Both
// formats accept either a bare list of entries or an object with an
// "integrations" list. An entry without an "enabled" field defaults to
// enabled; listing an integration is opting it in.
func ReadIntegrationsFile(path string) ([]IntegrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read integrations file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return parseYAMLIntegrations(data)
	default:
		return parseJSONIntegrations(data)
	}
}

func parseJSONIntegrations(data []byte) ([]IntegrationConfig, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidIntegrations)
	}
	root := gjson.ParseBytes(data)
	if list := root.Get("integrations"); list.Exists() {
		root = list
	}
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: expected a list of integrations", ErrInvalidIntegrations)
	}

	var out []IntegrationConfig
	var bad string
	root.ForEach(func(_, entry gjson.Result) bool {
		name := entry.Get("name").String()
		if name == "" {
			bad = entry.Raw
			return false
		}
		enabled := true
		if e := entry.Get("enabled"); e.Exists() {
			enabled = e.Bool()
		}
		out = append(out, IntegrationConfig{Name: name, Enabled: enabled})
		return true
	})
	if bad != "" {
		return nil, fmt.Errorf("%w: entry missing name: %s", ErrInvalidIntegrations, bad)
	}
	return out, nil
}

// yamlIntegration distinguishes an absent enabled field from an explicit
// false so absent can default to enabled.
type yamlIntegration struct {
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"`
}

func parseYAMLIntegrations(data []byte) ([]IntegrationConfig, error) {
	var entries []yamlIntegration
	var doc struct {
		Integrations []yamlIntegration `yaml:"integrations"`
	}
	if err := yaml.Unmarshal(data, &doc); err == nil && doc.Integrations != nil {
		entries = doc.Integrations
	} else if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIntegrations, err)
	}

	out := make([]IntegrationConfig, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entry missing name", ErrInvalidIntegrations)
		}
		enabled := true
		if e.Enabled != nil {
			enabled = *e.Enabled
		}
		out = append(out, IntegrationConfig{Name: e.Name, Enabled: enabled})
	}
	return out, nil
}

// readBoolEnv reads a boolean environment variable, keeping the default
// for unset or unrecognized values.
func readBoolEnv(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return def
	}
}
