// Package config loads a node's JSON configuration file, filling in port
// and PSK defaults and validating the handful of fields every node must
// set for itself. It is grounded on
// original_source/devices/config_loader.py's required-key checking, and on
// the habit — seen throughout device/ — of a small named error type rather
// than a generic one, so a caller can distinguish "bad config" from every
// other kind of startup failure.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	DefaultDiscoveryPort = 5000
	DefaultMessagePort   = 5001
	DefaultDashboardPort = 8080
	DefaultPSK           = "NexLatticeSharedSecretKey256"

	pskLength = 32
)

// ConfigError reports a missing, malformed, or invalid configuration file.
// It is returned, never panicked, so main can map it to a non-zero exit
// code.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Path, e.Reason)
}

// Config is the parsed, defaulted, validated node configuration.
type Config struct {
	NodeID        string `json:"node_id"`
	NodeName      string `json:"node_name"`
	WifiSSID      string `json:"wifi_ssid"`
	WifiPassword  string `json:"wifi_password"`
	DiscoveryPort int    `json:"discovery_port"`
	MessagePort   int    `json:"message_port"`
	DashboardPort int    `json:"dashboard_port"`
	DashboardIP   string `json:"dashboard_ip"`
	PSK           string `json:"psk"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Reason: err.Error()}
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &ConfigError{Path: path, Reason: "malformed JSON: " + err.Error()}
	}

	cfg := &Config{
		DiscoveryPort: DefaultDiscoveryPort,
		MessagePort:   DefaultMessagePort,
		DashboardPort: DefaultDashboardPort,
		PSK:           DefaultPSK,
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, &ConfigError{Path: path, Reason: "malformed JSON: " + err.Error()}
	}

	for _, key := range []string{"node_id", "node_name", "wifi_ssid", "wifi_password"} {
		if _, present := fields[key]; !present {
			return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("missing required key %q", key)}
		}
	}
	if cfg.NodeID == "" || cfg.NodeName == "" || cfg.WifiSSID == "" || cfg.WifiPassword == "" {
		return nil, &ConfigError{Path: path, Reason: "required keys must be non-empty strings"}
	}

	if _, present := fields["psk"]; present && len(cfg.PSK) != pskLength {
		return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("psk must be exactly %d bytes, got %d", pskLength, len(cfg.PSK))}
	}

	return cfg, nil
}
