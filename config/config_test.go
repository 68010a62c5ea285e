package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, fields map[string]interface{}) string {
	t.Helper()
	body, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func validFields() map[string]interface{} {
	return map[string]interface{}{
		"node_id":       "node-a",
		"node_name":     "Node A",
		"wifi_ssid":     "mesh",
		"wifi_password": "secret",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, validFields())
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscoveryPort != DefaultDiscoveryPort || cfg.MessagePort != DefaultMessagePort || cfg.DashboardPort != DefaultDashboardPort {
		t.Errorf("expected default ports, got %+v", cfg)
	}
	if cfg.PSK != DefaultPSK {
		t.Errorf("expected default psk, got %q", cfg.PSK)
	}
}

func TestLoadMissingRequiredKey(t *testing.T) {
	fields := validFields()
	delete(fields, "wifi_password")
	path := writeConfig(t, fields)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing required key")
	}
	var cfgErr *ConfigError
	if !asConfigError(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
}

func TestLoadRejectsWrongLengthPSK(t *testing.T) {
	fields := validFields()
	fields["psk"] = "too-short"
	path := writeConfig(t, fields)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for wrong-length psk")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func asConfigError(err error, target **ConfigError) bool {
	ce, ok := err.(*ConfigError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
