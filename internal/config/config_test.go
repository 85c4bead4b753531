package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ResolvesRelativeXTCEPath(t *testing.T) {
	tmp := t.TempDir()
	xtcePath := filepath.Join(tmp, "packets.xml")
	if err := os.WriteFile(xtcePath, []byte("<SpaceSystem/>"), 0o644); err != nil {
		t.Fatalf("write xtce file: %v", err)
	}

	cfgPath := filepath.Join(tmp, "spp.yaml")
	cfgYAML := "xtce_path: packets.xml\nstrict: true\napid_allowlist: [1, 2, 3]\nsecondary_header_bytes: 4\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.XTCEPath != xtcePath {
		t.Errorf("XTCEPath = %q, want %q", cfg.XTCEPath, xtcePath)
	}
	if !cfg.Strict {
		t.Error("Strict = false, want true")
	}
	if len(cfg.APIDs) != 3 {
		t.Errorf("APIDs = %v, want 3 entries", cfg.APIDs)
	}
	if cfg.SecHdrLen != 4 {
		t.Errorf("SecHdrLen = %d, want 4", cfg.SecHdrLen)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "spp.yaml")
	if err := os.WriteFile(cfgPath, []byte("bogus_field: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatal("expected Load() to reject an unknown field")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/spp.yaml"); err == nil {
		t.Fatal("expected Load() to fail for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero value ok", Config{}, false},
		{"negative secondary header length", Config{SecHdrLen: -1}, true},
		{"apid out of range", Config{APIDs: []int{2048}}, true},
		{"apid in range", Config{APIDs: []int{2047}}, false},
		{"blank xtce path", Config{XTCEPath: "   "}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on Default() = %v, want nil", err)
	}
}
