package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ilexum-group/iosextract/internal/resolver"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if !cfg.Phases.Media || !cfg.Phases.Transcripts {
		t.Errorf("expected media and transcripts enabled by default: %+v", cfg.Phases)
	}
	if len(cfg.Filters) != len(DefaultFilters()) {
		t.Fatalf("Filters = %d, want %d", len(cfg.Filters), len(DefaultFilters()))
	}
	if cfg.Filters[0].Name != "camera" || cfg.Filters[0].Category != resolver.CategoryNormal {
		t.Errorf("first filter = %+v", cfg.Filters[0])
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iosextract.toml")
	content := `
backup_root = "/backups/phone"
output_root = "/exports/phone"
preserve_names = true

[phases]
media = true
transcripts = false
contacts = true
notes = false

[[filters]]
name = "whatsapp"
domain = "AppDomainGroup-group.net.whatsapp.WhatsApp.shared"
path = "Message/Media/*"
category = "whatsapp"
output_dir = "Chats media"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IOSEXTRACT_OUTPUT_ROOT", "/override")
	t.Setenv("IOSEXTRACT_DRY_RUN", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BackupRoot != "/backups/phone" {
		t.Errorf("BackupRoot = %q", cfg.BackupRoot)
	}
	if cfg.OutputRoot != "/override" {
		t.Errorf("OutputRoot = %q, want env override", cfg.OutputRoot)
	}
	if !cfg.DryRun || !cfg.PreserveNames {
		t.Errorf("DryRun = %v, PreserveNames = %v", cfg.DryRun, cfg.PreserveNames)
	}
	if cfg.Phases.Transcripts {
		t.Errorf("transcripts should be disabled")
	}
	if len(cfg.Filters) != 1 || cfg.Filters[0].Category != resolver.CategoryWhatsapp || cfg.Filters[0].OutputDir != "Chats media" {
		t.Fatalf("Filters = %+v", cfg.Filters)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadRejectsUnknownCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	content := "[[filters]]\nname = \"x\"\ndomain = \"d\"\npath = \"p\"\ncategory = \"bogus\"\noutput_dir = \"o\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error for unknown category")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Filters = append(cfg.Filters, Filter{Name: "camera", Domain: "d", Path: "p", OutputDir: "o"})
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"backup root", "output root", "loud", `duplicate filter name "camera"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestInvalidEnvBool(t *testing.T) {
	t.Setenv("IOSEXTRACT_PRESERVE_NAMES", "maybe")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for invalid boolean")
	}
}
