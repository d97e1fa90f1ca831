package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ilexum-group/iosextract/internal/testsupport"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"IOSEXTRACT_BACKUP_ROOT", "IOSEXTRACT_OUTPUT_ROOT", "IOSEXTRACT_DRY_RUN", "IOSEXTRACT_PRESERVE_NAMES", "IOSEXTRACT_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func cameraBackup(t *testing.T) string {
	t.Helper()
	b := testsupport.NewBackup(t)
	shot := time.Date(2023, 1, 1, 1, 1, 1, 0, time.Local)
	b.AddFile("CameraRollDomain", "Media/DCIM/100APPLE/IMG_0001.JPG", []byte("jpeg"),
		testsupport.MetadataBlob(t, shot, 4, "Birthday Party.JPG"))
	return b.Root
}

func TestRootDryRun(t *testing.T) {
	backup := cameraBackup(t)
	out := filepath.Join(t.TempDir(), "out")

	output, err := executeCommand(t, "--log-level", "error", "-n", backup, out)
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, output)
	}
	if !strings.Contains(output, " -> "+filepath.Join(out, "Camera", "Birthday Party.JPG")) {
		t.Errorf("plan missing from output:\n%s", output)
	}
	if !strings.Contains(output, "camera") || !strings.Contains(output, "Dry run") {
		t.Errorf("summary missing from output:\n%s", output)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("dry run created %s", out)
	}
}

func TestRootExtractsAndReports(t *testing.T) {
	backup := cameraBackup(t)
	out := t.TempDir()

	if output, err := executeCommand(t, "--log-level", "error", backup, out); err != nil {
		t.Fatalf("execute: %v\n%s", err, output)
	}
	if _, err := os.Stat(filepath.Join(out, "Camera", "Birthday Party.JPG")); err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}

	output, err := executeCommand(t, "report", out)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(output, "catalog sha256") || !strings.Contains(output, "camera") {
		t.Errorf("report output:\n%s", output)
	}
}

func TestRootPreserveNames(t *testing.T) {
	backup := cameraBackup(t)
	out := t.TempDir()

	if output, err := executeCommand(t, "--log-level", "error", "--preserve-names", backup, out); err != nil {
		t.Fatalf("execute: %v\n%s", err, output)
	}
	if _, err := os.Stat(filepath.Join(out, "Camera", "IMG_0001.JPG")); err != nil {
		t.Fatalf("catalog name not kept: %v", err)
	}
}

func TestRootRequiresRoots(t *testing.T) {
	if _, err := executeCommand(t, "--log-level", "error"); err == nil {
		t.Fatal("expected validation error without roots")
	}
}

func TestRootRejectsBadLogLevel(t *testing.T) {
	if _, err := executeCommand(t, "--log-level", "loud", t.TempDir(), t.TempDir()); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestConfigFileSuppliesRoots(t *testing.T) {
	backup := cameraBackup(t)
	out := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "iosextract.toml")
	content := "backup_root = '" + backup + "'\noutput_root = '" + out + "'\nlog_level = 'error'\n" +
		"[phases]\nmedia = true\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if output, err := executeCommand(t, "-c", cfgPath); err != nil {
		t.Fatalf("execute: %v\n%s", err, output)
	}
	if _, err := os.Stat(filepath.Join(out, "Camera", "Birthday Party.JPG")); err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
}

func TestFiltersCommand(t *testing.T) {
	output, err := executeCommand(t, "filters")
	if err != nil {
		t.Fatalf("filters: %v", err)
	}
	for _, want := range []string{"camera-sync", "whatsapp-profile", "File Provider Storage/*", "app-group"} {
		if !strings.Contains(output, want) {
			t.Errorf("filters output lacks %q:\n%s", want, output)
		}
	}
}

func TestRenderTableFillsShortRows(t *testing.T) {
	got := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight}, false)
	if !strings.Contains(got, "only") || !strings.Contains(got, "A") {
		t.Errorf("renderTable = %q", got)
	}
	if renderTable(nil, nil, nil, false) != "" {
		t.Errorf("empty header should render nothing")
	}
}
