package linker

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSource(t *testing.T, dir string) string {
	t.Helper()
	src := filepath.Join(dir, "ab", "abcdef")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("photo"), 0o600); err != nil {
		t.Fatal(err)
	}
	return src
}

func TestMaterializeCreatesHardLink(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir)
	dst := filepath.Join(dir, "out", "Camera", "IMG_20230101_010101.JPG")
	stamp := time.Date(2023, 1, 1, 1, 1, 1, 0, time.Local)

	outcome, err := New(false, nil).Materialize(src, dst, &stamp)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if outcome != Linked {
		t.Fatalf("outcome = %v, want linked", outcome)
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		t.Fatal(err)
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(srcInfo, dstInfo) {
		t.Fatalf("destination is not a hard link of the source")
	}
	if !dstInfo.ModTime().Equal(stamp) {
		t.Fatalf("mtime = %v, want %v", dstInfo.ModTime(), stamp)
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir)
	dst := filepath.Join(dir, "out", "a.jpg")
	l := New(false, nil)

	if _, err := l.Materialize(src, dst, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	outcome, err := l.Materialize(src, dst, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if outcome != Existing {
		t.Fatalf("outcome = %v, want existing", outcome)
	}
}

func TestMaterializeRaceIsSuccess(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir)
	dst := filepath.Join(dir, "out", "a.jpg")

	l := New(false, nil)
	l.link = func(oldname, newname string) error {
		// Another writer wins between the existence check and the link.
		if err := os.Link(oldname, newname); err != nil {
			return err
		}
		return os.Link(oldname, newname)
	}

	outcome, err := l.Materialize(src, dst, nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if outcome != Existing {
		t.Fatalf("outcome = %v, want existing", outcome)
	}
}

func TestMaterializeMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := New(false, nil).Materialize(filepath.Join(dir, "nope"), filepath.Join(dir, "out"), nil)
	if !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("err = %v, want ErrSourceMissing", err)
	}
}

func TestMaterializeDryRun(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir)
	dst := filepath.Join(dir, "out", "a.jpg")
	var buf bytes.Buffer

	outcome, err := New(true, &buf).Materialize(src, dst, nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if outcome != Planned {
		t.Fatalf("outcome = %v, want planned", outcome)
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Fatalf("dry run touched the filesystem: %v", err)
	}
	if !strings.Contains(buf.String(), src+" -> "+dst) {
		t.Fatalf("dry run output = %q", buf.String())
	}
}
