package manifest

import (
	"context"
	"errors"
	"testing"

	"github.com/ilexum-group/iosextract/internal/artifactdetector"
	"github.com/ilexum-group/iosextract/internal/testsupport"
	"github.com/ilexum-group/iosextract/pkg/models"
)

func TestGlobToLike(t *testing.T) {
	cases := map[string]string{
		"":                 "%",
		"Media/DCIM/*":     "Media/DCIM/%",
		"AppDomain-*":      "AppDomain-%",
		"file_?.jpg":       `file\__.jpg`,
		"100%":             `100\%`,
		`back\slash`:       `back\\slash`,
		"CameraRollDomain": "CameraRollDomain",
	}
	for glob, want := range cases {
		if got := GlobToLike(glob); got != want {
			t.Errorf("GlobToLike(%q) = %q, want %q", glob, got, want)
		}
	}
}

func TestEachFiltersAndOrders(t *testing.T) {
	backup := testsupport.NewBackup(t)
	backup.AddFile("CameraRollDomain", "Media/DCIM/100APPLE/IMG_0002.JPG", []byte("b"), nil)
	backup.AddFile("CameraRollDomain", "Media/DCIM/100APPLE/IMG_0001.JPG", []byte("a"), nil)
	backup.AddFile("CameraRollDomain", "Media/PhotoData/Thumbnails/x.ithmb", []byte("t"), nil)
	backup.AddFile("HomeDomain", "Media/DCIM/IMG_9999.JPG", []byte("h"), nil)

	catalog, err := Open(backup.Root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = catalog.Close() }()

	var paths []string
	err = catalog.Each(context.Background(), Query{Domain: "CameraRollDomain", Path: "Media/DCIM/*"}, func(e models.CatalogEntry) error {
		paths = append(paths, e.RelativePath)
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}

	want := []string{"Media/DCIM/100APPLE/IMG_0001.JPG", "Media/DCIM/100APPLE/IMG_0002.JPG"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestEachStopsOnCallbackError(t *testing.T) {
	backup := testsupport.NewBackup(t)
	backup.AddFile("CameraRollDomain", "Media/DCIM/a.jpg", []byte("a"), nil)
	backup.AddFile("CameraRollDomain", "Media/DCIM/b.jpg", []byte("b"), nil)

	catalog, err := Open(backup.Root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = catalog.Close() }()

	stop := errors.New("stop")
	calls := 0
	err = catalog.Each(context.Background(), Query{Domain: "*", Path: "*"}, func(models.CatalogEntry) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestSourcePathUsesBucket(t *testing.T) {
	backup := testsupport.NewBackup(t)
	entry := backup.AddFile("CameraRollDomain", "Media/DCIM/a.jpg", []byte("a"), nil)

	catalog, err := Open(backup.Root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = catalog.Close() }()

	if got, want := catalog.SourcePath(entry), backup.StorePath(entry); got != want {
		t.Fatalf("SourcePath = %q, want %q", got, want)
	}
}

func TestOpenMissingCatalog(t *testing.T) {
	_, err := Open(t.TempDir())
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("err = %v, want ErrCatalogUnavailable", err)
	}
}

func TestCompanion(t *testing.T) {
	backup := testsupport.NewBackup(t)
	chatPath := backup.AddDatabase("AppDomainGroup-group.net.whatsapp.WhatsApp.shared", "ChatStorage.sqlite",
		"CREATE TABLE ZWACHATSESSION (Z_PK INTEGER PRIMARY KEY)",
		"CREATE TABLE ZWAMESSAGE (Z_PK INTEGER PRIMARY KEY)",
	)
	backup.AddFile("HomeDomain", "Library/AddressBook/AddressBook.sqlitedb", nil, nil)

	catalog, err := Open(backup.Root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = catalog.Close() }()
	ctx := context.Background()

	got, err := catalog.Companion(ctx, "AppDomainGroup-group.net.whatsapp.WhatsApp.shared", "ChatStorage.sqlite", artifactdetector.StoreChat)
	if err != nil {
		t.Fatalf("Companion: %v", err)
	}
	if got != chatPath {
		t.Fatalf("Companion = %q, want %q", got, chatPath)
	}

	if _, err := catalog.Companion(ctx, "HomeDomain", "Library/AddressBook/AddressBook.sqlitedb", artifactdetector.StoreAddressBook); !errors.Is(err, ErrStoreMissing) {
		t.Fatalf("absent content: err = %v, want ErrStoreMissing", err)
	}
	if _, err := catalog.Companion(ctx, "HomeDomain", "nope.sqlite", artifactdetector.StoreNotes); !errors.Is(err, ErrStoreMissing) {
		t.Fatalf("absent row: err = %v, want ErrStoreMissing", err)
	}
}
