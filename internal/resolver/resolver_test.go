package resolver

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ilexum-group/iosextract/pkg/models"
)

func metaAt(ts time.Time) models.DecodedMetadata {
	return models.DecodedMetadata{LastModified: &ts}
}

func entry(domain, rel string) models.CatalogEntry {
	return models.CatalogEntry{ContentID: "ab" + rel, Domain: domain, RelativePath: rel}
}

var newYear = time.Date(2023, 1, 1, 1, 1, 1, 0, time.Local)

func TestResolveCameraRoll(t *testing.T) {
	out := filepath.Join("out", "Camera")
	tests := []struct {
		name string
		rel  string
		meta models.DecodedMetadata
		want string
	}{
		{
			name: "camera sequence renamed by date",
			rel:  "Media/DCIM/100APPLE/IMG_0001.JPG",
			meta: metaAt(newYear),
			want: filepath.Join(out, "IMG_20230101_010101.JPG"),
		},
		{
			name: "video prefix for mov",
			rel:  "Media/DCIM/100APPLE/IMG_0002.MOV",
			meta: metaAt(newYear),
			want: filepath.Join(out, "VID_20230101_010101.MOV"),
		},
		{
			name: "video prefix for lowercase mp4",
			rel:  "Media/DCIM/100APPLE/IMG_0003.mp4",
			meta: metaAt(newYear),
			want: filepath.Join(out, "VID_20230101_010101.mp4"),
		},
		{
			name: "other folders keep their segment",
			rel:  "Media/DCIM/101APPLE/IMG_0004.HEIC",
			meta: metaAt(newYear),
			want: filepath.Join(out, "101APPLE", "IMG_20230101_010101.HEIC"),
		},
		{
			name: "non sequence name untouched",
			rel:  "Media/DCIM/100APPLE/Screenshot.PNG",
			meta: metaAt(newYear),
			want: filepath.Join(out, "Screenshot.PNG"),
		},
		{
			name: "no modification time keeps name",
			rel:  "Media/DCIM/100APPLE/IMG_0005.JPG",
			want: filepath.Join(out, "IMG_0005.JPG"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(false)
			e := entry("CameraRollDomain", tt.rel)
			if got := r.Resolve(e, tt.meta, CategoryNormal, out, e.ContentID); got != tt.want {
				t.Fatalf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveOriginalFilename(t *testing.T) {
	r := New(false)
	name := "Birthday Party.JPG"
	meta := metaAt(newYear)
	meta.OriginalFilename = &name

	e := entry("CameraRollDomain", "Media/DCIM/100APPLE/IMG_0001.JPG")
	got := r.Resolve(e, meta, CategoryNormal, "out", e.ContentID)
	if want := filepath.Join("out", "Birthday Party.JPG"); got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestResolvePreserveNames(t *testing.T) {
	r := New(true)
	name := "Birthday Party.JPG"
	meta := metaAt(newYear)
	meta.OriginalFilename = &name

	e := entry("CameraRollDomain", "Media/DCIM/100APPLE/IMG_0001.JPG")
	got := r.Resolve(e, meta, CategoryNormal, "out", e.ContentID)
	if want := filepath.Join("out", "IMG_0001.JPG"); got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveCollisionSuffix(t *testing.T) {
	r := New(false)
	first := entry("CameraRollDomain", "Media/DCIM/100APPLE/IMG_0001.jpg")
	second := entry("CameraRollDomain", "Media/DCIM/100APPLE/IMG_0002.jpg")
	third := entry("CameraRollDomain", "Media/DCIM/100APPLE/IMG_0003.jpg")

	got1 := r.Resolve(first, metaAt(newYear), CategoryNormal, "out", "src/1")
	got2 := r.Resolve(second, metaAt(newYear), CategoryNormal, "out", "src/2")
	got3 := r.Resolve(third, metaAt(newYear), CategoryNormal, "out", "src/3")

	want := []string{
		filepath.Join("out", "IMG_20230101_010101.jpg"),
		filepath.Join("out", "IMG_20230101_010101_1.jpg"),
		filepath.Join("out", "IMG_20230101_010101_2.jpg"),
	}
	for i, got := range []string{got1, got2, got3} {
		if got != want[i] {
			t.Errorf("resolution %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestResolveCollisionIgnoresCase(t *testing.T) {
	r := New(false)
	upper := r.Resolve(entry("CameraRollDomain", "Media/DCIM/100APPLE/IMG_0001.JPG"), metaAt(newYear), CategoryNormal, "out", "src/1")
	lower := r.Resolve(entry("CameraRollDomain", "Media/DCIM/100APPLE/IMG_0002.jpg"), metaAt(newYear), CategoryNormal, "out", "src/2")

	if want := filepath.Join("out", "IMG_20230101_010101.JPG"); upper != want {
		t.Errorf("first = %q, want %q", upper, want)
	}
	if want := filepath.Join("out", "IMG_20230101_010101_1.jpg"); lower != want {
		t.Errorf("second = %q, want %q", lower, want)
	}
	if again := r.Resolve(entry("CameraRollDomain", "Media/DCIM/100APPLE/IMG_0001.JPG"), metaAt(newYear), CategoryNormal, "out", "src/1"); again != upper {
		t.Errorf("same source resolved to %q, want %q", again, upper)
	}
}

func TestResolveSameSourceIsStable(t *testing.T) {
	r := New(false)
	e := entry("CameraRollDomain", "Media/DCIM/100APPLE/IMG_0001.jpg")
	a := r.Resolve(e, metaAt(newYear), CategoryNormal, "out", "src/1")
	b := r.Resolve(e, metaAt(newYear), CategoryNormal, "out", "src/1")
	if a != b {
		t.Fatalf("same source resolved to %q then %q", a, b)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestResolveUniqueness(t *testing.T) {
	r := New(false)
	seen := make(map[string]string)
	for i := 0; i < 50; i++ {
		e := entry("CameraRollDomain", fmt.Sprintf("Media/DCIM/100APPLE/IMG_%04d.JPG", i))
		source := fmt.Sprintf("src/%d", i)
		dest := r.Resolve(e, metaAt(newYear), CategoryNormal, "out", source)
		if other, dup := seen[dest]; dup {
			t.Fatalf("%s and %s both resolved to %s", other, source, dest)
		}
		seen[dest] = source
	}
}

func TestResolveWhatsapp(t *testing.T) {
	r := New(false)
	out := filepath.Join("out", "Whatsapp")
	domain := "AppDomainGroup-group.net.whatsapp.WhatsApp.shared"

	media := entry(domain, "Message/Media/123@s.whatsapp.net/a/b/0B3C4D5E.jpg")
	thumb := entry(domain, "Message/Media/123@s.whatsapp.net/a/b/0B3C4D5E.thumb")
	sticker := entry(domain, "Message/Media/123@s.whatsapp.net/a/b/sticker.webp")
	clip := entry(domain, "Message/Media/123@s.whatsapp.net/a/b/clip.mp4")

	cases := []struct {
		e    models.CatalogEntry
		want string
	}{
		{media, filepath.Join(out, "IMG_20230101_010101.jpg")},
		{thumb, filepath.Join(out, ThumbnailsDir, "IMG_20230101_010101.thumb")},
		{sticker, filepath.Join(out, StickersDir, "IMG_20230101_010101.webp")},
		{clip, filepath.Join(out, "VID_20230101_010101.mp4")},
	}
	for _, c := range cases {
		got := r.Resolve(c.e, metaAt(newYear), CategoryWhatsapp, out, c.e.ContentID)
		if got != c.want {
			t.Errorf("Resolve(%s) = %q, want %q", c.e.RelativePath, got, c.want)
		}
	}

	dest, ok := r.WhatsappIndex().Lookup("Media/123@s.whatsapp.net/a/b/0B3C4D5E.jpg")
	if !ok || dest != cases[0].want {
		t.Fatalf("index lookup = %q, %v", dest, ok)
	}
	if r.WhatsappIndex().Len() != len(cases) {
		t.Fatalf("index Len = %d, want %d", r.WhatsappIndex().Len(), len(cases))
	}
}

func TestResolveAppCategories(t *testing.T) {
	r := New(false)

	group := entry("AppDomainGroup-group.com.example.shared", "File Provider Storage/Docs/IMG_0001.JPG")
	got := r.Resolve(group, metaAt(newYear), CategoryAppGroup, "AppGroups", group.ContentID)
	if want := filepath.Join("AppGroups", "group.com.example.shared", "Docs", "IMG_20230101_010101.JPG"); got != want {
		t.Fatalf("app group = %q, want %q", got, want)
	}

	app := entry("AppDomain-com.example.notes", "Documents/IMG_0001.JPG")
	got = r.Resolve(app, metaAt(newYear), CategoryApp, "Apps", app.ContentID)
	if want := filepath.Join("Apps", "com.example.notes", "Documents", "IMG_0001.JPG"); got != want {
		t.Fatalf("app = %q, want %q", got, want)
	}
}

func TestResolveKeepsTraversalInsideOutput(t *testing.T) {
	r := New(true)
	e := entry("AppDomain-evil", "../../etc/passwd")
	got := r.Resolve(e, models.DecodedMetadata{}, CategoryApp, "Apps", e.ContentID)
	if want := filepath.Join("Apps", "etc", "passwd"); got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestParseCategory(t *testing.T) {
	for category, name := range categoryNames {
		got, err := ParseCategory(name)
		if err != nil || got != category {
			t.Errorf("ParseCategory(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseCategory("bogus"); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestStripContainerPrefix(t *testing.T) {
	cases := map[string]string{
		"Media/DCIM/100APPLE/IMG_1.JPG":       "IMG_1.JPG",
		"Media/DCIM/101APPLE/IMG_1.JPG":       "101APPLE/IMG_1.JPG",
		"Media/PhotoData/Sync/x/y.jpg":        "x/y.jpg",
		"File Provider Storage/Inbox/doc.pdf": "Inbox/doc.pdf",
		"Library/Preferences/x.plist":         "Library/Preferences/x.plist",
	}
	for in, want := range cases {
		if got := StripContainerPrefix(in); got != want {
			t.Errorf("StripContainerPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
