// Package resolver computes where each catalog entry lands in the output
// tree. A Resolver owns the run's destination map, which guarantees that no
// two sources share a destination, and the WhatsApp index built from the
// chat media pass.
package resolver

import (
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ilexum-group/iosextract/internal/metadata"
	"github.com/ilexum-group/iosextract/internal/utils"
	"github.com/ilexum-group/iosextract/pkg/models"
)

// Container-internal prefixes removed from relative paths. Only the first
// match is stripped, so more specific prefixes come first.
var containerPrefixes = []string{
	"Media/DCIM/100APPLE/",
	"Media/DCIM/",
	"Media/PhotoData/Thumbnails/V2/",
	"Media/PhotoData/Thumbnails/",
	"Media/PhotoData/Sync/",
	"Media/Profile/",
	"File Provider Storage/",
}

// WhatsappMessagePrefix is the catalog folder the chat store's media paths
// are relative to.
const WhatsappMessagePrefix = "Message/"

// Side directories for chat media that is not a primary attachment.
const (
	ThumbnailsDir = "Thumbnails"
	StickersDir   = "Stickers"
)

var (
	thumbnailExts = map[string]bool{".thumb": true, ".favicon": true, ".mmsthumb": true}
	stickerExts   = map[string]bool{".webp": true}
	videoExts     = map[string]bool{".mov": true, ".mp4": true, ".m4v": true, ".3gp": true}
)

const (
	imagePrefix = "IMG_"
	videoPrefix = "VID_"
)

// Domain prefixes removed before a domain becomes a path segment.
const (
	appGroupDomainPrefix = "AppDomainGroup-"
	appDomainPrefix      = "AppDomain-"
)

// Resolver turns catalog entries into unique destination paths.
type Resolver struct {
	mu            sync.Mutex
	preserveNames bool
	resolved      map[string]string // case-folded destination -> source
	whatsapp      *WhatsappIndex
}

// New creates a Resolver. With preserveNames set, recovered original names and
// date-based renaming are not applied.
func New(preserveNames bool) *Resolver {
	return &Resolver{
		preserveNames: preserveNames,
		resolved:      make(map[string]string),
		whatsapp:      NewWhatsappIndex(),
	}
}

// WhatsappIndex returns the index filled by CategoryWhatsapp resolutions.
func (r *Resolver) WhatsappIndex() *WhatsappIndex {
	return r.whatsapp
}

// Len returns the number of destinations claimed so far.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.resolved)
}

// Resolve computes the destination of entry under outputDir and claims it for
// source. A destination already claimed by a different source gets a _N
// suffix before its extension. Destinations differing only in case collide,
// since the output may live on a case-insensitive filesystem.
func (r *Resolver) Resolve(entry models.CatalogEntry, meta models.DecodedMetadata, category Category, outputDir, source string) string {
	dest := r.candidate(entry, meta, category, outputDir)

	r.mu.Lock()
	final := utils.UniquePath(dest, func(p string) bool {
		owner, ok := r.resolved[strings.ToLower(p)]
		return ok && owner != source
	})
	r.resolved[strings.ToLower(final)] = source
	r.mu.Unlock()

	if category == CategoryWhatsapp {
		r.whatsapp.Record(strings.TrimPrefix(entry.RelativePath, WhatsappMessagePrefix), final)
	}
	return final
}

func (r *Resolver) candidate(entry models.CatalogEntry, meta models.DecodedMetadata, category Category, outputDir string) string {
	rel := StripContainerPrefix(entry.RelativePath)
	dir := outputDir

	switch category {
	case CategoryWhatsapp:
		rel = path.Base(rel)
		ext := strings.ToLower(path.Ext(rel))
		switch {
		case thumbnailExts[ext]:
			dir = filepath.Join(outputDir, ThumbnailsDir)
		case stickerExts[ext]:
			dir = filepath.Join(outputDir, StickersDir)
		}
	case CategoryAppGroup:
		rel = path.Join(strings.TrimPrefix(entry.Domain, appGroupDomainPrefix), rel)
	case CategoryApp:
		rel = path.Join(strings.TrimPrefix(entry.Domain, appDomainPrefix), rel)
	case CategoryNormal:
	}

	// Rooting the path before cleaning keeps ".." segments inside outputDir.
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	dest := filepath.Join(dir, filepath.FromSlash(rel))
	if r.preserveNames || category == CategoryApp {
		return dest
	}
	return rename(dest, meta, category)
}

// rename applies the original filename or a date-derived name to dest.
func rename(dest string, meta models.DecodedMetadata, category Category) string {
	dir := filepath.Dir(dest)

	if meta.OriginalFilename != nil {
		return filepath.Join(dir, utils.SanitizeFileName(*meta.OriginalFilename))
	}
	if meta.LastModified == nil {
		return dest
	}

	base := filepath.Base(dest)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if category == CategoryWhatsapp || metadata.IsCameraSequenceName(base) {
		name = imagePrefix + meta.LastModified.In(time.Local).Format(utils.FileStampLayout)
	}
	if videoExts[strings.ToLower(ext)] && strings.HasPrefix(name, imagePrefix) {
		name = videoPrefix + strings.TrimPrefix(name, imagePrefix)
	}
	return filepath.Join(dir, name+ext)
}

// StripContainerPrefix removes the first matching container-internal prefix.
func StripContainerPrefix(rel string) string {
	for _, prefix := range containerPrefixes {
		if strings.HasPrefix(rel, prefix) {
			return strings.TrimPrefix(rel, prefix)
		}
	}
	return rel
}
