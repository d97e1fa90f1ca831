//nolint:revive // Package name 'utils' is intentional and commonly used in Go projects
package utils

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer substitutes characters that are not allowed in file names
// on at least one of the filesystems the output tree may land on.
var fileNameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizeFileName normalises name to NFC and substitutes filesystem-unsafe
// characters. Control characters are dropped. Returns "unknown" when nothing
// usable is left.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	if name == "" || name == "." || name == ".." {
		return "unknown"
	}
	return name
}

// NormalizeName returns name in NFC form. Backups made on iOS store
// decomposed (NFD) names; the output tree uses composed ones.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// UniquePath returns path unchanged if taken reports it free, otherwise the
// first of path_1.ext, path_2.ext, ... that is free.
func UniquePath(path string, taken func(string) bool) string {
	if !taken(path) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := stem + "_" + strconv.Itoa(n) + ext
		if !taken(candidate) {
			return candidate
		}
	}
}
