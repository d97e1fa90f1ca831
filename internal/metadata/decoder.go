// Package metadata decodes the per-file metadata blobs stored in the backup
// catalog. Each blob is an NSKeyedArchiver binary plist describing an MBFile;
// its ExtendedAttributes value is itself a plist holding the original file
// name the Photos library assigned to the asset.
package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"howett.net/plist"

	"github.com/ilexum-group/iosextract/internal/utils"
	"github.com/ilexum-group/iosextract/pkg/models"
)

// OriginalFilenameAttribute is the extended attribute carrying the name a
// photo had before it was imported into the camera roll.
const OriginalFilenameAttribute = "com.apple.assetsd.originalFilename"

var (
	// ErrMalformedBlob means the primary plist could not be decoded at all.
	ErrMalformedBlob = errors.New("malformed metadata blob")
	// ErrMissingField means the blob decoded but lacked an expected value.
	ErrMissingField = errors.New("metadata field missing")
	// ErrMalformedNested means the extended attributes plist was present but unreadable.
	ErrMalformedNested = errors.New("malformed extended attributes")
)

var (
	cameraSequencePattern = regexp.MustCompile(`^IMG_\d+\..+$`)
	guidPattern           = regexp.MustCompile(`^[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}(\..*)?$`)
)

// IsCameraSequenceName reports whether name looks like IMG_1234.JPG.
func IsCameraSequenceName(name string) bool {
	return cameraSequencePattern.MatchString(name)
}

// IsUninformativeName reports whether an original filename adds nothing over
// what resolution derives on its own: camera sequence names and GUIDs.
func IsUninformativeName(name string) bool {
	return IsCameraSequenceName(name) || guidPattern.MatchString(name)
}

// Decode extracts modification time, size and original filename from blob.
//
// The returned record is always usable. A non-nil error lists every part
// that could not be recovered; callers log it and carry on.
func Decode(blob []byte) (models.DecodedMetadata, error) {
	var meta models.DecodedMetadata
	if len(blob) == 0 {
		return meta, fmt.Errorf("%w: empty", ErrMalformedBlob)
	}

	var archive map[string]interface{}
	if _, err := plist.Unmarshal(blob, &archive); err != nil {
		return meta, fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}

	objects, _ := archive["$objects"].([]interface{})
	root, ok := rootObject(archive, objects)
	if !ok {
		return meta, fmt.Errorf("%w: no root object", ErrMalformedBlob)
	}

	var problems []error

	if seconds, ok := toInt64(resolve(objects, root["LastModified"])); ok {
		modified := time.Unix(seconds, 0).In(time.Local)
		meta.LastModified = &modified
	} else {
		problems = append(problems, fmt.Errorf("%w: LastModified", ErrMissingField))
	}

	if size, ok := toInt64(resolve(objects, root["Size"])); ok {
		meta.Size = &size
	} else {
		problems = append(problems, fmt.Errorf("%w: Size", ErrMissingField))
	}

	if raw, present := root["ExtendedAttributes"]; present {
		name, err := originalFilename(resolve(objects, raw))
		if err != nil {
			problems = append(problems, err)
		} else if name != "" && !IsUninformativeName(name) {
			meta.OriginalFilename = &name
		}
	}

	return meta, errors.Join(problems...)
}

func rootObject(archive map[string]interface{}, objects []interface{}) (map[string]interface{}, bool) {
	var candidate interface{}
	if top, ok := archive["$top"].(map[string]interface{}); ok {
		candidate = resolve(objects, top["root"])
	}
	if _, ok := candidate.(map[string]interface{}); !ok && len(objects) > 1 {
		candidate = objects[1]
	}
	root, ok := candidate.(map[string]interface{})
	return root, ok
}

// originalFilename decodes the nested extended attributes plist. An empty
// name with a nil error means the attribute is simply not there.
func originalFilename(value interface{}) (string, error) {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case map[string]interface{}:
		data, _ = v["NS.data"].([]byte)
	}
	if len(data) == 0 {
		return "", nil
	}

	var attrs map[string]interface{}
	if _, err := plist.Unmarshal(data, &attrs); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedNested, err)
	}

	var raw []byte
	switch v := attrs[OriginalFilenameAttribute].(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return "", nil
	}
	raw = bytes.TrimRight(raw, "\x00")
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: original filename is not UTF-8", ErrMalformedNested)
	}
	return utils.NormalizeName(strings.TrimSpace(string(raw))), nil
}

func resolve(objects []interface{}, value interface{}) interface{} {
	if uid, ok := value.(plist.UID); ok {
		if int(uid) < len(objects) {
			return objects[uid]
		}
		return nil
	}
	return value
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case uint64:
		return int64(v), true //nolint:gosec // catalog values fit in int64
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	default:
		return 0, false
	}
}
