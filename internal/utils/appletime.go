//nolint:revive // Package name 'utils' is intentional and commonly used in Go projects
package utils

import (
	"math"
	"time"
)

// AppleEpochOffset is the number of seconds between the Unix epoch and
// 2001-01-01T00:00:00Z, the reference date of Core Data timestamps.
const AppleEpochOffset = 978307200

// FromAppleSeconds converts a reference-epoch timestamp to local time.
func FromAppleSeconds(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole)+AppleEpochOffset, int64(math.Round(frac*1e9))).In(time.Local)
}

// FileStampLayout is the layout of synthesized camera names (IMG_20230101_000000).
const FileStampLayout = "20060102_150405"

// TranscriptLayout is the timestamp layout used on every transcript line.
const TranscriptLayout = "2006-01-02 15:04:05"
