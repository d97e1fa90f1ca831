package models

import (
	"crypto/md5"  //nolint:gosec // MD5 used for forensic verification, not security
	"crypto/sha1" //nolint:gosec // SHA1 used for forensic verification, not security
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// ExtractionReport records one run of the extractor so the output tree can
// be traced back to the catalog it was built from.
type ExtractionReport struct {
	// Unique identifier for this run (UUID v4)
	ID string `json:"id"`

	ToolName    string `json:"tool_name"`
	ToolVersion string `json:"tool_version"`
	Hostname    string `json:"hostname"`

	BackupRoot string `json:"backup_root"`
	OutputRoot string `json:"output_root"`
	DryRun     bool   `json:"dry_run"`

	StartTimestamp time.Time `json:"start_timestamp"`
	EndTimestamp   time.Time `json:"end_timestamp"`
	Duration       string    `json:"duration"`

	// Hashes of the catalog database the run read from
	CatalogMD5    string `json:"catalog_md5"`
	CatalogSHA1   string `json:"catalog_sha1"`
	CatalogSHA256 string `json:"catalog_sha256"`
	CatalogSize   int64  `json:"catalog_size_bytes"`

	Passes        []PassStats    `json:"passes"`
	Phases        []PhaseOutcome `json:"phases"`
	ResolvedCount int            `json:"resolved_count"`

	// RFC 5424 lines emitted during the run
	LogEntries []string `json:"log_entries"`
}

// PhaseOutcome records what happened to a post-media export phase.
type PhaseOutcome struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // done, skipped, failed
	Written int    `json:"written"`
	Detail  string `json:"detail,omitempty"`
}

// Phase statuses.
const (
	PhaseDone    = "done"
	PhaseSkipped = "skipped"
	PhaseFailed  = "failed"
)

// NewExtractionReport creates a report stamped with a fresh id and start time.
func NewExtractionReport(toolName, version string) *ExtractionReport {
	return &ExtractionReport{
		ID:             uuid.New().String(),
		ToolName:       toolName,
		ToolVersion:    version,
		StartTimestamp: time.Now().UTC(),
		Passes:         make([]PassStats, 0),
		Phases:         make([]PhaseOutcome, 0),
		LogEntries:     make([]string, 0),
	}
}

// HashCatalog reads the catalog from reader and records its size and hashes.
func (r *ExtractionReport) HashCatalog(reader io.Reader) error {
	md5Hash := md5.New()   //nolint:gosec // G401: MD5 for forensic verification, not security
	sha1Hash := sha1.New() //nolint:gosec // G401: SHA1 for forensic verification, not security
	sha256Hash := sha256.New()

	size, err := io.Copy(io.MultiWriter(md5Hash, sha1Hash, sha256Hash), reader)
	if err != nil {
		return fmt.Errorf("failed to read and hash catalog: %w", err)
	}

	r.CatalogSize = size
	r.CatalogMD5 = hex.EncodeToString(md5Hash.Sum(nil))
	r.CatalogSHA1 = hex.EncodeToString(sha1Hash.Sum(nil))
	r.CatalogSHA256 = hex.EncodeToString(sha256Hash.Sum(nil))
	return nil
}

// AddPhase appends the outcome of an export phase.
func (r *ExtractionReport) AddPhase(name, status string, written int, detail string) {
	r.Phases = append(r.Phases, PhaseOutcome{Name: name, Status: status, Written: written, Detail: detail})
}

// Finalize stamps the end time and attaches the captured log lines.
func (r *ExtractionReport) Finalize(logs []string) {
	r.EndTimestamp = time.Now().UTC()
	r.Duration = r.EndTimestamp.Sub(r.StartTimestamp).String()
	r.LogEntries = append(r.LogEntries, logs...)
}
