// Package notes hands the Notes database to an external converter.
package notes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ilexum-group/iosextract/internal/utils"
)

// OutputDir is the directory below the output root the converter writes to.
const OutputDir = "Notes"

// ErrNoCommand is returned when no converter command is configured.
var ErrNoCommand = errors.New("no notes converter configured")

// Converter turns a NoteStore.sqlite database into files under outDir.
type Converter interface {
	Convert(ctx context.Context, dbPath, outDir string) error
}

// ExternalConverter runs a command as `<command> <dbPath> <outDir>`.
// Command may carry leading arguments separated by spaces.
type ExternalConverter struct {
	Command string
}

// Convert runs the command and waits for it to exit.
func (c ExternalConverter) Convert(ctx context.Context, dbPath, outDir string) error {
	fields := strings.Fields(c.Command)
	if len(fields) == 0 {
		return ErrNoCommand
	}
	args := append(fields[1:], dbPath, outDir)

	//nolint:gosec // G204: the command is the operator's own configuration
	cmd := exec.CommandContext(ctx, fields[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", fields[0], err, detail)
		}
		return fmt.Errorf("%s: %w", fields[0], err)
	}
	return nil
}

// Export runs conv over dbPath with outputRoot/Notes as the destination.
func Export(ctx context.Context, conv Converter, dbPath, outputRoot string, dryRun bool) (string, error) {
	outDir := filepath.Join(outputRoot, OutputDir)
	if dryRun {
		utils.LogInfo("Notes conversion planned", map[string]string{"db": dbPath, "output": outDir})
		return outDir, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return outDir, fmt.Errorf("create notes directory: %w", err)
	}
	if err := conv.Convert(ctx, dbPath, outDir); err != nil {
		return outDir, fmt.Errorf("convert notes: %w", err)
	}
	utils.LogInfo("Notes converted", map[string]string{"db": dbPath, "output": outDir})
	return outDir, nil
}
