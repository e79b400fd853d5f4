// Package workspace writes ChangeSets into the repository working tree.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/autodev/internal/catalog"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/models"
)

// Applier writes full-content replacements file by file.
type Applier struct {
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates an Applier.
func New(m *metrics.Metrics, logger zerolog.Logger) *Applier {
	return &Applier{metrics: m, logger: logger.With().Str("component", "workspace").Logger()}
}

// Apply writes every entry of cs under root, creating parent directories.
// It is not transactional: a failing entry is recorded and the rest are
// still written. Paths that are absolute or leave root are refused.
func (a *Applier) Apply(root string, cs models.ChangeSet) models.ApplyReport {
	var report models.ApplyReport
	for _, rel := range cs.Paths() {
		content := cs[rel]
		res := models.FileResult{Path: rel}
		if err := write(root, rel, content); err != nil {
			res.Err = err
			a.logger.Warn().Err(err).Str("path", rel).Msg("could not write file")
		} else {
			res.Bytes = len(content)
		}
		report.Results = append(report.Results, res)
	}

	failed := len(report.Failed())
	a.metrics.RecordFiles(len(report.Results)-failed, failed)
	a.logger.Info().
		Int("written", len(report.Results)-failed).
		Int("failed", failed).
		Msg("change set applied")
	return report
}

func write(root, rel, content string) error {
	full, err := catalog.Resolve(root, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}
