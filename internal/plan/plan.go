// Package plan turns clarified requirements into a structured delivery plan.
package plan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/p-blackswan/autodev/internal/catalog"
	"github.com/p-blackswan/autodev/internal/discovery"
	aerrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/extract"
	"github.com/p-blackswan/autodev/internal/llm"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/models"
)

// Discoverer gathers repository context for a task.
type Discoverer interface {
	Run(ctx context.Context, req discovery.Request) (*discovery.Result, error)
}

// Result is a synthesized plan plus the context it was built from. The
// snapshot is handed on to development so files are not fetched twice.
type Result struct {
	Plan     *models.DeliveryPlan
	Snapshot *models.Snapshot
	Loaded   bool
}

// Synthesizer produces a DeliveryPlan with one oracle call.
type Synthesizer struct {
	oracle    llm.Oracle
	discovery Discoverer
	lister    catalog.Lister
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// New creates a Synthesizer.
func New(oracle llm.Oracle, d Discoverer, lister catalog.Lister, m *metrics.Metrics, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		oracle:    oracle,
		discovery: d,
		lister:    lister,
		metrics:   m,
		logger:    logger.With().Str("component", "plan").Logger(),
	}
}

// Synthesize gathers context and asks for a plan. The decoded plan is not
// validated beyond its JSON shape.
func (s *Synthesizer) Synthesize(ctx context.Context, req *models.Requirements, snap *models.Snapshot) (*Result, error) {
	if err := req.RequireRepo(); err != nil {
		return nil, err
	}

	ids, err := s.lister.List(req.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("plan: listing %s: %w", req.RepoPath, err)
	}
	disc, err := s.discovery.Run(ctx, discovery.Request{
		Root:     req.RepoPath,
		Catalog:  ids,
		Snapshot: snap,
		Task:     "Write a delivery plan for this requirement:\n" + req.Render(),
	})
	if err != nil {
		return nil, fmt.Errorf("plan context: %w", err)
	}

	text, err := s.oracle.Generate(ctx, buildPrompt(req, disc.Snapshot), systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("plan: %w", aerrors.ErrNoResponse)
	}

	p, err := decode(text)
	if err != nil {
		s.metrics.RecordExtractionFailure("plan")
		return nil, err
	}

	s.logger.Info().
		Str("title", p.Title).
		Int("steps", len(p.Steps)).
		Int("context_files", disc.Snapshot.Len()).
		Msg("delivery plan synthesized")
	return &Result{Plan: p, Snapshot: disc.Snapshot}, nil
}

// LoadOrSynthesize reuses the plan at path when it exists and otherwise
// synthesizes one and writes it there. An empty path always synthesizes.
func (s *Synthesizer) LoadOrSynthesize(ctx context.Context, req *models.Requirements, snap *models.Snapshot, path string) (*Result, error) {
	if path != "" {
		p, err := Load(path)
		switch {
		case err == nil:
			s.logger.Info().Str("path", path).Msg("reusing saved plan")
			if snap == nil {
				snap = models.NewSnapshot()
			}
			return &Result{Plan: p, Snapshot: snap, Loaded: true}, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	res, err := s.Synthesize(ctx, req, snap)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := Save(path, res.Plan); err != nil {
			return nil, err
		}
		s.logger.Debug().Str("path", path).Msg("plan saved")
	}
	return res, nil
}

func decode(text string) (*models.DeliveryPlan, error) {
	res, err := extract.Extract(text)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	if res.Shape != extract.ShapeObject {
		return nil, fmt.Errorf("plan: %w", &aerrors.ExtractionError{Reason: "expected a JSON object, got an array"})
	}
	var p models.DeliveryPlan
	if err := res.Decode(&p); err != nil {
		return nil, fmt.Errorf("plan: %w", &aerrors.ExtractionError{Reason: err.Error()})
	}
	return &p, nil
}

// Save writes the plan as YAML, creating parent directories.
func Save(path string, p *models.DeliveryPlan) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("saving plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("saving plan: %w", err)
	}
	return nil
}

// Load reads a plan written by Save.
func Load(path string) (*models.DeliveryPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading plan: %w", err)
	}
	var p models.DeliveryPlan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding plan %s: %w", path, err)
	}
	return &p, nil
}
