// Package discovery implements the convergent "what else do you need?" loop:
// the oracle names the files it wants, they are fetched and merged into a
// growing snapshot, and the loop stops when the oracle says it needs nothing
// more or the round cap is reached.
package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/autodev/internal/catalog"
	aerrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/extract"
	"github.com/p-blackswan/autodev/internal/llm"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/models"
)

// Sentinel is the case-insensitive phrase that ends the loop.
const Sentinel = "no more files"

// DefaultMaxRounds bounds a loop when no cap is configured.
const DefaultMaxRounds = 8

// Request is one discovery invocation.
type Request struct {
	// Root is the repository the catalog was listed from.
	Root string

	// Catalog is every identifier that exists.
	Catalog []string

	// Snapshot is grown in place. A nil Snapshot starts empty.
	Snapshot *models.Snapshot

	// Task frames what the context will be used for.
	Task string
}

// Result describes how a loop ended.
type Result struct {
	Snapshot *models.Snapshot
	Rounds   int

	// Fetched lists identifiers fetched by this invocation, in order.
	Fetched []string

	// Converged is true when the oracle sent the sentinel.
	Converged bool

	// Exhausted is true when the round cap ended the loop; the snapshot
	// holds whatever was gathered.
	Exhausted bool
}

// Loop runs discovery rounds against an oracle.
type Loop struct {
	oracle    llm.Oracle
	fetcher   catalog.Fetcher
	maxRounds int
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// New creates a discovery loop. maxRounds <= 0 uses DefaultMaxRounds.
func New(oracle llm.Oracle, fetcher catalog.Fetcher, maxRounds int, m *metrics.Metrics, logger zerolog.Logger) *Loop {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Loop{
		oracle:    oracle,
		fetcher:   fetcher,
		maxRounds: maxRounds,
		metrics:   m,
		logger:    logger.With().Str("component", "discovery").Logger(),
	}
}

// Run drives rounds until the sentinel, the round cap, or a fatal oracle
// error. Malformed responses are logged and spend a round without effect.
func (l *Loop) Run(ctx context.Context, req Request) (*Result, error) {
	snap := req.Snapshot
	if snap == nil {
		snap = models.NewSnapshot()
	}
	known := make(map[string]bool, len(req.Catalog))
	for _, id := range req.Catalog {
		known[id] = true
	}

	res := &Result{Snapshot: snap}
	for res.Rounds < l.maxRounds {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Rounds++
		log := l.logger.With().Int("round", res.Rounds).Logger()

		text, err := l.oracle.Generate(ctx, buildPrompt(req, snap), systemPrompt)
		if err != nil {
			return res, fmt.Errorf("discovery round %d: %w", res.Rounds, err)
		}
		if strings.TrimSpace(text) == "" {
			return res, fmt.Errorf("discovery round %d: %w", res.Rounds, aerrors.ErrNoResponse)
		}

		ids, parsed := identifiers(text)
		if hasSentinel(text, parsed) {
			res.Converged = true
			l.metrics.RecordRound("discovery", "done")
			log.Debug().Int("files", snap.Len()).Msg("oracle needs no more files")
			return res, nil
		}
		if parsed == nil {
			l.metrics.RecordRound("discovery", "noop")
			l.metrics.RecordExtractionFailure("discovery")
			log.Warn().Str("response", truncate(text, 200)).Msg("no file list in response, retrying")
			continue
		}

		fetched := l.merge(req, snap, known, ids)
		res.Fetched = append(res.Fetched, fetched...)
		if len(fetched) == 0 {
			l.metrics.RecordRound("discovery", "noop")
		} else {
			l.metrics.RecordRound("discovery", "fetched")
		}
		log.Debug().Strs("requested", ids).Strs("fetched", fetched).Msg("discovery round")
	}

	res.Exhausted = true
	l.metrics.RecordRound("discovery", "exhausted")
	l.logger.Warn().
		Int("rounds", res.Rounds).
		Int("files", snap.Len()).
		Msg("discovery round cap reached, proceeding with partial context")
	return res, nil
}

// merge fetches net-new identifiers. Every named identifier is recorded as
// requested; ones the catalog does not know are rejected, never fetched.
func (l *Loop) merge(req Request, snap *models.Snapshot, known map[string]bool, ids []string) []string {
	var fetched []string
	for _, id := range ids {
		if snap.IsRequested(id) {
			continue
		}
		if !known[id] {
			snap.MarkRequested(id)
			snap.Reject(id)
			l.logger.Warn().Str("path", id).Msg("oracle requested unknown file")
			continue
		}
		snap.Put(id, l.fetcher.Read(req.Root, id))
		fetched = append(fetched, id)
	}
	return fetched
}

// identifiers extracts the array of requested identifiers. parsed is the
// raw array span, nil when the response carried no array.
func identifiers(text string) (ids []string, parsed *extract.Result) {
	res, err := extract.Extract(text)
	if err != nil || res.Shape != extract.ShapeArray {
		return nil, nil
	}
	var items []any
	if err := res.Decode(&items); err != nil {
		return nil, nil
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		s = normalize(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		ids = append(ids, s)
	}
	return ids, res
}

// hasSentinel matches the sentinel outside any returned array, so a file
// path that happens to contain the phrase does not end the loop.
func hasSentinel(text string, parsed *extract.Result) bool {
	if parsed != nil {
		text = strings.Replace(text, string(parsed.Raw), "", 1)
	}
	return strings.Contains(strings.ToLower(text), Sentinel)
}

func normalize(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "./")
	return strings.ReplaceAll(id, "\\", "/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
