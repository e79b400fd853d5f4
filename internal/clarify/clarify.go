// Package clarify resolves ambiguity in a requirement by letting the oracle
// ask the user one question at a time until it has no more.
package clarify

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	aerrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/llm"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/models"
	"github.com/p-blackswan/autodev/internal/prompt"
)

// Marker is the case-insensitive substring that signals another question.
const Marker = "question:"

// DefaultMaxRounds bounds the loop when no cap is configured.
const DefaultMaxRounds = 10

var questionLine = regexp.MustCompile(`(?i)question:[ \t]*([^\r\n]*\S)`)

const systemPrompt = `You review software requirements before work starts.
If something important is ambiguous, ask exactly one question on a line of the form "Question: <text>".
If nothing needs clarifying, reply "No further questions" and do not use the word question followed by a colon.`

// Result describes how clarification ended.
type Result struct {
	Rounds    int
	Asked     int
	Skipped   bool
	Exhausted bool
}

// Clarifier runs the question/answer loop.
type Clarifier struct {
	oracle    llm.Oracle
	asker     prompt.Asker
	maxRounds int
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// New creates a Clarifier. maxRounds <= 0 uses DefaultMaxRounds.
func New(oracle llm.Oracle, asker prompt.Asker, maxRounds int, m *metrics.Metrics, logger zerolog.Logger) *Clarifier {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Clarifier{
		oracle:    oracle,
		asker:     asker,
		maxRounds: maxRounds,
		metrics:   m,
		logger:    logger.With().Str("component", "clarify").Logger(),
	}
}

// Run appends answered questions to req. With skip set the requirement is
// used verbatim and the oracle is not consulted.
func (c *Clarifier) Run(ctx context.Context, req *models.Requirements, skip bool) (*Result, error) {
	res := &Result{}
	if skip {
		res.Skipped = true
		c.logger.Info().Msg("clarification skipped")
		return res, nil
	}

	for res.Rounds < c.maxRounds {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Rounds++
		log := c.logger.With().Int("round", res.Rounds).Logger()

		text, err := c.oracle.Generate(ctx, buildPrompt(req), systemPrompt)
		if err != nil {
			return res, fmt.Errorf("clarify round %d: %w", res.Rounds, err)
		}
		if strings.TrimSpace(text) == "" {
			return res, fmt.Errorf("clarify round %d: %w", res.Rounds, aerrors.ErrNoResponse)
		}

		if !strings.Contains(strings.ToLower(text), Marker) {
			c.metrics.RecordRound("clarify", "done")
			log.Info().Int("asked", res.Asked).Msg("requirement clarified")
			return res, nil
		}

		question, ok := ParseQuestion(text)
		if !ok {
			c.metrics.RecordRound("clarify", "noop")
			log.Warn().Msg("question marker without a question, retrying")
			continue
		}

		answer, err := c.asker.Ask(ctx, question)
		if err != nil {
			return res, fmt.Errorf("clarify: asking user: %w", err)
		}
		req.AddClarification(question, answer)
		res.Asked++
		c.metrics.RecordRound("clarify", "asked")
		log.Debug().Str("question", question).Msg("clarification recorded")
	}

	res.Exhausted = true
	c.metrics.RecordRound("clarify", "exhausted")
	c.logger.Warn().Int("rounds", res.Rounds).Int("asked", res.Asked).Msg("clarification round cap reached, continuing with answers so far")
	return res, nil
}

// ParseQuestion returns the text following the first "Question:" up to the
// end of that line.
func ParseQuestion(text string) (string, bool) {
	m := questionLine.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func buildPrompt(req *models.Requirements) string {
	var b strings.Builder
	b.WriteString(req.Render())
	b.WriteString("\nIs anything still ambiguous? Ask one question, or reply that there are no further questions.")
	return b.String()
}
