package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/p-blackswan/autodev/internal/catalog"
	"github.com/p-blackswan/autodev/internal/config"
	"github.com/p-blackswan/autodev/internal/develop"
	aerrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/health"
	"github.com/p-blackswan/autodev/internal/llm"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/models"
	"github.com/p-blackswan/autodev/internal/prompt"
	"github.com/p-blackswan/autodev/internal/retry"
	"github.com/p-blackswan/autodev/internal/session"
	"github.com/p-blackswan/autodev/internal/status"
	"github.com/p-blackswan/autodev/internal/testrun"
	"github.com/p-blackswan/autodev/internal/vcs"
	"github.com/p-blackswan/autodev/internal/workspace"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailed      = 1
	exitMaxReached  = 2
	exitUnexpected  = 3
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	// Stdout carries questions and the report; logs go to stderr.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load config")
		return exitFailed
	}
	if cfg.IsDevelopment() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Logger = logger

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid config")
		return exitFailed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	asker := prompt.NewLineAsker(os.Stdin, os.Stdout)
	req, err := requirements(ctx, cfg, asker)
	if err != nil {
		logger.Error().Err(err).Msg("no requirement")
		return exitFailed
	}

	m := metrics.New()
	provider := newProvider(cfg, logger)
	oracle := llm.NewClient(provider, logger,
		llm.WithTimeout(cfg.OracleTimeout),
		llm.WithRetry(retryConfig(cfg.OracleRetries)),
		llm.WithMetrics(m),
	)
	git := vcs.New(logger, vcs.WithTimeout(cfg.GitTimeout))

	logger.Info().
		Str("environment", cfg.Environment).
		Str("provider", provider.Name()).
		Str("model", provider.ModelID()).
		Str("repo", req.RepoPath).
		Bool("status_enabled", cfg.StatusEnabled()).
		Msg("starting autodev")

	tracker := status.NewTracker("")
	sess := session.New(session.Options{
		SkipClarify:        cfg.SkipClarify,
		PlanFile:           cfg.PlanFile,
		TestCommand:        cfg.TestCommand,
		CommitMessage:      cfg.CommitMessage,
		MaxIterations:      cfg.MaxIterations,
		DiscoveryMaxRounds: cfg.DiscoveryMaxRounds,
		ClarifyMaxRounds:   cfg.ClarifyMaxRounds,
	}, session.Deps{
		Oracle:  oracle,
		Asker:   asker,
		Catalog: catalog.New(logger),
		Repo:    git,
		Applier: workspace.New(m, logger),
		Tests:   testrun.New(logger, testrun.WithTimeout(cfg.TestTimeout), testrun.WithMetrics(m)),
		Metrics: m,
		Tracker: tracker,
		Out:     os.Stdout,
	}, logger)

	// The status server is optional: a bind failure is reported up front and
	// a serve failure is logged. Neither interrupts the session.
	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	var g errgroup.Group
	if cfg.StatusEnabled() {
		checker := health.NewChecker(logger)
		checker.Register("repo", health.RepoCheck(req.RepoPath, git.IsRepo))
		checker.Register("oracle", health.OracleCheck(provider.Name(), provider.ModelID()))
		srv := status.NewServer(cfg.StatusAddr, tracker, checker, m, logger)
		if err := srv.Listen(); err != nil {
			logger.Warn().Err(err).Msg("status server disabled")
		} else {
			g.Go(func() error { return srv.Run(srvCtx) })
		}
	}

	report, err := sess.Run(ctx, req)
	stopServer()
	if serr := g.Wait(); serr != nil {
		logger.Warn().Err(serr).Msg("status server stopped with error")
	}

	if report != nil {
		fmt.Fprintln(os.Stdout)
		if werr := report.Write(os.Stdout); werr != nil {
			logger.Warn().Err(werr).Msg("could not write report")
		}
	}
	code := exitCode(report, err)
	switch code {
	case exitInterrupted:
		logger.Warn().Msg("session interrupted")
	case exitFailed:
		logger.Error().Err(err).Msg("session failed")
	case exitUnexpected:
		logger.Error().Err(err).Msg("session failed with unexpected error")
	}
	return code
}

// exitCode maps a finished session to the process exit status. Cancellation
// is checked first because IsFatal also covers it.
func exitCode(report *session.Report, err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case aerrors.IsFatal(err):
		return exitFailed
	case err != nil:
		return exitUnexpected
	case report != nil && report.Outcome == develop.OutcomeMaxReached:
		return exitMaxReached
	}
	return exitOK
}

// requirements builds the session input from config, falling back to the
// command line and then to asking.
func requirements(ctx context.Context, cfg *config.Config, asker prompt.Asker) (*models.Requirements, error) {
	req := &models.Requirements{
		Description:        cfg.Requirement,
		RepoPath:           cfg.RepoPath,
		Title:              cfg.ProjectTitle,
		ProjectDescription: cfg.ProjectDescription,
	}
	if req.Description == "" && len(os.Args) > 1 {
		req.Description = strings.Join(os.Args[1:], " ")
	}
	var err error
	if req.Description == "" {
		if req.Description, err = asker.Ask(ctx, "What should be built?"); err != nil {
			return nil, err
		}
	}
	if req.RepoPath == "" {
		if req.RepoPath, err = asker.Ask(ctx, "Path to the repository:"); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, errors.New("requirement is empty")
	}
	return req, nil
}

func newProvider(cfg *config.Config, logger zerolog.Logger) llm.Provider {
	if strings.EqualFold(cfg.Provider, config.ProviderOpenAI) {
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}, logger)
	}
	return llm.NewAnthropicProvider(cfg.AnthropicAPIKey, logger,
		llm.WithModel(cfg.Model),
		llm.WithMaxTokens(cfg.MaxTokens),
	)
}

func retryConfig(retries int) retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = retries + 1
	return rc
}
