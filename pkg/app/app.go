// Package app wires configuration into a ready research chat service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/research-chat/pkg/agent"
	"github.com/mikeboe/research-chat/pkg/archive"
	"github.com/mikeboe/research-chat/pkg/chat"
	"github.com/mikeboe/research-chat/pkg/clients"
	"github.com/mikeboe/research-chat/pkg/config"
	"github.com/mikeboe/research-chat/pkg/database"
	"github.com/mikeboe/research-chat/pkg/export"
	"github.com/mikeboe/research-chat/pkg/prompt"
	"github.com/mikeboe/research-chat/pkg/research/tools"
	"github.com/mikeboe/research-chat/pkg/session"
)

type App struct {
	Config  *config.Config
	Chat    *chat.Service
	Archive *archive.Index
	Arxiv   *tools.ArxivClient
	// DB is nil unless DATABASE_URL is configured.
	DB *database.PostgresDB

	closers []func() error
}

// New builds the service graph. Sessions go to Postgres when DATABASE_URL is
// set, to Redis when REDIS_URL is set, and otherwise stay in memory.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.GoogleApiKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is not set")
	}
	a := &App{Config: cfg}

	repo, err := a.repository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	index, err := archive.New()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Archive = index
	a.closers = append(a.closers, index.Close)
	if cfg.DatabaseURL != "" || cfg.RedisURL != "" {
		// Persisted sessions outlive the in-memory index.
		index.SetLoader(func(ctx context.Context, id uuid.UUID) ([]session.GeneratedPaper, error) {
			store, err := repo.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			return store.Papers, nil
		})
	}

	a.Arxiv = tools.NewArxivClient()
	var ocr *tools.OCRClient
	if cfg.MistralApiKey != "" {
		ocr = tools.NewOCRClient(cfg.MistralApiKey)
	}
	toolbox := &agent.Toolbox{
		Arxiv:    a.Arxiv,
		Reader:   tools.NewPaperReader(ocr, cfg.ChunkSize, cfg.ChunkOverlap),
		Renderer: tools.NewLatexRenderer(cfg.PdflatexPath, cfg.OutputDir),
	}
	runner := agent.NewADKRunner(cfg.GoogleApiKey, map[prompt.ModelChoice]string{
		prompt.ModelPro:  cfg.ReasoningModel,
		prompt.ModelFast: cfg.FastModel,
	}, toolbox)

	var audio chat.AudioRenderer
	if synth, err := export.NewGeminiSynthesizer(ctx, cfg.GoogleApiKey, cfg.TTSModel, cfg.TTSVoice); err != nil {
		slog.Warn("Audio summaries disabled", "error", err)
	} else {
		audio = export.NewAudioExporter(synth, cfg.OutputDir)
	}

	var assist llms.Model
	if llm, err := clients.GoogleAi(ctx, cfg.GoogleApiKey, cfg.FastModel); err != nil {
		slog.Warn("Follow-up suggestions disabled", "error", err)
	} else {
		assist = llm
	}

	a.Chat = chat.NewService(repo, runner, audio, index, assist)
	return a, nil
}

func (a *App) repository(ctx context.Context) (session.Repository, error) {
	cfg := a.Config
	switch {
	case cfg.DatabaseURL != "":
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })
		if err := db.InitSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		a.DB = db
		slog.Info("Using Postgres session store")
		return session.NewPostgresRepository(db.Pool), nil
	case cfg.RedisURL != "":
		repo, err := session.NewRedisRepository(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo.Close)
		slog.Info("Using Redis session store")
		return repo, nil
	}
	slog.Info("Using in-memory session store", "ttl", cfg.SessionTTL)
	return session.NewMemoryRepository(cfg.SessionTTL), nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
