package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/quill/internal/action"
	"github.com/ChamsBouzaiene/quill/internal/chunker"
	"github.com/ChamsBouzaiene/quill/internal/config"
	"github.com/ChamsBouzaiene/quill/internal/embeddings"
	"github.com/ChamsBouzaiene/quill/internal/history"
	"github.com/ChamsBouzaiene/quill/internal/project"
	"github.com/ChamsBouzaiene/quill/internal/prompts"
	"github.com/ChamsBouzaiene/quill/internal/providers"
	"github.com/ChamsBouzaiene/quill/internal/retrieval"
	"github.com/ChamsBouzaiene/quill/internal/tags"
	"github.com/ChamsBouzaiene/quill/internal/vault"
	"github.com/ChamsBouzaiene/quill/internal/vectorstore"
	"github.com/ChamsBouzaiene/quill/internal/workspace"
)

// runtimeEnv holds everything one command invocation owns. Nothing in it
// outlives the command.
type runtimeEnv struct {
	Config      *config.Config
	Manager     *config.Manager
	Vault       *vault.Vault
	Tags        *tags.Cache
	Actions     *prompts.ActionRegistry
	Pipeline    *prompts.Pipeline
	Retrieval   *retrieval.Orchestrator
	Embedder    vectorstore.Embedder
	History     *history.Store
	VaultSystem string

	closers []func() error
}

func (r *runtimeEnv) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			logger.Warn("failed to release resource", zap.Error(err))
		}
	}
}

func loadConfig() (*config.Manager, *config.Config, error) {
	var manager *config.Manager
	if configDir != "" {
		manager = config.NewManagerAt(configDir)
	} else {
		var err error
		if manager, err = config.NewManager(); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := manager.Load()
	if err != nil {
		return nil, nil, err
	}
	config.ApplyEnv(cfg, os.Getenv)
	return manager, cfg, nil
}

func resolveVaultRoot(cfg *config.Config) (string, error) {
	root := vaultFlag
	if root == "" {
		root = cfg.VaultPath
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		found, kind, err := workspace.FindVaultRoot(wd)
		if err != nil {
			return "", err
		}
		logger.Debug("detected vault", zap.String("root", found), zap.String("type", string(kind)))
		return found, nil
	}
	return filepath.Abs(root)
}

// prepareRuntimeEnv opens the vault and wires the collaborators. Retrieval
// problems only disable retrieval; they never fail the command.
func prepareRuntimeEnv(ctx context.Context, withRetrieval bool) (*runtimeEnv, error) {
	manager, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	root, err := resolveVaultRoot(cfg)
	if err != nil {
		return nil, err
	}

	vaultCfg, err := project.LoadConfig(root)
	if err != nil {
		logger.Warn("ignoring vault config", zap.Error(err))
		vaultCfg = nil
	}
	var exclude []string
	if vaultCfg != nil {
		exclude = vaultCfg.Exclude
	}

	v, err := vault.Open(root, vault.Config{Exclude: exclude, Logger: logger})
	if err != nil {
		return nil, err
	}
	logger.Info("vault opened", zap.String("root", v.Root()))

	system, err := project.LoadSystemPrompt(root)
	if err != nil {
		logger.Warn("ignoring vault system prompt", zap.Error(err))
	}

	actions := prompts.DefaultRegistry()
	if cfg.ActionsFile != "" {
		n, err := actions.LoadFile(cfg.ActionsFile)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded actions", zap.Int("count", n), zap.String("file", cfg.ActionsFile))
	}

	env := &runtimeEnv{
		Config:      cfg,
		Manager:     manager,
		Vault:       v,
		Tags:        tags.NewCache(v, tags.Options{Logger: logger}),
		Actions:     actions,
		Pipeline:    prompts.NewPipeline(prompts.PipelineConfig{Logger: logger}),
		History:     history.NewStore(manager.Dir()),
		VaultSystem: system,
	}

	if !withRetrieval {
		return env, nil
	}
	if !vaultCfg.Retrieval(cfg.Retrieval.IsEnabled()) {
		logger.Info("retrieval disabled")
		return env, nil
	}

	cachePath := cfg.Embedding.CachePath
	if cachePath == "" {
		cachePath = manager.DefaultCachePath()
	}
	embedder, closeEmbedder, err := embeddings.New(ctx, embeddings.Options{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		CachePath: cachePath,
		Logger:    logger,
	})
	if err != nil {
		logger.Warn("embeddings unavailable, retrieval disabled", zap.Error(err))
		return env, nil
	}
	env.closers = append(env.closers, closeEmbedder)
	env.Embedder = embedder

	r := cfg.Retrieval
	env.Retrieval = retrieval.New(retrieval.Config{
		Graph:    v,
		Progress: &stderrProgress{},
		Errors:   stderrErrors{},
		Chunker:  chunker.Config{MaxChars: r.ChunkSize, Overlap: r.Overlap},
		Store: vectorstore.Config{
			BatchSize:       r.BatchSize,
			Concurrency:     r.Concurrency,
			MaxContextChars: r.MaxContextChars,
		},
		MaxDepth:         r.MaxDepth,
		IncludeBacklinks: r.IncludeBacklinks,
		MaxDocuments:     r.MaxDocuments,
		Logger:           logger,
	})
	return env, nil
}

// newRunner builds the action runner. It needs a configured inference provider.
func (r *runtimeEnv) newRunner() (*action.Runner, error) {
	p := r.Config.Provider
	provider, err := providers.New(providers.Options{
		Name:    p.Name,
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Model:   p.Model,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	cfg := action.Config{
		Provider:    provider,
		Pipeline:    r.Pipeline,
		Embedder:    r.Embedder,
		Tags:        r.Tags,
		History:     r.History,
		VaultPath:   r.Vault.Root(),
		VaultSystem: r.VaultSystem,
		Display:     r.Config.Display,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Logger:      logger,
	}
	// A nil *Orchestrator in the interface would not compare equal to nil.
	if r.Retrieval != nil {
		cfg.Retrieval = r.Retrieval
	}
	return action.NewRunner(cfg)
}
