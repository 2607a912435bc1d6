package main

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/starorg-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/starorg-cli/internal/connectors/github"
	"github.com/custodia-labs/starorg-cli/internal/core/services"
	"github.com/custodia-labs/starorg-cli/internal/logger"
	"github.com/custodia-labs/starorg-cli/internal/ratelimit"

	configfile "github.com/custodia-labs/starorg-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/starorg-cli/internal/adapters/driven/llm/openai"
	storagefile "github.com/custodia-labs/starorg-cli/internal/adapters/driven/storage/file"
)

func main() {
	cli.SetDepsFactory(buildDeps)
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildDeps wires the full service graph. Called lazily, so commands that
// need no services (version, help) run without credentials.
func buildDeps() (*cli.Deps, error) {
	ctx := context.Background()

	cfg, err := configfile.Load("")
	if err != nil {
		return nil, err
	}

	token, err := cfg.RequireGitHubToken()
	if err != nil {
		return nil, err
	}

	store := storagefile.NewStore()
	source := github.NewClient(ctx, token)
	lists := github.NewListsClient(ctx, token, ratelimit.New(ratelimit.Config{}))

	// The classifier is optional: sync-only and audit runs work without an
	// OpenAI key, and the pipeline rejects categorize phases on its own.
	var categorizer *services.Categorizer
	if key, keyErr := cfg.RequireOpenAIKey(); keyErr == nil {
		classifier, err := openai.New(openai.Config{
			APIKey:  key,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Limiter: ratelimit.New(ratelimit.Config{}),
		})
		if err != nil {
			return nil, err
		}
		categorizer = services.NewCategorizer(classifier, store, services.CategorizerConfig{
			MaxCategories: cfg.Categorize.MaxCategories,
			Workers:       cfg.Categorize.Workers,
			SaveEvery:     cfg.Categorize.SaveEvery,
		})
	} else {
		logger.Debug("classifier not configured: %v", keyErr)
	}

	syncer := services.NewSyncer(lists, store, services.SyncerConfig{
		ResolveBatchSize: cfg.Sync.ResolveBatchSize,
		AttachBatchSize:  cfg.Sync.AttachBatchSize,
		Workers:          cfg.Sync.Workers,
		SaveEvery:        cfg.Sync.SaveEvery,
	})

	return &cli.Deps{
		Organizer:         services.NewPipeline(source, store, categorizer, syncer),
		Auditor:           services.NewAuditor(source, store, 0),
		DefaultOutputPath: storagefile.DefaultPath(storagefile.DefaultOrganizedFile),
		DefaultStatePath:  storagefile.DefaultPath(storagefile.DefaultSyncStateFile),
	}, nil
}
