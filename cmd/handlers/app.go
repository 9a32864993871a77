package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"citydigest/internal/config"
	"citydigest/internal/curation"
	"citydigest/internal/health"
	"citydigest/internal/ingest"
	"citydigest/internal/narrative"
	"citydigest/internal/personalization"
	"citydigest/internal/pipeline"
	"citydigest/internal/selection"
	"citydigest/internal/sources"
	"citydigest/internal/store"
)

// app bundles the wired collaborators a command needs.
type app struct {
	cfg      *config.Config
	store    *store.Store
	registry *sources.Registry
	monitor  *health.Monitor
	orch     *pipeline.Orchestrator
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// buildApp wires the pipeline from configuration. The narrative client is
// only created when an API key is present; everything downstream treats a
// nil generator as "skip narrative".
func buildApp(ctx context.Context) (*app, error) {
	cfg := config.Get()

	st, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	registry, err := sources.LoadRegistry(cfg.Sources.RegistryFile)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load source registry: %w", err)
	}
	if err := ingest.RegisterAll(registry, st); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to register refreshers: %w", err)
	}

	breaker := health.NewCircuitBreaker(cfg.Health.FailureThreshold, config.Duration(cfg.Health.ResetTimeout))
	monitor := health.NewMonitor(registry, st, breaker).
		WithRetryConfig(health.RetryConfig{
			MaxRetries: cfg.Health.MaxRetries,
			BaseDelay:  config.Duration(cfg.Health.BaseDelay),
			MaxDelay:   config.Duration(cfg.Health.MaxDelay),
		}).
		WithHealing(cfg.Health.HealingThreshold, config.Duration(cfg.Health.HealingDelay))

	selector := selection.NewStage(st, selection.Config{
		MaxNews:          cfg.Selection.MaxNews,
		MaxAlerts:        cfg.Selection.MaxAlerts,
		MaxDeals:         cfg.Selection.MaxDeals,
		MaxEvents:        cfg.Selection.MaxEvents,
		MinQualityScore:  cfg.Selection.MinQualityScore,
		LookbackHours:    cfg.Selection.LookbackHours,
		UseEmbeddings:    cfg.Selection.UseEmbeddings,
		ClusterThreshold: cfg.Selection.ClusterThreshold,
	})

	var gen narrative.Generator
	if cfg.AI.Gemini.APIKey != "" && !cfg.Pipeline.SkipNarrative {
		client, err := narrative.NewClient(ctx, cfg.AI.Gemini.APIKey, cfg.AI.Gemini.Model,
			cfg.AI.Gemini.EmbeddingModel, config.Duration(cfg.AI.Gemini.Timeout))
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to create narrative client: %w", err)
		}
		gen = client
		if cfg.Selection.UseEmbeddings {
			selector.WithEmbedder(client)
		}
	}

	orch := pipeline.NewOrchestrator(monitor, selector).WithSaver(st)
	if gen != nil {
		orch.WithGenerator(gen)
	}
	if cfg.Curation.Enabled {
		orch.WithCuration(curation.NewStage(gen, curation.Config{
			MaxPerCategory: cfg.Curation.MaxPerCategory,
			MaxTotal:       cfg.Curation.MaxTotal,
			FuzzyThreshold: cfg.Curation.FuzzyThreshold,
			NarrativeTopN:  cfg.Curation.NarrativeTopN,
		}))
	}
	if cfg.Personalization.Enabled {
		profiles, err := personalization.LoadProfiles("profiles.yaml")
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				st.Close()
				return nil, fmt.Errorf("failed to load profiles: %w", err)
			}
			profiles = personalization.StaticProfiles{}
		}
		orch.WithPersonalization(personalization.NewStage(profiles, personalization.Config{
			BlendOriginal: cfg.Personalization.BlendOriginal,
			BlendPersonal: cfg.Personalization.BlendPersonal,
		}))
	}

	return &app{cfg: cfg, store: st, registry: registry, monitor: monitor, orch: orch}, nil
}

// runOptions derives the default pipeline options from configuration.
func (a *app) runOptions() pipeline.Options {
	return pipeline.Options{
		Curate:          a.cfg.Curation.Enabled,
		Personalize:     a.cfg.Personalization.Enabled,
		SkipNarrative:   a.cfg.Pipeline.SkipNarrative,
		AutoHeal:        a.cfg.Health.AutoHeal,
		AbortOnCritical: a.cfg.Pipeline.AbortOnCritical,
	}
}
