package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"regai/internal/config"
	"regai/internal/index"
	"regai/internal/knowledge"
	"regai/internal/llm"
	"regai/internal/logging"
	"regai/internal/pipeline"
	"regai/internal/selector"
	"regai/internal/store"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "regai",
		Short: "LLM-driven rubric grading with human-in-the-loop calibration",
		Long: `regai grades student submissions against weighted rubrics through a
grade-critique-revise cycle, anchored by human-approved examples retrieved
from a similarity index.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./regai.yaml)")

	root.AddCommand(
		newAssignmentCmd(),
		newSubmitCmd(),
		newGradeCmd(),
		newApproveCmd(),
		newOverrideCmd(),
	)
	return root
}

// app bundles the wired collaborators every command needs.
type app struct {
	cfg       *config.Config
	store     *store.Store
	index     *index.Index
	knowledge *knowledge.Service
	logger    logging.Logger
}

// newApp wires the persistence side. Commands that talk to the model add the
// LLM client on top via newPipeline.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		logging.SetLevel(level)
	}
	logger := logging.NewComponentLogger("cli")

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	embedder, err := index.NewEmbedder(index.EmbedderConfig{
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		CacheSize: cfg.Embedding.CacheSize,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	idx, err := index.New(index.Config{
		PersistPath: cfg.Index.PersistPath,
		Collection:  cfg.Index.Collection,
	}, embedder)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		store:     st,
		index:     idx,
		knowledge: knowledge.NewService(st, idx, logging.NewComponentLogger("knowledge")),
		logger:    logger,
	}, nil
}

func (a *app) close() {
	a.store.Close()
}

// newPipeline builds the grading pipeline for one assignment, with retrying
// LLM transport and example retrieval attached.
func (a *app) newPipeline(assignment *store.Assignment) (*pipeline.Pipeline, error) {
	if a.cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("llm.api_key is not set (REGAI_LLM_API_KEY)")
	}
	client := llm.NewOpenAIClient(a.cfg.LLM.Model, llm.Config{
		APIKey:  a.cfg.LLM.APIKey,
		BaseURL: a.cfg.LLM.BaseURL,
		Timeout: int(a.cfg.LLM.Timeout / time.Second),
	})
	retryCfg := llm.DefaultRetryConfig()
	if a.cfg.LLM.MaxAttempts > 0 {
		retryCfg.MaxAttempts = a.cfg.LLM.MaxAttempts - 1
	}
	client = llm.NewRetryClient(client, retryCfg)

	retriever := selector.NewRetriever(a.index, a.store, a.cfg.Selector.FetchK,
		logging.NewComponentLogger("retriever"))

	return pipeline.New(assignment, pipeline.Deps{
		LLM:       client,
		Store:     a.store,
		Retriever: retriever,
		Knowledge: a.knowledge,
		Logger:    logging.NewComponentLogger("pipeline"),
	}, pipeline.Config{
		MaxIterations:   a.cfg.Cycle.MaxIterations,
		TopK:            a.cfg.Cycle.TopK,
		MaxOutputTokens: a.cfg.Cycle.MaxOutputTokens,
		DefaultAnchor:   a.cfg.Cycle.DefaultAnchor,
	})
}
