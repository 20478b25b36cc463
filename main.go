package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mechanigo/chatbot/agent/llm"
	"github.com/mechanigo/chatbot/agent/orchestrator"
	"github.com/mechanigo/chatbot/agent/prompt"
	"github.com/mechanigo/chatbot/agent/session"
	"github.com/mechanigo/chatbot/agent/store"
	"github.com/mechanigo/chatbot/agent/tool"
	"github.com/mechanigo/chatbot/api"
	configx "github.com/mechanigo/chatbot/pkg/config"
	_ "github.com/mechanigo/chatbot/pkg/logger/autoload"
	"github.com/mechanigo/chatbot/pkg/metrics"
	openaix "github.com/mechanigo/chatbot/pkg/openaix"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openaiCfg := configx.MustNew[openaix.Config]("OPENAI")
	client := openaix.NewClient(*openaiCfg)
	if client == nil {
		log.Fatal().Msg("openai client could not be initialized, check OPENAI_API_KEY")
	}

	storeCfg := configx.MustNew[store.Config]("POSTGRES")
	db, err := store.NewDB(*storeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer db.Close()

	pg := store.NewPostgres(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema setup failed")
	}

	prompts := prompt.LoadPromptSet()
	llmCfg := configx.MustNew[llm.Config]("LLM")

	completer, err := llm.NewCompleter(client, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("completer setup failed")
	}
	guard, err := llm.NewGuardrail(client, *llmCfg, prompts.Guardrail)
	if err != nil {
		log.Fatal().Err(err).Msg("guardrail setup failed")
	}
	knowledge, err := llm.NewKnowledgeBase(client, *llmCfg, prompts.Knowledge)
	if err != nil {
		log.Fatal().Err(err).Msg("knowledge base setup failed")
	}
	faq, err := llm.NewKnowledgeBase(client, *llmCfg, prompts.FAQ)
	if err != nil {
		log.Fatal().Err(err).Msg("faq base setup failed")
	}

	registry := tool.NewRegistry()
	if err := tool.RegisterBuiltins(registry, knowledge, faq); err != nil {
		log.Fatal().Err(err).Msg("tool registration failed")
	}

	histories := func(sessionID string) (*session.History, error) {
		return session.NewHistory(sessionID, pg)
	}

	agg := metrics.NewAggregator()
	orchCfg := configx.MustNew[orchestrator.Config]("ORCHESTRATOR")
	orch, err := orchestrator.New(
		*orchCfg,
		registry,
		completer,
		guard,
		pg,
		histories,
		agg,
		prompts,
		registry.ListNames(tool.ScopeDefault, false),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator setup failed")
	}

	apiCfg := configx.MustNew[api.Config]("API")
	srv, err := api.NewServer(*apiCfg, orch, agg)
	if err != nil {
		log.Fatal().Err(err).Msg("api server setup failed")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}
