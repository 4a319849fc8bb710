package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	archivex "github.com/albayt/ordering-agent/agent/archive"
	"github.com/albayt/ordering-agent/agent/catalog"
	contractx "github.com/albayt/ordering-agent/agent/contract"
	llmx "github.com/albayt/ordering-agent/agent/llm"
	"github.com/albayt/ordering-agent/agent/orchestrator"
	promptx "github.com/albayt/ordering-agent/agent/prompt"
	statex "github.com/albayt/ordering-agent/agent/state"
	toolx "github.com/albayt/ordering-agent/agent/tool"
	configx "github.com/albayt/ordering-agent/pkg/config"
	_ "github.com/albayt/ordering-agent/pkg/logger/autoload"
	openrouterx "github.com/albayt/ordering-agent/pkg/openrouter"
	qstashx "github.com/albayt/ordering-agent/pkg/qstash"
)

type AppConfig struct {
	MenuPath      string        `envconfig:"MENU_PATH" split_words:"true" default:"data/menu.json"`
	CoveragePath  string        `envconfig:"COVERAGE_PATH" split_words:"true" default:"data/coverage_zones.json"`
	RedisURL      string        `envconfig:"REDIS_URL" split_words:"true"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" split_words:"true" default:"5m"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}

	index, err := catalog.LoadIndex(appCfg.MenuPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", appCfg.MenuPath).Msg("load menu")
	}
	log.Info().Int("items", index.Len()).Msg("menu loaded")
	coverage, err := catalog.LoadCoverage(appCfg.CoveragePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", appCfg.CoveragePath).Msg("load coverage zones")
	}

	openRouterClient := openrouterx.NewClient(llmCfg.OpenRouterFor(contractx.StageOrdering))
	if openRouterClient == nil {
		log.Fatal().Msg("failed to initialize openrouter client")
	}
	embedder := openrouterx.NewEmbeddingClient(openRouterClient, llmCfg.EmbeddingModel)

	resolver, err := catalog.NewResolver(ctx, index, embedder)
	if err != nil {
		log.Fatal().Err(err).Msg("build catalog resolver")
	}
	gateway := toolx.New(index, resolver, coverage)

	store := buildStore(appCfg)

	models := make(map[contractx.Stage]contractx.Inference, 4)
	for _, stage := range []contractx.Stage{
		contractx.StageGreeting, contractx.StageLocation,
		contractx.StageOrdering, contractx.StageCheckout,
	} {
		m, err := llmx.NewForStage(ctx, *llmCfg, stage)
		if err != nil {
			log.Fatal().Err(err).Str("stage", string(stage)).Msg("build stage model")
		}
		models[stage] = m
	}

	orchCfg := configx.MustNew[orchestrator.Config]("ORCHESTRATOR")
	orch, err := orchestrator.New(store, gateway, models, promptx.LoadPromptSet(), orchestrator.NewLogSink(), *orchCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	archiveCfg := configx.MustNew[archivex.Config]("ARCHIVE")
	arch, err := archivex.Open(ctx, *archiveCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open order archive")
	}
	orch.WithArchive(arch)
	defer arch.Close()

	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
	if qstashCfg.Enabled() {
		orch.WithNotifier(qstashx.MustNew(*qstashCfg))
	}

	go sweepLoop(ctx, orch, appCfg.SweepInterval)

	runREPL(ctx, orch)
}

func buildStore(cfg *AppConfig) statex.Store {
	if cfg.RedisURL == "" {
		return statex.NewMemoryStore()
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("parse redis url")
	}
	store, err := statex.NewRedisStore(redis.NewClient(opts))
	if err != nil {
		log.Fatal().Err(err).Msg("build redis store")
	}
	return store
}

func sweepLoop(ctx context.Context, orch *orchestrator.Orchestrator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := orch.SweepExpired(ctx); err != nil {
				log.Warn().Err(err).Msg("session sweep failed")
			}
		}
	}
}

// runREPL drives one local conversation on stdin, mainly for development.
func runREPL(ctx context.Context, orch *orchestrator.Orchestrator) {
	sessionID := fmt.Sprintf("local-%d", time.Now().Unix())
	fmt.Println("مطعم البيت العربي. اكتب رسالتك (exit للخروج):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return
		}
		result, err := orch.HandleMessage(ctx, sessionID, text)
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			continue
		}
		fmt.Println(result.Reply)
		if result.Stage == contractx.StageClosed {
			return
		}
	}
}
