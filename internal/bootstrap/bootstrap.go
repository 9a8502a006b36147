package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anny-whatever/frappeDocChat/internal/config"
	"github.com/anny-whatever/frappeDocChat/internal/core/ports"
	"github.com/anny-whatever/frappeDocChat/internal/core/usecase"
	"github.com/anny-whatever/frappeDocChat/internal/infrastructure/chunking"
	"github.com/anny-whatever/frappeDocChat/internal/infrastructure/extractor"
	pdfextractor "github.com/anny-whatever/frappeDocChat/internal/infrastructure/extractor/pdf"
	"github.com/anny-whatever/frappeDocChat/internal/infrastructure/extractor/plaintext"
	"github.com/anny-whatever/frappeDocChat/internal/infrastructure/llm/ollama"
	openaillm "github.com/anny-whatever/frappeDocChat/internal/infrastructure/llm/openai"
	"github.com/anny-whatever/frappeDocChat/internal/infrastructure/queue/nats"
	"github.com/anny-whatever/frappeDocChat/internal/infrastructure/repository/postgres"
	"github.com/anny-whatever/frappeDocChat/internal/infrastructure/resilience"
	"github.com/anny-whatever/frappeDocChat/internal/infrastructure/storage/localfs"
	"github.com/anny-whatever/frappeDocChat/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Pages ports.PageReader

	IngestUC  ports.PageIngestor
	ProcessUC ports.PageProcessor
	SearchUC  ports.DocSearchService
	ChatUC    ports.ChatService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pageRepo := postgres.NewPageRepository(db)
	if err := pageRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	conversationRepo := postgres.NewConversationRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), resilience.WithLogger(logger))

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	var (
		llm       ports.LanguageModel
		embedder  ports.Embedder
		generator ports.AnswerGenerator
	)
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "", "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
		llm = client
		embedder = ollama.NewEmbedder(client)
		generator = ollama.NewGenerator(client)
	case "openai":
		client, err := openaillm.New(cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel)
		if err != nil {
			return nil, fmt.Errorf("init openai client: %w", err)
		}
		llm = client
		embedder = openaillm.NewEmbedder(client)
		generator = openaillm.NewGenerator(client)
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.LLMProvider)
	}

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	searchGateway := qdrant.NewSearchGateway(embedder, vectorDB)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	textExtractor := extractor.NewComposite(
		plaintext.NewExtractor(storage),
		pdfextractor.NewExtractor(storage),
	)

	expander, err := usecase.NewQueryExpander(llm, logger)
	if err != nil {
		return nil, fmt.Errorf("init query expander: %w", err)
	}
	decomposer := usecase.NewQueryDecomposer(llm, logger)

	retrieverCfg := usecase.DefaultRetrieverConfig()
	if cfg.SearchMaxConcurrent > 0 {
		retrieverCfg.MaxConcurrentSearches = cfg.SearchMaxConcurrent
	}
	if cfg.SearchExpansionMinConf > 0 {
		retrieverCfg.ExpansionMinConfidence = cfg.SearchExpansionMinConf
	}
	applyStrategyTuning(&retrieverCfg.Original, cfg.StrategyOriginal)
	applyStrategyTuning(&retrieverCfg.Decomposed, cfg.StrategyDecomposed)
	applyStrategyTuning(&retrieverCfg.Expanded, cfg.StrategyExpanded)
	applyStrategyTuning(&retrieverCfg.Technical, cfg.StrategyTechnical)
	applyStrategyTuning(&retrieverCfg.Troubleshooting, cfg.StrategyTroubleshooting)
	retriever := usecase.NewMultiStrategyRetriever(searchGateway, expander, decomposer, retrieverCfg, logger)

	// Zero fields fall back to the ranker's tuned defaults.
	ranker := usecase.NewResultRanker(usecase.RankWeights{
		SemanticSimilarity: cfg.RankWeightSemantic,
		TitleRelevance:     cfg.RankWeightTitle,
		ContentQuality:     cfg.RankWeightContent,
		DocumentType:       cfg.RankWeightDocType,
		Recency:            cfg.RankWeightRecency,
		SourceReliability:  cfg.RankWeightSource,
		QueryAlignment:     cfg.RankWeightAlignment,
	}, usecase.BoostMultipliers{
		OfficialDocs: cfg.BoostOfficialDocs,
		Tutorial:     cfg.BoostTutorial,
		APIDoc:       cfg.BoostAPIDoc,
		Example:      cfg.BoostExample,
	})

	refiner := usecase.NewRefinementController(llm, usecase.RefinementConfig{
		MaxIterations:       cfg.RefineMaxIterations,
		ConfidenceThreshold: cfg.RefineConfidenceThreshold,
		ConvergenceWindow:   cfg.RefineConvergenceWindow,
		ConvergenceOverlap:  cfg.RefineConvergenceOverlap,
	}, logger)

	searchUC := usecase.NewSearchUseCase(retriever, ranker, refiner, usecase.SearchConfig{
		DefaultLimit:     cfg.SearchDefaultLimit,
		DefaultThreshold: cfg.SearchDefaultThreshold,
	}, logger)

	ingestUC := usecase.NewIngestPageUseCase(pageRepo, storage, queue)
	processUC := usecase.NewProcessPageUseCase(pageRepo, textExtractor, chunker, embedder, vectorDB)
	chatUC := usecase.NewChatUseCase(searchUC, generator, conversationRepo)

	return &App{
		Config: cfg,
		Queue:  queue,
		Pages:  pageRepo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		SearchUC:  searchUC,
		ChatUC:    chatUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func applyStrategyTuning(params *usecase.StrategyParams, tuning config.StrategyTuning) {
	if tuning.Weight > 0 {
		params.Weight = tuning.Weight
	}
	if tuning.Threshold > 0 {
		params.Threshold = tuning.Threshold
	}
	if tuning.Limit > 0 {
		params.Limit = tuning.Limit
	}
}
