package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"adreview-backend/internal/analysis"
	"adreview-backend/internal/batches"
	"adreview-backend/internal/filing"
	"adreview-backend/internal/history"
	"adreview-backend/internal/keywords"
	"adreview-backend/internal/llm"
	openai "adreview-backend/internal/llm/openai"
	"adreview-backend/internal/ocr"
	"adreview-backend/internal/rag"
	"adreview-backend/internal/regdocs"
	"adreview-backend/internal/scoring"
	"adreview-backend/internal/services/health"
	"adreview-backend/internal/shared/config"
	"adreview-backend/internal/shared/server"
	"adreview-backend/internal/shared/storage/db"
	"adreview-backend/internal/shared/storage/object"
	localstore "adreview-backend/internal/shared/storage/object/local"
	s3store "adreview-backend/internal/shared/storage/object/s3"
)

// App holds the wired application dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine

	DB      *sql.DB
	Objects object.ObjectStore
	RAG     *rag.Store

	Extractors map[string]ocr.Extractor
	Engine     *scoring.Engine

	HistoryRepo     history.Repo
	BatchService    *batches.Service
	Janitor         *batches.Janitor
	FilingService   *filing.Service
	AnalysisService *analysis.Service
	RegDocService   *regdocs.Service
}

// Build prepares application dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ragStore, err := rag.Open(cfg.RAGDBPath)
	if err != nil {
		return nil, fmt.Errorf("open rag store: %w", err)
	}

	extractors, err := buildExtractors(cfg)
	if err != nil {
		return nil, err
	}

	llmClient := llm.Client(llm.PlaceholderClient{})
	if cfg.LLMProvider == "openai" && os.Getenv("OPENAI_API_KEY") != "" {
		openaiClient, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		llmClient = openaiClient
	}

	engine := &scoring.Engine{
		LLM:       llmClient,
		Retriever: ragStore,
	}

	var historyRepo history.Repo
	if sqlDB != nil {
		historyRepo = &history.PGRepo{DB: sqlDB}
	} else {
		historyRepo = history.NewMemoryRepo()
	}

	batchSvc := &batches.Service{
		Store:      batches.NewMemoryStore(),
		Objects:    store,
		Extractors: extractors,
		Engine:     engine,
		History:    historyRepo,
	}
	janitor := &batches.Janitor{
		Service:   batchSvc,
		Retention: cfg.BatchRetention,
		Interval:  cfg.JanitorInterval,
	}

	filingSvc := &filing.Service{Objects: store, Batches: batchSvc}
	analysisSvc := &analysis.Service{Extractors: extractors, Engine: engine}
	regDocSvc := &regdocs.Service{Objects: store, Index: ragStore}

	app := &App{
		Config:          cfg,
		DB:              sqlDB,
		Objects:         store,
		RAG:             ragStore,
		Extractors:      extractors,
		Engine:          engine,
		HistoryRepo:     historyRepo,
		BatchService:    batchSvc,
		Janitor:         janitor,
		FilingService:   filingSvc,
		AnalysisService: analysisSvc,
		RegDocService:   regDocSvc,
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Health:          health.NewService(),
		BatchHandler:    batches.NewHandler(batchSvc),
		AnalysisHandler: analysis.NewHandler(analysisSvc),
		FilingHandler:   filing.NewHandler(filingSvc),
		HistoryHandler:  history.NewHandler(historyRepo),
		KeywordHandler:  keywords.NewHandler(),
		RegDocHandler:   regdocs.NewHandler(regDocSvc),
	})

	return app, nil
}

// Close releases long-lived resources.
func (a *App) Close() {
	if a.RAG != nil {
		_ = a.RAG.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("bootstrap: DATABASE_URL empty; using in-memory history")
		return nil, nil
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory history: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory history: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildExtractors wires every OCR engine whose configuration is present. An
// unconfigured Naver engine is a hard error only when it is the default.
func buildExtractors(cfg config.Config) (map[string]ocr.Extractor, error) {
	extractors := make(map[string]ocr.Extractor)

	if cfg.NaverOCRURL != "" && cfg.NaverOCRSecret != "" {
		naver, err := ocr.NewNaverClient(cfg.NaverOCRURL, cfg.NaverOCRSecret)
		if err != nil {
			return nil, err
		}
		extractors[ocr.EngineNaver] = naver
	} else if cfg.OCREngine == ocr.EngineNaver && !isDevLike(cfg.Env) {
		return nil, fmt.Errorf("NAVER_OCR_URL and NAVER_OCR_SECRET are required for the naver engine")
	}

	if cfg.PaddleOCRURL != "" {
		paddle, err := ocr.NewPaddleClient(cfg.PaddleOCRURL)
		if err != nil {
			return nil, err
		}
		extractors[ocr.EnginePaddle] = paddle
	}

	if len(extractors) == 0 {
		return nil, fmt.Errorf("no OCR engine configured")
	}
	return extractors, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
