// Package bootstrap wires configuration into concrete dependencies for the
// api and worker processes.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "pdfchat-backend/internal/auth"
	"pdfchat-backend/internal/chat"
	"pdfchat-backend/internal/documents"
	"pdfchat-backend/internal/embedding"
	embopenai "pdfchat-backend/internal/embedding/openai"
	"pdfchat-backend/internal/ingest"
	"pdfchat-backend/internal/llm"
	llmopenai "pdfchat-backend/internal/llm/openai"
	"pdfchat-backend/internal/messages"
	"pdfchat-backend/internal/queue"
	"pdfchat-backend/internal/shared/config"
	"pdfchat-backend/internal/shared/server"
	"pdfchat-backend/internal/shared/storage/db"
	"pdfchat-backend/internal/shared/storage/object"
	localstore "pdfchat-backend/internal/shared/storage/object/local"
	s3store "pdfchat-backend/internal/shared/storage/object/s3"
	"pdfchat-backend/internal/users"
	"pdfchat-backend/internal/vectorindex"
	vmemory "pdfchat-backend/internal/vectorindex/memory"
	"pdfchat-backend/internal/vectorindex/pinecone"
)

// App holds shared dependencies.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Store            object.ObjectStore
	Queue            queue.Client
	Index            vectorindex.Index
	Embedder         embedding.Embedder
	Streamer         llm.Streamer
	DocumentsRepo    documents.DocumentsRepo
	MessagesRepo     messages.Repo
	UsersRepo        users.Repo
	DocumentsService *documents.Service
	IngestService    *ingest.Service
	ChatService      *chat.Service
	UsersService     *users.Service
	DocumentsHandler *documents.Handler
	ChatHandler      *chat.Handler
	UsersHandler     *users.Handler
	GoogleAuth       *googleauth.GoogleService
}

// Build prepares shared dependencies and the HTTP router.
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

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	index, err := buildIndex(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
		Index:  index,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		ChatHandler:     app.ChatHandler,
		DocumentHandler: app.DocumentsHandler,
		UserHandler:     app.UsersHandler,
		GoogleAuth:      app.GoogleAuth,
		UploadsEnabled:  strings.TrimSpace(os.Getenv("UPLOADS_S3_BUCKET")) != "",
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("PC_SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func buildIndex(cfg config.Config) (vectorindex.Index, error) {
	switch cfg.VectorIndexType {
	case "pinecone":
		return pinecone.New(pinecone.Config{
			Host:   cfg.PineconeIndexHost,
			APIKey: cfg.PineconeAPIKey,
		})
	default:
		return vmemory.New(), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var docRepo documents.DocumentsRepo
	var msgRepo messages.Repo
	var userRepo users.Repo

	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		msgRepo = &messages.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		msgRepo = messages.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	embedder := embedding.Embedder(placeholderEmbedder{})
	streamer := llm.Streamer(llm.PlaceholderStreamer{})
	if app.Config.LLMProvider == "openai" {
		embClient, err := embopenai.NewClient(os.Getenv("OPENAI_API_KEY"), app.Config.EmbeddingModel)
		if err != nil {
			if !isDevLike(app.Config.Env) {
				return err
			}
			log.Printf("bootstrap: openai not configured; using placeholder providers: %v", err)
		} else {
			chatClient, err := llmopenai.NewClient(os.Getenv("OPENAI_API_KEY"), app.Config.LLMModel)
			if err != nil {
				return err
			}
			embedder = embClient
			streamer = chatClient
		}
	}

	ingestSvc := ingest.NewService(docRepo, app.Store, embedder, app.Index)

	var ingestor documents.Ingestor
	if app.Queue != nil {
		ingestor = &ingest.QueueDispatcher{Queue: app.Queue}
	} else {
		ingestor = &ingest.InlineDispatcher{Svc: ingestSvc}
	}

	docSvc := &documents.Service{
		Store:    app.Store,
		Repo:     docRepo,
		Messages: msgRepo,
		Index:    app.Index,
		Ingest:   ingestor,
	}

	chatSvc := &chat.Service{
		Docs:     docRepo,
		Messages: msgRepo,
		Embedder: embedder,
		Index:    app.Index,
		Streamer: streamer,
	}

	userSvc := users.NewService(userRepo)
	googleAuthSvc := googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)

	app.Embedder = embedder
	app.Streamer = streamer
	app.DocumentsRepo = docRepo
	app.MessagesRepo = msgRepo
	app.UsersRepo = userRepo
	app.DocumentsService = docSvc
	app.IngestService = ingestSvc
	app.ChatService = chatSvc
	app.UsersService = userSvc
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.ChatHandler = chat.NewHandler(chatSvc, msgRepo, docRepo)
	app.UsersHandler = users.NewHandler(userSvc)
	app.GoogleAuth = googleAuthSvc

	return nil
}

// placeholderEmbedder produces deterministic pseudo-embeddings so dev mode
// works end to end without an API key. Not meaningful for real retrieval.
type placeholderEmbedder struct{}

const placeholderDims = 16

func (placeholderEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, placeholderDims)
	for i, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%placeholderDims] += 1 / float32(math.Sqrt(float64(i+1)))
	}
	return vec, nil
}

func (p placeholderEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
