package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"schola/answer"
	"schola/app/api"
	"schola/app/middleware"
	"schola/extract"
	"schola/model"
	"schola/store"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    64 * 1024 * 1024,
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
	app        *fiber.App
	store      *store.PostgresStore
}

func NewServer(addr string) *Server {
	return &Server{
		listenAddr: addr,
		logger:     slog.Default(),
	}
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			s.logger.Error("shutdown failed", "error", err.Error())
		}
	}
	if s.store != nil {
		s.store.Close()
	}
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()

	embedder := model.NewOllamaEmbedder(os.Getenv("OLLAMA_EMBEDDING_URL"), os.Getenv("OLLAMA_EMBEDDING_MODEL"))
	generator := model.NewOllamaGenerator(os.Getenv("LLM_URL"), os.Getenv("LLM_MODEL"))
	transcriber := model.NewWhisperClient(os.Getenv("WHISPER_URL"))
	ocr := extract.NewOCRClient(os.Getenv("OCR_URL"))

	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
	pool, err := store.NewPostgresStore(ctx, connStr, embedder)
	if err != nil {
		log.Fatal("error to connect to Postgres database", err)
		return
	}
	s.store = pool

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error to create tables", err)
		return
	}

	var mapper extract.PageMapper
	switch os.Getenv("EXTRACTOR") {
	case "ocr":
		mapper = ocr
	case "poppler":
		mapper = extract.NewPopplerMapper()
	default:
		mapper = extract.NewPDFCPUMapper()
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "datasources"
	}

	retriever := answer.NewVectorRetriever(embedder, pool)
	composer := answer.NewComposer(pool, pool, retriever, generator)

	var (
		app            = fiber.New(config)
		checkHandler   = api.NewCheckHandler
		requestHandler = api.NewRequestHandler(pool, composer)
		subjectHandler = api.NewSubjectHandler(pool)
		fileHandler    = api.NewFileHandler(pool, mapper, extract.NewLibreOfficeConverter(), dataDir)
		mediaHandler   = api.NewMediaHandler(pool, composer, ocr, transcriber)
		check          = app.Group("/check")
		apiv1          = app.Group("/api/v1")
	)
	s.app = app

	app.Use(middleware.RequestLogger())

	check.Get("/healthy", checkHandler().HandleHealthy)

	apiv1.Post("/ask", requestHandler.HandleAsk)
	apiv1.Post("/message", requestHandler.HandleMessage)
	apiv1.Post("/photo", mediaHandler.HandlePhoto)
	apiv1.Post("/voice", mediaHandler.HandleVoice)

	apiv1.Get("/subjects", subjectHandler.HandleList)
	apiv1.Post("/subjects", subjectHandler.HandleCreate)
	apiv1.Get("/subjects/:name", subjectHandler.HandleGet)
	apiv1.Put("/subjects/:name", subjectHandler.HandleUpdate)
	apiv1.Delete("/subjects/:name", subjectHandler.HandleDelete)

	apiv1.Get("/datasources", fileHandler.HandleListDatasources)
	apiv1.Put("/datasources/:name", fileHandler.HandleCreateDatasource)
	apiv1.Get("/datasources/:name/files/:file", fileHandler.HandleDownloadFile)

	err = app.Listen(s.listenAddr)
	if err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}
