package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"schola/extract"
	"schola/ingest"
	"schola/loader/watcher"
	"schola/model"
	"schola/store"
	"schola/types"
)

func main() {
	root := newRootCmd()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "loader",
		Short:        "Ingest study materials into the section index",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				log.Println("no .env file loaded, relying on environment")
			}
		},
	}
	root.AddCommand(newIngestCmd())
	root.AddCommand(newWatchCmd())
	return root
}

type ingestFlags struct {
	datasource          string
	existing            []string
	extractor           string
	slice               bool
	csvHeader           bool
	csvKey              string
	csvOutTemplate      string
	maxSectionLength    int
	sectionOverlap      int
	sentenceSearchLimit int
}

func (f *ingestFlags) register(cmd *cobra.Command) {
	defaults := types.DefaultIngestConfig()
	cmd.Flags().StringVar(&f.datasource, "datasource", "", "datasource name to (re)build")
	cmd.Flags().StringSliceVar(&f.existing, "existing", nil, "already-saved filenames to include in the batch")
	cmd.Flags().StringVar(&f.extractor, "extractor", os.Getenv("EXTRACTOR"), "page text backend: ocr, poppler or pdfcpu")
	cmd.Flags().BoolVar(&f.slice, "slice", defaults.Slice, "split documents into overlapping sections")
	cmd.Flags().BoolVar(&f.csvHeader, "csv-header", defaults.CSVHeader, "treat the first csv record as a header")
	cmd.Flags().StringVar(&f.csvKey, "csv-key", defaults.CSVKey, "csv column to embed")
	cmd.Flags().StringVar(&f.csvOutTemplate, "csv-out-template", defaults.CSVOutTemplate, "template for the content built from each csv row")
	cmd.Flags().IntVar(&f.maxSectionLength, "max-section-length", defaults.MaxSectionLength, "maximum section length in characters")
	cmd.Flags().IntVar(&f.sectionOverlap, "section-overlap", defaults.SectionOverlap, "characters shared between consecutive sections")
	cmd.Flags().IntVar(&f.sentenceSearchLimit, "sentence-search-limit", defaults.SentenceSearchLimit, "how far to look for a sentence boundary")
	cmd.MarkFlagRequired("datasource")
}

func (f *ingestFlags) config() types.IngestConfig {
	return types.IngestConfig{
		CSVHeader:           f.csvHeader,
		CSVKey:              f.csvKey,
		CSVOutTemplate:      f.csvOutTemplate,
		MaxSectionLength:    f.maxSectionLength,
		SectionOverlap:      f.sectionOverlap,
		SentenceSearchLimit: f.sentenceSearchLimit,
		Slice:               f.slice,
	}
}

func newIngestCmd() *cobra.Command {
	flags := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Build a datasource from the given files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := connectStore(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			ingestor, err := newIngestor(flags, pool)
			if err != nil {
				return err
			}

			var files []ingest.File
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				files = append(files, ingest.File{Name: filepath.Base(path), Data: data})
			}

			name, err := ingestor.Run(ctx, files, flags.existing, flags.datasource)
			if err != nil {
				return err
			}
			fmt.Printf("datasource %s is ready\n", name)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newWatchCmd() *cobra.Command {
	flags := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a drop directory and ingest stable files into the datasource",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := connectStore(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			ingestor, err := newIngestor(flags, pool)
			if err != nil {
				return err
			}

			monitoringTime := 5 * time.Second
			if v := os.Getenv("MONITORING_TIME"); v != "" {
				if sec, err := strconv.Atoi(v); err == nil {
					monitoringTime = time.Duration(sec) * time.Second
				}
			}

			w, err := watcher.New(watcher.Config{
				SourceDir:      envOr("LOADER_SOURCE_DIR", "source"),
				ArchiveDir:     envOr("LOADER_ARCHIVE_DIR", "archive"),
				BadDir:         envOr("LOADER_BAD_DIR", "bad"),
				MonitoringTime: monitoringTime,
			}, func(ctx context.Context, path string) error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				name := ingest.SanitizeFilename(filepath.Base(path))
				existing, err := savedFileNames(flags.datasource, name)
				if err != nil {
					return err
				}
				file := ingest.File{Name: filepath.Base(path), Data: data}
				_, err = ingestor.Run(ctx, []ingest.File{file}, existing, flags.datasource)
				return err
			})
			if err != nil {
				return err
			}

			w.Run(ctx)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// savedFileNames lists the files already stored for the datasource so a
// watched file extends the index instead of replacing it.
func savedFileNames(datasource, skip string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dataDir(), datasource))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && e.Name() != skip {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func connectStore(ctx context.Context) (*store.PostgresStore, error) {
	embedder := model.NewOllamaEmbedder(os.Getenv("OLLAMA_EMBEDDING_URL"), os.Getenv("OLLAMA_EMBEDDING_MODEL"))

	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
	pool, err := store.NewPostgresStore(ctx, connStr, embedder)
	if err != nil {
		return nil, fmt.Errorf("error to connect to Postgres database: %w", err)
	}
	if err := pool.Init(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error to create tables: %w", err)
	}
	return pool, nil
}

func newIngestor(flags *ingestFlags, pool *store.PostgresStore) (*ingest.Ingestor, error) {
	var mapper extract.PageMapper
	switch flags.extractor {
	case "ocr":
		mapper = extract.NewOCRClient(os.Getenv("OCR_URL"))
	case "poppler":
		mapper = extract.NewPopplerMapper()
	default:
		mapper = extract.NewPDFCPUMapper()
	}
	return ingest.New(flags.config(), mapper, extract.NewLibreOfficeConverter(), pool, dataDir())
}

func dataDir() string {
	return envOr("DATA_DIR", "datasources")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
