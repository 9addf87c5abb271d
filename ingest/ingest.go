package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"schola/extract"
	"schola/types"
)

var (
	sliceable   = []string{".pdf", ".docx", ".pptx", ".doc", ".docm"}
	convertable = []string{".docx", ".pptx", ".doc", ".docm"}
)

// File is a document handed to the ingestion entry point.
type File struct {
	Name string
	Data []byte
}

// Index persists a stream of sections under a datasource name. The whole
// stream is consumed; a mid-stream error aborts without leaving the old
// index in a half-replaced state.
type Index interface {
	CreateDatasource(ctx context.Context, name string, sections types.SectionSeq) error
}

// Ingestor runs the extract -> split -> index pipeline for a batch of
// files and keeps a local copy of every source file for later reference.
type Ingestor struct {
	cfg       types.IngestConfig
	mapper    extract.PageMapper
	converter extract.Converter
	index     Index
	baseDir   string
	logger    *slog.Logger
}

func New(cfg types.IngestConfig, mapper extract.PageMapper, converter extract.Converter, index Index, baseDir string) (*Ingestor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ingestor{
		cfg:       cfg,
		mapper:    mapper,
		converter: converter,
		index:     index,
		baseDir:   baseDir,
		logger:    slog.Default(),
	}, nil
}

// SanitizeFilename normalizes an uploaded filename: spaces become
// underscores, leading and trailing underscores are stripped.
func SanitizeFilename(name string) string {
	return strings.Trim(strings.ReplaceAll(name, " ", "_"), "_")
}

// Run ingests the given batch into the named datasource and returns the
// datasource name. Already-present local filenames are re-read from the
// datasource directory and included. The batch is all-or-nothing: any
// configuration or extraction failure aborts before the index is touched.
func (ing *Ingestor) Run(ctx context.Context, files []File, existingFileNames []string, datasource string) (string, error) {
	for _, name := range existingFileNames {
		data, err := os.ReadFile(filepath.Join(ing.baseDir, datasource, name))
		if err != nil {
			return "", fmt.Errorf("read existing file %q: %w", name, err)
		}
		files = append(files, File{Name: name, Data: data})
	}

	if len(files) == 0 {
		return "", fmt.Errorf("no files uploaded or local files selected")
	}

	seen := make(map[string]bool, len(files))
	for i := range files {
		files[i].Name = SanitizeFilename(files[i].Name)
		if files[i].Name == "" {
			return "", fmt.Errorf("filename not found")
		}
		if seen[files[i].Name] {
			return "", fmt.Errorf("duplicate filename %q detected, please use unique filenames", files[i].Name)
		}
		seen[files[i].Name] = true
	}

	// Extraction runs eagerly so a bad file fails the batch before any
	// index mutation; only the splitting itself stays lazy.
	streams := make([]types.SectionSeq, 0, len(files))
	for _, f := range files {
		seq, err := ing.sectionsFor(ctx, f, datasource)
		if err != nil {
			return "", fmt.Errorf("ingest %s: %w", f.Name, err)
		}
		streams = append(streams, seq)
	}

	if err := ing.index.CreateDatasource(ctx, datasource, chainSections(streams...)); err != nil {
		return "", err
	}

	for _, f := range files {
		if err := ing.saveLocalCopy(f, datasource); err != nil {
			return "", err
		}
	}

	ing.logger.Info("datasource created", "datasource", datasource, "files", len(files))
	return datasource, nil
}

func (ing *Ingestor) sectionsFor(ctx context.Context, f File, datasource string) (types.SectionSeq, error) {
	fileURL := path.Join(datasource, f.Name)
	ext := strings.ToLower(filepath.Ext(f.Name))

	switch {
	case slices.Contains(sliceable, ext) && ing.cfg.Slice:
		data := f.Data
		if slices.Contains(convertable, ext) {
			pdf, err := ing.converter.ToPDF(ctx, data, ext)
			if err != nil {
				return nil, err
			}
			data = pdf
		}
		pm, err := ing.mapper.PageMap(ctx, data)
		if err != nil {
			return nil, err
		}
		splitter, err := NewSplitter(ing.cfg)
		if err != nil {
			return nil, err
		}
		return splitter.Sections(pm, fileURL, f.Name), nil

	case ext == ".csv":
		rows, err := extract.CSV(bytes.NewReader(f.Data), ing.cfg.CSVHeader)
		if err != nil {
			return nil, err
		}
		searchKey := ing.cfg.CSVKey
		if !ing.cfg.CSVHeader {
			searchKey = "k0"
		}
		return CSVSections(rows, searchKey, ing.cfg.CSVOutTemplate, fileURL, f.Name), nil

	default:
		text, err := ing.wholeText(ctx, f, ext)
		if err != nil {
			return nil, err
		}
		return NonSlicedSection(text, fileURL, f.Name), nil
	}
}

// wholeText extracts the full document text for the non-sliced path.
func (ing *Ingestor) wholeText(ctx context.Context, f File, ext string) (string, error) {
	switch {
	case ext == ".docx":
		return extract.ReadDocx(f.Data)
	case ext == ".pptx":
		return extract.ReadPptx(f.Data)
	case slices.Contains(convertable, ext):
		pdf, err := ing.converter.ToPDF(ctx, f.Data, ext)
		if err != nil {
			return "", err
		}
		pm, err := ing.mapper.PageMap(ctx, pdf)
		if err != nil {
			return "", err
		}
		return pm.Text(), nil
	case ext == ".pdf":
		pm, err := ing.mapper.PageMap(ctx, f.Data)
		if err != nil {
			return "", err
		}
		return pm.Text(), nil
	case ext == ".txt" || ext == ".md":
		if !utf8.Valid(f.Data) {
			return "", fmt.Errorf("file is not valid UTF-8")
		}
		return string(f.Data), nil
	default:
		return "", fmt.Errorf("incompatible file type: %s", ext)
	}
}

func (ing *Ingestor) saveLocalCopy(f File, datasource string) error {
	dir := filepath.Join(ing.baseDir, datasource)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	full := filepath.Join(dir, f.Name)
	if _, err := os.Stat(full); err == nil {
		ing.logger.Info("local copy already exists", "path", full)
		return nil
	}
	return os.WriteFile(full, f.Data, 0o644)
}
