package api

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"schola/extract"
	"schola/ingest"
	"schola/store"
	"schola/types"
)

type FileHandler struct {
	store     store.DBStorer
	mapper    extract.PageMapper
	converter extract.Converter
	baseDir   string
}

func NewFileHandler(st store.DBStorer, mapper extract.PageMapper, converter extract.Converter, baseDir string) *FileHandler {
	return &FileHandler{
		store:     st,
		mapper:    mapper,
		converter: converter,
		baseDir:   baseDir,
	}
}

// HandleCreateDatasource ingests an uploaded batch of files into the
// named datasource, replacing whatever was indexed under that name.
// Form values named "existing" pull already-saved files into the batch.
func (h *FileHandler) HandleCreateDatasource(c *fiber.Ctx) error {
	datasource := c.Params("name")
	if datasource == "" || datasource != ingest.SanitizeFilename(datasource) {
		return NewError(fiber.StatusBadRequest, "invalid datasource name")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return ErrBadRequest()
	}

	var files []ingest.File
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return err
		}
		files = append(files, ingest.File{Name: fh.Filename, Data: data})
	}

	cfg, err := ingestConfigFromForm(c)
	if err != nil {
		return NewError(fiber.StatusBadRequest, err.Error())
	}

	ingestor, err := ingest.New(cfg, h.mapper, h.converter, h.store, h.baseDir)
	if err != nil {
		return NewError(fiber.StatusBadRequest, err.Error())
	}

	name, err := ingestor.Run(c.Context(), files, form.Value["existing"], datasource)
	if err != nil {
		return NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"datasource": name})
}

func (h *FileHandler) HandleListDatasources(c *fiber.Ctx) error {
	names, err := h.store.ListDatasources(c.Context())
	if err != nil {
		return err
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(fiber.Map{"datasources": names})
}

// HandleDownloadFile serves a stored source file so answer citations can
// link back to the document and page they came from.
func (h *FileHandler) HandleDownloadFile(c *fiber.Ctx) error {
	datasource := c.Params("name")
	file, err := filepath.Localize(c.Params("file"))
	if err != nil || strings.ContainsRune(file, filepath.Separator) {
		return NewError(fiber.StatusBadRequest, "invalid file name")
	}
	if datasource != ingest.SanitizeFilename(datasource) {
		return NewError(fiber.StatusBadRequest, "invalid datasource name")
	}
	// inline, so #page= anchors open at the cited page in the browser
	return c.SendFile(filepath.Join(h.baseDir, datasource, file))
}

func ingestConfigFromForm(c *fiber.Ctx) (types.IngestConfig, error) {
	cfg := types.DefaultIngestConfig()

	boolFields := map[string]*bool{
		"slice":      &cfg.Slice,
		"csv_header": &cfg.CSVHeader,
	}
	for key, dst := range boolFields {
		if v := c.FormValue(key); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return cfg, err
			}
			*dst = parsed
		}
	}

	intFields := map[string]*int{
		"max_section_length":    &cfg.MaxSectionLength,
		"section_overlap":       &cfg.SectionOverlap,
		"sentence_search_limit": &cfg.SentenceSearchLimit,
	}
	for key, dst := range intFields {
		if v := c.FormValue(key); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return cfg, err
			}
			*dst = parsed
		}
	}

	if v := c.FormValue("csv_key"); v != "" {
		cfg.CSVKey = v
	}
	if v := c.FormValue("csv_out_template"); v != "" {
		cfg.CSVOutTemplate = v
	}
	return cfg, cfg.Validate()
}
