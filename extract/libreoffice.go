package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// LibreOfficeConverter converts office documents to PDF with a headless
// soffice run. Conversion happens in a throwaway directory because
// soffice only writes next to its input.
type LibreOfficeConverter struct {
	binary string
}

func NewLibreOfficeConverter() *LibreOfficeConverter {
	return &LibreOfficeConverter{binary: "soffice"}
}

func (c *LibreOfficeConverter) ToPDF(ctx context.Context, data []byte, ext string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "schola-convert-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+ext)
	if err := os.WriteFile(in, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write input file: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.binary, "--headless", "--convert-to", "pdf", "--outdir", dir, in)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("soffice convert: %w: %s", err, stderr.String())
	}

	out, err := os.ReadFile(filepath.Join(dir, "input.pdf"))
	if err != nil {
		return nil, fmt.Errorf("conversion produced no pdf: %w", err)
	}
	return out, nil
}
