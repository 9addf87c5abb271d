package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"schola/types"
)

// PopplerMapper shells out to pdftotext for page text. It produces much
// better layout than raw content streams but requires poppler-utils on
// the host.
type PopplerMapper struct {
	binary string
}

func NewPopplerMapper() *PopplerMapper {
	return &PopplerMapper{binary: "pdftotext"}
}

func (m *PopplerMapper) PageMap(ctx context.Context, pdf []byte) (types.PageMap, error) {
	tmp, err := os.CreateTemp("", "schola-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(pdf); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	tmp.Close()

	count, err := api.PageCount(bytes.NewReader(pdf), api.LoadConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}

	pm := make(types.PageMap, 0, count)
	offset := 0
	for n := 1; n <= count; n++ {
		page := strconv.Itoa(n)
		cmd := exec.CommandContext(ctx, m.binary, "-f", page, "-l", page, "-layout", tmp.Name(), "-")
		var out, stderr bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("pdftotext page %d: %w: %s", n, err, stderr.String())
		}
		text := out.String()
		pm = append(pm, types.Page{Number: n - 1, Offset: offset, Text: text})
		offset += utf8.RuneCountInString(text)
	}
	return pm, nil
}
