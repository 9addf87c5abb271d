package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"schola/types"
)

// PDFCPUMapper extracts page text from PDF content streams without any
// external process. It only understands literal string operators, so
// scanned or heavily encoded documents come out empty; it exists as the
// zero-dependency fallback when no analysis service is configured.
type PDFCPUMapper struct{}

func NewPDFCPUMapper() *PDFCPUMapper {
	return &PDFCPUMapper{}
}

func (m *PDFCPUMapper) PageMap(ctx context.Context, pdf []byte) (types.PageMap, error) {
	conf := api.LoadConfiguration()

	doc, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	count := doc.PageCount

	pm := make(types.PageMap, 0, count)
	offset := 0
	for n := 1; n <= count; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := pdfcpu.ExtractPageContent(doc, n)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", n, err)
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d content: %w", n, err)
		}

		text := contentStreamText(string(raw))
		pm = append(pm, types.Page{Number: n - 1, Offset: offset, Text: text})
		offset += utf8.RuneCountInString(text)
	}
	return pm, nil
}

var (
	tjRe  = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)\s*Tj`)
	tJRe  = regexp.MustCompile(`\[((?:\\.|[^\]])*)\]\s*TJ`)
	strRe = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)
)

// contentStreamText pulls the literal strings shown by Tj and TJ
// operators out of a decoded page content stream.
func contentStreamText(content string) string {
	var b strings.Builder
	for _, m := range tjRe.FindAllStringSubmatch(content, -1) {
		b.WriteString(decodePDFString(m[1]))
		b.WriteString(" ")
	}
	for _, m := range tJRe.FindAllStringSubmatch(content, -1) {
		for _, s := range strRe.FindAllStringSubmatch(m[1], -1) {
			b.WriteString(decodePDFString(s[1]))
		}
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}

func decodePDFString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '(', ')', '\\':
			b.WriteByte(s[i])
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			code, err := strconv.ParseUint(s[i:j], 8, 16)
			if err == nil && code < 256 {
				b.WriteByte(byte(code))
			}
			i = j - 1
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
