package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"schola/types"
)

// OCRClient talks to the document analysis service. The service reads
// scanned and native PDFs and also describes standalone images.
type OCRClient struct {
	apiURL string
}

type ocrPage struct {
	Page   int    `json:"page"`
	Offset int    `json:"offset"`
	Text   string `json:"text"`
}

type ocrAnalyzeResponse struct {
	Pages []ocrPage `json:"pages"`
}

type ocrImageResponse struct {
	Text string `json:"text"`
}

func NewOCRClient(apiURL string) *OCRClient {
	return &OCRClient{apiURL: apiURL}
}

// PageMap sends the PDF for layout analysis and returns the recognized
// pages with their running rune offsets.
func (c *OCRClient) PageMap(ctx context.Context, pdf []byte) (types.PageMap, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiURL+"/analyze", bytes.NewReader(pdf))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/pdf")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ocr API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var analyzeResp ocrAnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&analyzeResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	pm := make(types.PageMap, 0, len(analyzeResp.Pages))
	for _, p := range analyzeResp.Pages {
		pm = append(pm, types.Page{Number: p.Page, Offset: p.Offset, Text: p.Text})
	}
	return pm, nil
}

// AnalyzeImage returns a textual description of an image, suitable for
// answering questions about a photo.
func (c *OCRClient) AnalyzeImage(ctx context.Context, image []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiURL+"/image", bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ocr API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var imgResp ocrImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&imgResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return imgResp.Text, nil
}
