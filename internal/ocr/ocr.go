// Package ocr extracts markdown pages from PDFs with the Mistral OCR API.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/models"
)

const (
	DefaultBaseURL = "https://api.mistral.ai"
	DefaultModel   = "mistral-ocr-latest"
)

// Client uploads a document, runs OCR on its signed URL and deletes the
// remote copy afterwards.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

type uploadResponse struct {
	ID string `json:"id"`
}

type signedURLResponse struct {
	URL string `json:"url"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrRequest struct {
	Model              string      `json:"model"`
	Document           ocrDocument `json:"document"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
	Model string `json:"model"`
}

// Extract runs the upload, signed URL and OCR steps. The remote file is
// deleted on a best-effort basis; a failed delete is only logged.
func (c *Client) Extract(ctx context.Context, filePath string) (*models.Document, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, apperr.Inputf("extract", "failed to open %s: %v", filePath, err)
	}
	if info.IsDir() {
		return nil, apperr.Inputf("extract", "%s is a directory", filePath)
	}

	log.Debug().Str("file", filepath.Base(filePath)).Int64("bytes", info.Size()).Msg("Uploading document to OCR service")
	fileID, err := c.upload(ctx, filePath)
	if err != nil {
		return nil, err
	}
	defer c.deleteRemote(fileID)

	signedURL, err := c.signedURL(ctx, fileID)
	if err != nil {
		return nil, err
	}

	res, err := c.process(ctx, signedURL)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{Filename: filepath.Base(filePath), Pages: make([]models.Page, 0, len(res.Pages))}
	for _, p := range res.Pages {
		doc.Pages = append(doc.Pages, models.Page{Index: p.Index, Markdown: p.Markdown})
	}
	log.Info().Str("file", doc.Filename).Int("pages", len(doc.Pages)).Str("model", res.Model).Msg("OCR completed")
	return doc, nil
}

func (c *Client) upload(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", apperr.Inputf("extract", "failed to open %s: %v", filePath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("purpose", "ocr"); err != nil {
		return "", fmt.Errorf("failed to write multipart field: %w", err)
	}
	part, err := w.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return "", fmt.Errorf("failed to create multipart file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", apperr.Inputf("extract", "failed to read %s: %v", filePath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	var res uploadResponse
	if err := c.do(ctx, http.MethodPost, "/v1/files", w.FormDataContentType(), &body, &res); err != nil {
		return "", err
	}
	if res.ID == "" {
		return "", apperr.UpstreamErr("ocr upload", errors.New("response carries no file id"))
	}
	return res.ID, nil
}

func (c *Client) signedURL(ctx context.Context, fileID string) (string, error) {
	var res signedURLResponse
	path := "/v1/files/" + url.PathEscape(fileID) + "/url?expiry=1"
	if err := c.do(ctx, http.MethodGet, path, "", nil, &res); err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", apperr.UpstreamErr("ocr signed url", errors.New("response carries no url"))
	}
	return res.URL, nil
}

func (c *Client) process(ctx context.Context, documentURL string) (*ocrResponse, error) {
	payload, err := json.Marshal(ocrRequest{
		Model:    c.model,
		Document: ocrDocument{Type: "document_url", DocumentURL: documentURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OCR request: %w", err)
	}
	var res ocrResponse
	if err := c.do(ctx, http.MethodPost, "/v1/ocr", "application/json", bytes.NewReader(payload), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// deleteRemote runs detached from the request context so cleanup still
// happens after a cancellation.
func (c *Client) deleteRemote(fileID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.do(ctx, http.MethodDelete, "/v1/files/"+url.PathEscape(fileID), "", nil, nil); err != nil {
		log.Warn().Err(err).Str("file_id", fileID).Msg("Failed to delete remote file")
	}
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	op := "ocr " + strings.ToLower(method) + " " + strings.SplitN(path, "?", 2)[0]

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.UpstreamErr(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperr.UpstreamErr(op, fmt.Errorf("request failed: %d, %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.UpstreamErr(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
