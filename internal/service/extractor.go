package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/jjenkins/billwatch/internal/logger"
)

const (
	defaultDocumentTimeout = 15 * time.Second
	maxDocumentBytes       = 50 << 20
)

// Extractor downloads bill documents and pulls their plain text, best-effort
type Extractor struct {
	client *http.Client
	parse  func(data []byte) (string, error)
	logger *logger.Logger
}

// NewExtractor creates a new Extractor
func NewExtractor(timeout time.Duration, log *logger.Logger) *Extractor {
	if timeout <= 0 {
		timeout = defaultDocumentTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{
		client: &http.Client{Timeout: timeout},
		parse:  parsePDF,
		logger: log,
	}
}

// IsDocumentURL reports whether link points at a downloadable PDF rather than an HTML page
func IsDocumentURL(link string) bool {
	if link == "" {
		return false
	}
	lower := strings.ToLower(link)
	if strings.HasSuffix(lower, "=pdf") {
		return true
	}
	u, err := url.Parse(lower)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Path, ".pdf")
}

// ExtractText returns the text of the document at link. Any failure, including
// a link that is not a document, yields false.
func (e *Extractor) ExtractText(ctx context.Context, link string) (text string, ok bool) {
	if !IsDocumentURL(link) {
		return "", false
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("document parser panicked", "url", link, "panic", r)
			text, ok = "", false
		}
	}()

	data, err := e.download(ctx, link)
	if err != nil {
		e.logger.Warn("document download failed", "url", link, "error", err)
		return "", false
	}

	text, err = e.parse(data)
	if err != nil {
		e.logger.Warn("document parse failed", "url", link, "error", err)
		return "", false
	}

	text = collapseWhitespace(text)
	if text == "" {
		return "", false
	}

	e.logger.Debug("document extracted", "url", link, "chars", len(text), "words", len(strings.Fields(text)))
	return text, true
}

func (e *Extractor) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("not a pdf document")
	}

	return data, nil
}

func parsePDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return string(b), nil
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
