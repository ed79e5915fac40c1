package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jjenkins/billwatch/internal/logger"
	"github.com/jjenkins/billwatch/internal/model"
)

// EnrichMode selects which text versions feed the summarizer
type EnrichMode string

const (
	// EnrichLatest summarizes only the most recent text version
	EnrichLatest EnrichMode = "latest"
	// EnrichFull summarizes every version in date order
	EnrichFull EnrichMode = "full"
)

const (
	perDocumentCharCap = 8000
	totalCharCap       = 24000
)

// ParseEnrichMode validates a mode name; empty means latest
func ParseEnrichMode(s string) (EnrichMode, error) {
	switch EnrichMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", EnrichLatest:
		return EnrichLatest, nil
	case EnrichFull:
		return EnrichFull, nil
	default:
		return "", fmt.Errorf("unknown enrich mode %q (want latest or full)", s)
	}
}

// Summarizer turns bill text into a structured analysis
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*model.Analysis, error)
}

// TextExtractor pulls plain text from a document URL. It reports false
// instead of failing.
type TextExtractor interface {
	ExtractText(ctx context.Context, url string) (string, bool)
}

// Enricher decides when a bill's AI analysis is stale and regenerates it
type Enricher struct {
	bills      BillRepository
	extractor  TextExtractor
	summarizer Summarizer
	mode       EnrichMode
	logger     *logger.Logger
}

// NewEnricher creates an Enricher that uses mode for triggered enrichment
func NewEnricher(bills BillRepository, extractor TextExtractor, summarizer Summarizer, mode EnrichMode, log *logger.Logger) *Enricher {
	if mode == "" {
		mode = EnrichLatest
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Enricher{
		bills:      bills,
		extractor:  extractor,
		summarizer: summarizer,
		mode:       mode,
		logger:     log,
	}
}

// NeedsEnrichment reports whether bill has text and either no summary or a
// summary generated from a different latest text version.
func NeedsEnrichment(bill *model.Bill, texts []model.BillText) bool {
	if len(texts) == 0 {
		return false
	}
	latest := LatestText(texts)
	return bill.AISummary == "" || latest.Fingerprint() != bill.AITextFingerprint
}

// MaybeEnrich runs after every reconciliation. It returns false, nil when
// nothing had to be done, including when the bill has no texts yet.
func (e *Enricher) MaybeEnrich(ctx context.Context, bill *model.Bill, texts []model.BillText) (bool, error) {
	if !NeedsEnrichment(bill, texts) {
		return false, nil
	}
	if _, err := e.enrich(ctx, bill.ID, texts, e.mode); err != nil {
		return false, err
	}
	return true, nil
}

// Enrich regenerates the analysis of a stored bill regardless of its fingerprint
func (e *Enricher) Enrich(ctx context.Context, billID int, mode EnrichMode) (*model.Analysis, error) {
	bill, err := e.bills.GetBill(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bill %d: %w", billID, err)
	}
	if bill == nil {
		return nil, ErrBillNotFound
	}

	texts, err := e.bills.GetTexts(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to load texts for bill %d: %w", billID, err)
	}
	if len(texts) == 0 {
		return nil, ErrNoBillTexts
	}

	return e.enrich(ctx, billID, texts, mode)
}

func (e *Enricher) enrich(ctx context.Context, billID int, texts []model.BillText, mode EnrichMode) (*model.Analysis, error) {
	doc, err := e.documentText(ctx, texts, mode)
	if err != nil {
		return nil, err
	}

	e.logger.Info("generating analysis", "bill_id", billID, "mode", string(mode), "chars", len(doc))

	analysis, err := e.summarizer.Summarize(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize bill %d: %w", billID, err)
	}

	fingerprint := LatestText(texts).Fingerprint()
	if err := e.bills.UpdateAnalysis(ctx, billID, analysis, fingerprint); err != nil {
		return nil, fmt.Errorf("failed to save analysis for bill %d: %w", billID, err)
	}

	return analysis, nil
}

// documentText extracts and joins the versions selected by mode
func (e *Enricher) documentText(ctx context.Context, texts []model.BillText, mode EnrichMode) (string, error) {
	ordered := SortTexts(texts)
	if mode != EnrichFull {
		ordered = ordered[len(ordered)-1:]
	}

	var parts []string
	for _, t := range ordered {
		link := t.StateLink
		if link == "" {
			link = t.URL
		}

		text, ok := e.extractor.ExtractText(ctx, link)
		if !ok {
			e.logger.Debug("no text extracted", "bill_id", t.BillID, "doc_id", t.DocID, "url", link)
			continue
		}
		text = truncateChars(text, perDocumentCharCap)
		parts = append(parts, fmt.Sprintf("=== Version %s ===\n%s", versionLabel(t), text))
	}

	if len(parts) == 0 {
		return "", ErrNoTextExtracted
	}

	return truncateChars(strings.Join(parts, "\n\n"), totalCharCap), nil
}

// SortTexts returns texts ordered by date ascending. Undated versions sort
// first and equal dates keep their upstream order.
func SortTexts(texts []model.BillText) []model.BillText {
	sorted := make([]model.BillText, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Date, sorted[j].Date
		if !a.Valid {
			return b.Valid
		}
		return b.Valid && a.Time.Before(b.Time)
	})
	return sorted
}

// LatestText is the most recently dated version, the last one on ties.
// texts must not be empty.
func LatestText(texts []model.BillText) model.BillText {
	sorted := SortTexts(texts)
	return sorted[len(sorted)-1]
}

func versionLabel(t model.BillText) string {
	switch {
	case t.Type != "":
		return t.Type
	case t.Mime != "":
		return t.Mime
	default:
		return "unknown"
	}
}

func truncateChars(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
