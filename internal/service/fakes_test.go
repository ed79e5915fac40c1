package service

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/jjenkins/billwatch/internal/model"
)

// memStore is an in-memory BillRepository. Sub-record replacement is
// deliberately not atomic so that only the bill lock keeps it consistent.
type memStore struct {
	mu       sync.Mutex
	bills    map[int]*model.Bill
	sessions map[int]model.Session
	sponsors map[int][]model.Sponsor
	history  map[int][]model.HistoryEntry
	texts    map[int][]model.BillText
	other    map[int]int

	writes        int
	analysisSaves int
	reconcileErr  error
}

func newMemStore() *memStore {
	return &memStore{
		bills:    make(map[int]*model.Bill),
		sessions: make(map[int]model.Session),
		sponsors: make(map[int][]model.Sponsor),
		history:  make(map[int][]model.HistoryEntry),
		texts:    make(map[int][]model.BillText),
		other:    make(map[int]int),
	}
}

func (s *memStore) GetBill(ctx context.Context, billID int) (*model.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[billID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) GetChangeHashes(ctx context.Context, billIDs []int) (map[int]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string)
	for _, id := range billIDs {
		if b, ok := s.bills[id]; ok {
			out[id] = b.ChangeHash
		}
	}
	return out, nil
}

func (s *memStore) ReconcileBill(ctx context.Context, snap *model.BillSnapshot) (*model.Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.reconcileErr != nil {
		return nil, s.reconcileErr
	}
	id := snap.Bill.ID

	s.mu.Lock()
	s.writes++
	if _, ok := s.sessions[snap.Session.ID]; !ok {
		s.sessions[snap.Session.ID] = *snap.Session
	}
	bill := snap.Bill
	if prev, ok := s.bills[id]; ok {
		bill.AISummary = prev.AISummary
		bill.AIImpacts = prev.AIImpacts
		bill.AIProCon = prev.AIProCon
		bill.AITextFingerprint = prev.AITextFingerprint
		bill.AIGeneratedAt = prev.AIGeneratedAt
	}
	s.bills[id] = &bill
	delete(s.sponsors, id)
	s.mu.Unlock()

	runtime.Gosched()

	s.mu.Lock()
	// Rows another writer added between our delete and insert survive, as
	// they would without serialization.
	s.sponsors[id] = append(s.sponsors[id], snap.Sponsors...)
	s.history[id] = append([]model.HistoryEntry(nil), snap.History...)
	s.texts[id] = append([]model.BillText(nil), snap.Texts...)
	s.other[id] = len(snap.Referrals) + len(snap.Calendar) + len(snap.Sasts)
	s.mu.Unlock()

	cp := bill
	return &cp, nil
}

func (s *memStore) GetTexts(ctx context.Context, billID int) ([]model.BillText, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.BillText(nil), s.texts[billID]...), nil
}

func (s *memStore) UpdateAnalysis(ctx context.Context, billID int, analysis *model.Analysis, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[billID]
	if !ok {
		return errors.New("bill not found")
	}
	s.analysisSaves++
	b.AISummary = analysis.Summary
	b.AIImpacts = analysis.Impacts
	b.AIProCon = analysis.ProsCons
	b.AITextFingerprint = fingerprint
	return nil
}

type fakeSummarizer struct {
	mu       sync.Mutex
	calls    int
	inputs   []string
	analysis *model.Analysis
	err      error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string) (*model.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.inputs = append(f.inputs, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.analysis != nil {
		return f.analysis, nil
	}
	return &model.Analysis{Summary: "generated summary"}, nil
}

// fakeExtractor serves text per URL; unknown URLs fail
type fakeExtractor struct {
	mu    sync.Mutex
	docs  map[string]string
	tried []string
}

func (f *fakeExtractor) ExtractText(ctx context.Context, link string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tried = append(f.tried, link)
	text, ok := f.docs[link]
	return text, ok
}

type fakeSource struct {
	mu      sync.Mutex
	bills   map[int]*model.BillRecord
	list    *model.MasterList
	fetched []int
	err     error
}

func (f *fakeSource) FetchBill(ctx context.Context, billID int) (*model.BillRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, billID)
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.bills[billID]
	if !ok {
		return nil, &UpstreamError{Op: "getBill", Message: "Unknown bill id"}
	}
	return r, nil
}

func (f *fakeSource) FetchMasterList(ctx context.Context, state string) (*model.MasterList, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}
