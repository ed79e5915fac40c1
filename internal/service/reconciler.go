package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jjenkins/billwatch/internal/logger"
	"github.com/jjenkins/billwatch/internal/model"
)

const upstreamDateLayout = "2006-01-02"

// BillRepository is the persistence the sync pipeline depends on
type BillRepository interface {
	// GetBill returns nil, nil when the bill is not stored
	GetBill(ctx context.Context, billID int) (*model.Bill, error)
	GetChangeHashes(ctx context.Context, billIDs []int) (map[int]string, error)
	// ReconcileBill writes the whole snapshot in one transaction
	ReconcileBill(ctx context.Context, snap *model.BillSnapshot) (*model.Bill, error)
	GetTexts(ctx context.Context, billID int) ([]model.BillText, error)
	UpdateAnalysis(ctx context.Context, billID int, analysis *model.Analysis, fingerprint string) error
}

// ReconcileResult reports what a reconciliation did. Enrichment problems are
// reported in EnrichErr and never undo the reconciled bill.
type ReconcileResult struct {
	Bill      *model.Bill
	Enriched  bool
	EnrichErr error
}

// Reconciler applies upstream bill records to the local store
type Reconciler struct {
	bills    BillRepository
	locks    Locker
	enricher *Enricher
	logger   *logger.Logger
	now      func() time.Time
}

// NewReconciler creates a Reconciler. enricher may be nil to disable enrichment.
func NewReconciler(bills BillRepository, locks Locker, enricher *Enricher, log *logger.Logger) *Reconciler {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{
		bills:    bills,
		locks:    locks,
		enricher: enricher,
		logger:   log,
		now:      time.Now,
	}
}

// Reconcile replaces the stored state of record.BillID with the upstream record,
// then runs the enrichment trigger. The record is fully converted before the
// bill lock is taken, so a bad date fails without any write.
func (r *Reconciler) Reconcile(ctx context.Context, record *model.BillRecord) (*ReconcileResult, error) {
	snap, err := BuildSnapshot(record, r.now())
	if err != nil {
		return nil, fmt.Errorf("failed to convert bill %d: %w", record.BillID, err)
	}

	unlock, err := r.locks.Lock(ctx, int(record.BillID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock bill %d: %w", record.BillID, err)
	}
	bill, err := r.bills.ReconcileBill(ctx, snap)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile bill %d: %w", record.BillID, err)
	}

	r.logger.Debug("bill reconciled",
		"bill_id", bill.ID,
		"change_hash", bill.ChangeHash,
		"sponsors", len(snap.Sponsors),
		"history", len(snap.History),
		"texts", len(snap.Texts),
	)

	result := &ReconcileResult{Bill: bill}
	if r.enricher == nil {
		return result, nil
	}

	result.Enriched, result.EnrichErr = r.enricher.MaybeEnrich(ctx, bill, snap.Texts)
	if result.EnrichErr != nil {
		r.logger.Warn("enrichment failed", "bill_id", bill.ID, "error", result.EnrichErr)
	}
	return result, nil
}

// BuildSnapshot converts a validated upstream record into the rows one
// reconciliation writes.
func BuildSnapshot(record *model.BillRecord, syncedAt time.Time) (*model.BillSnapshot, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	statusDate, err := parseDate("status_date", record.StatusDate)
	if err != nil {
		return nil, err
	}

	snap := &model.BillSnapshot{
		Session: &model.Session{
			ID:           int(record.Session.SessionID),
			StateID:      int(record.Session.StateID),
			YearStart:    int(record.Session.YearStart),
			YearEnd:      int(record.Session.YearEnd),
			Prefile:      int(record.Session.Prefile),
			SineDie:      int(record.Session.SineDie),
			Prior:        int(record.Session.Prior),
			Special:      int(record.Session.Special),
			SessionTag:   record.Session.SessionTag,
			SessionTitle: record.Session.SessionTitle,
			SessionName:  record.Session.SessionName,
		},
	}

	id := int(record.BillID)

	historyDates := make([]sql.NullTime, 0, len(record.History))
	for _, h := range record.History {
		d, err := parseDate("history", h.Date)
		if err != nil {
			return nil, err
		}
		historyDates = append(historyDates, d)
		snap.History = append(snap.History, model.HistoryEntry{
			BillID:     id,
			Date:       d,
			Action:     h.Action,
			Chamber:    h.Chamber,
			ChamberID:  int(h.ChamberID),
			Importance: int(h.Importance),
		})
	}

	for _, ref := range record.Referrals {
		d, err := parseDate("referral", ref.Date)
		if err != nil {
			return nil, err
		}
		snap.Referrals = append(snap.Referrals, model.Referral{
			BillID:      id,
			Date:        d,
			CommitteeID: int(ref.CommitteeID),
			Chamber:     ref.Chamber,
			ChamberID:   int(ref.ChamberID),
			Name:        ref.Name,
		})
	}

	for _, t := range record.Texts {
		d, err := parseDate("text", t.Date)
		if err != nil {
			return nil, err
		}
		snap.Texts = append(snap.Texts, model.BillText{
			BillID:    id,
			DocID:     int(t.DocID),
			Date:      d,
			Type:      t.Type,
			TypeID:    int(t.TypeID),
			Mime:      t.Mime,
			MimeID:    int(t.MimeID),
			URL:       t.URL,
			StateLink: t.StateLink,
			TextSize:  int(t.TextSize),
			TextHash:  t.TextHash,
		})
	}

	for _, c := range record.Calendar {
		d, err := parseDate("calendar", c.Date)
		if err != nil {
			return nil, err
		}
		snap.Calendar = append(snap.Calendar, model.CalendarEvent{
			BillID:      id,
			TypeID:      int(c.TypeID),
			Type:        c.Type,
			EventHash:   c.EventHash,
			Date:        d,
			Time:        c.Time,
			Location:    c.Location,
			Description: c.Description,
		})
	}

	for _, s := range record.Sponsors {
		snap.Sponsors = append(snap.Sponsors, model.Sponsor{
			BillID:           id,
			PeopleID:         int(s.PeopleID),
			PersonHash:       s.PersonHash,
			PartyID:          int(s.PartyID),
			Party:            s.Party,
			RoleID:           int(s.RoleID),
			Role:             s.Role,
			Name:             s.Name,
			FirstName:        s.FirstName,
			MiddleName:       s.MiddleName,
			LastName:         s.LastName,
			Suffix:           s.Suffix,
			Nickname:         s.Nickname,
			District:         s.District,
			FTMEID:           int(s.FTMEID),
			VotesmartID:      int(s.VotesmartID),
			OpensecretsID:    s.OpensecretsID,
			KnowwhoPID:       int(s.KnowwhoPID),
			Ballotpedia:      s.Ballotpedia,
			BioguideID:       s.BioguideID,
			SponsorTypeID:    int(s.SponsorTypeID),
			SponsorOrder:     int(s.SponsorOrder),
			CommitteeSponsor: int(s.CommitteeSponsor),
			CommitteeID:      int(s.CommitteeID),
			StateFederal:     int(s.StateFederal),
		})
	}

	for _, s := range record.Sasts {
		snap.Sasts = append(snap.Sasts, model.Sast{
			BillID:         id,
			TypeID:         int(s.TypeID),
			Type:           s.Type,
			SastBillNumber: s.SastBillNumber,
			SastBillID:     int(s.SastBillID),
		})
	}

	snap.Bill = model.Bill{
		ID:                 id,
		BillNumber:         record.BillNumber,
		ChangeHash:         record.ChangeHash,
		Title:              record.Title,
		Description:        record.Description,
		Status:             int(record.Status),
		StatusDate:         statusDate,
		State:              record.State,
		URL:                record.URL,
		StateLink:          record.StateLink,
		Completed:          int(record.Completed),
		BillType:           record.BillType,
		BillTypeID:         int(record.BillTypeID),
		Body:               record.Body,
		BodyID:             int(record.BodyID),
		CurrentBody:        record.CurrentBody,
		CurrentBodyID:      int(record.CurrentBodyID),
		PendingCommitteeID: int(record.PendingCommitteeID),
		SessionID:          sql.NullInt64{Int64: int64(record.Session.SessionID), Valid: true},
		LastUpdated:        LastUpdated(statusDate, historyDates),
		RawData:            record.Raw,
		LastSyncedAt:       syncedAt,
	}

	return snap, nil
}

// LastUpdated is the latest of the status date and every history date.
// Null dates are ignored; the result is null only when all inputs are.
func LastUpdated(statusDate sql.NullTime, historyDates []sql.NullTime) sql.NullTime {
	latest := statusDate
	for _, d := range historyDates {
		if d.Valid && (!latest.Valid || d.Time.After(latest.Time)) {
			latest = d
		}
	}
	return latest
}

// parseDate treats "" and the upstream "0000-00-00" placeholder as no date
func parseDate(field, value string) (sql.NullTime, error) {
	if value == "" || value == "0000-00-00" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse(upstreamDateLayout, value)
	if err != nil {
		return sql.NullTime{}, &DateParseError{Field: field, Value: value, Err: err}
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}
