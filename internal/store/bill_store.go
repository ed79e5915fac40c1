package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/jjenkins/billwatch/internal/model"
)

// BillStore handles database operations for bills and their sub-records
type BillStore struct {
	db *sql.DB
}

// NewBillStore creates a new BillStore
func NewBillStore(db *sql.DB) *BillStore {
	return &BillStore{db: db}
}

const billColumns = `
	id, bill_number, change_hash, title, description, status, status_date, state,
	url, state_link, completed, bill_type, bill_type_id, body, body_id,
	current_body, current_body_id, pending_committee_id, session_id, last_updated,
	raw_data, ai_summary, ai_impacts, ai_pro_con, ai_text_fingerprint, ai_generated_at,
	last_synced_at, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*model.Bill, error) {
	var b model.Bill
	var raw, impacts, proCon []byte
	err := row.Scan(
		&b.ID,
		&b.BillNumber,
		&b.ChangeHash,
		&b.Title,
		&b.Description,
		&b.Status,
		&b.StatusDate,
		&b.State,
		&b.URL,
		&b.StateLink,
		&b.Completed,
		&b.BillType,
		&b.BillTypeID,
		&b.Body,
		&b.BodyID,
		&b.CurrentBody,
		&b.CurrentBodyID,
		&b.PendingCommitteeID,
		&b.SessionID,
		&b.LastUpdated,
		&raw,
		&b.AISummary,
		&impacts,
		&proCon,
		&b.AITextFingerprint,
		&b.AIGeneratedAt,
		&b.LastSyncedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		b.RawData = json.RawMessage(raw)
	}
	if err := decodeAnalysis(impacts, proCon, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func decodeAnalysis(impacts, proCon []byte, b *model.Bill) error {
	if len(impacts) > 0 {
		if err := json.Unmarshal(impacts, &b.AIImpacts); err != nil {
			return fmt.Errorf("failed to decode ai_impacts of bill %d: %w", b.ID, err)
		}
	}
	if len(proCon) > 0 {
		if err := json.Unmarshal(proCon, &b.AIProCon); err != nil {
			return fmt.Errorf("failed to decode ai_pro_con of bill %d: %w", b.ID, err)
		}
	}
	return nil
}

// jsonParam sends raw JSON as text; lib/pq would encode a []byte as bytea
func jsonParam(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// GetBill retrieves a bill by its upstream id. Returns nil, nil when absent.
func (s *BillStore) GetBill(ctx context.Context, billID int) (*model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1`

	b, err := scanBill(s.db.QueryRowContext(ctx, query, billID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill %d: %w", billID, err)
	}
	return b, nil
}

// GetChangeHashes returns the stored change hash of every listed bill that exists
func (s *BillStore) GetChangeHashes(ctx context.Context, billIDs []int) (map[int]string, error) {
	hashes := make(map[int]string, len(billIDs))
	if len(billIDs) == 0 {
		return hashes, nil
	}

	ids := make([]int64, len(billIDs))
	for i, id := range billIDs {
		ids[i] = int64(id)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, change_hash FROM bills WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get change hashes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan change hash: %w", err)
		}
		hashes[id] = hash
	}

	return hashes, rows.Err()
}

// ReconcileBill creates the session if it is new, upserts the bill and
// replaces every sub-record, all in one transaction. AI fields are left as stored.
func (s *BillStore) ReconcileBill(ctx context.Context, snap *model.BillSnapshot) (*model.Bill, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if snap.Session != nil {
		if err := insertSession(ctx, tx, snap.Session); err != nil {
			return nil, err
		}
	}

	bill, err := upsertBill(ctx, tx, &snap.Bill)
	if err != nil {
		return nil, err
	}

	if err := replaceSubRecords(ctx, tx, snap); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bill %d: %w", bill.ID, err)
	}

	return bill, nil
}

// insertSession is first-writer-wins; an existing session is never modified
func insertSession(ctx context.Context, tx *sql.Tx, sess *model.Session) error {
	query := `
		INSERT INTO sessions (id, state_id, year_start, year_end, prefile, sine_die,
		                      prior, special, session_tag, session_title, session_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := tx.ExecContext(ctx, query,
		sess.ID,
		sess.StateID,
		sess.YearStart,
		sess.YearEnd,
		sess.Prefile,
		sess.SineDie,
		sess.Prior,
		sess.Special,
		sess.SessionTag,
		sess.SessionTitle,
		sess.SessionName,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %d: %w", sess.ID, err)
	}
	return nil
}

func upsertBill(ctx context.Context, tx *sql.Tx, b *model.Bill) (*model.Bill, error) {
	query := `
		INSERT INTO bills (id, bill_number, change_hash, title, description, status, status_date,
		                   state, url, state_link, completed, bill_type, bill_type_id, body, body_id,
		                   current_body, current_body_id, pending_committee_id, session_id,
		                   last_updated, raw_data, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET
			bill_number = EXCLUDED.bill_number,
			change_hash = EXCLUDED.change_hash,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			status_date = EXCLUDED.status_date,
			state = EXCLUDED.state,
			url = EXCLUDED.url,
			state_link = EXCLUDED.state_link,
			completed = EXCLUDED.completed,
			bill_type = EXCLUDED.bill_type,
			bill_type_id = EXCLUDED.bill_type_id,
			body = EXCLUDED.body,
			body_id = EXCLUDED.body_id,
			current_body = EXCLUDED.current_body,
			current_body_id = EXCLUDED.current_body_id,
			pending_committee_id = EXCLUDED.pending_committee_id,
			session_id = EXCLUDED.session_id,
			last_updated = EXCLUDED.last_updated,
			raw_data = EXCLUDED.raw_data,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = NOW()
		RETURNING ` + billColumns

	bill, err := scanBill(tx.QueryRowContext(ctx, query,
		b.ID,
		b.BillNumber,
		b.ChangeHash,
		b.Title,
		b.Description,
		b.Status,
		b.StatusDate,
		b.State,
		b.URL,
		b.StateLink,
		b.Completed,
		b.BillType,
		b.BillTypeID,
		b.Body,
		b.BodyID,
		b.CurrentBody,
		b.CurrentBodyID,
		b.PendingCommitteeID,
		b.SessionID,
		b.LastUpdated,
		jsonParam(b.RawData),
		b.LastSyncedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert bill %d: %w", b.ID, err)
	}
	return bill, nil
}

var subRecordTables = []string{"sponsors", "referrals", "bill_history", "bill_texts", "calendar_events", "sasts"}

func replaceSubRecords(ctx context.Context, tx *sql.Tx, snap *model.BillSnapshot) error {
	billID := snap.Bill.ID

	for _, table := range subRecordTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE bill_id = $1`, billID); err != nil {
			return fmt.Errorf("failed to clear %s of bill %d: %w", table, billID, err)
		}
	}

	for _, sp := range snap.Sponsors {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sponsors (bill_id, people_id, person_hash, party_id, party, role_id, role,
			                      name, first_name, middle_name, last_name, suffix, nickname, district,
			                      ftm_eid, votesmart_id, opensecrets_id, knowwho_pid, ballotpedia,
			                      bioguide_id, sponsor_type_id, sponsor_order, committee_sponsor,
			                      committee_id, state_federal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			        $18, $19, $20, $21, $22, $23, $24, $25)
		`,
			billID, sp.PeopleID, sp.PersonHash, sp.PartyID, sp.Party, sp.RoleID, sp.Role,
			sp.Name, sp.FirstName, sp.MiddleName, sp.LastName, sp.Suffix, sp.Nickname, sp.District,
			sp.FTMEID, sp.VotesmartID, sp.OpensecretsID, sp.KnowwhoPID, sp.Ballotpedia,
			sp.BioguideID, sp.SponsorTypeID, sp.SponsorOrder, sp.CommitteeSponsor,
			sp.CommitteeID, sp.StateFederal,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sponsor %d of bill %d: %w", sp.PeopleID, billID, err)
		}
	}

	for _, r := range snap.Referrals {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO referrals (bill_id, date, committee_id, chamber, chamber_id, name)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, billID, r.Date, r.CommitteeID, r.Chamber, r.ChamberID, r.Name)
		if err != nil {
			return fmt.Errorf("failed to insert referral of bill %d: %w", billID, err)
		}
	}

	for _, h := range snap.History {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bill_history (bill_id, date, action, chamber, chamber_id, importance)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, billID, h.Date, h.Action, h.Chamber, h.ChamberID, h.Importance)
		if err != nil {
			return fmt.Errorf("failed to insert history of bill %d: %w", billID, err)
		}
	}

	for _, t := range snap.Texts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bill_texts (bill_id, doc_id, date, type, type_id, mime, mime_id,
			                        url, state_link, text_size, text_hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, billID, t.DocID, t.Date, t.Type, t.TypeID, t.Mime, t.MimeID,
			t.URL, t.StateLink, t.TextSize, t.TextHash)
		if err != nil {
			return fmt.Errorf("failed to insert text %d of bill %d: %w", t.DocID, billID, err)
		}
	}

	for _, c := range snap.Calendar {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO calendar_events (bill_id, type_id, type, event_hash, date, time, location, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, billID, c.TypeID, c.Type, c.EventHash, c.Date, c.Time, c.Location, c.Description)
		if err != nil {
			return fmt.Errorf("failed to insert calendar event of bill %d: %w", billID, err)
		}
	}

	for _, st := range snap.Sasts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sasts (bill_id, type_id, type, sast_bill_number, sast_bill_id)
			VALUES ($1, $2, $3, $4, $5)
		`, billID, st.TypeID, st.Type, st.SastBillNumber, st.SastBillID)
		if err != nil {
			return fmt.Errorf("failed to insert sast of bill %d: %w", billID, err)
		}
	}

	return nil
}

// GetTexts returns a bill's text versions in insertion order
func (s *BillStore) GetTexts(ctx context.Context, billID int) ([]model.BillText, error) {
	return queryTexts(ctx, s.db, billID)
}

func queryTexts(ctx context.Context, db *sql.DB, billID int) ([]model.BillText, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, bill_id, doc_id, date, type, type_id, mime, mime_id, url, state_link, text_size, text_hash
		FROM bill_texts
		WHERE bill_id = $1
		ORDER BY id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to get texts of bill %d: %w", billID, err)
	}
	defer rows.Close()

	var texts []model.BillText
	for rows.Next() {
		var t model.BillText
		if err := rows.Scan(&t.ID, &t.BillID, &t.DocID, &t.Date, &t.Type, &t.TypeID, &t.Mime,
			&t.MimeID, &t.URL, &t.StateLink, &t.TextSize, &t.TextHash); err != nil {
			return nil, fmt.Errorf("failed to scan text: %w", err)
		}
		texts = append(texts, t)
	}
	return texts, rows.Err()
}

// UpdateAnalysis stores a generated analysis and the text fingerprint it was built from
func (s *BillStore) UpdateAnalysis(ctx context.Context, billID int, analysis *model.Analysis, fingerprint string) error {
	impacts, err := json.Marshal(nonNilImpacts(analysis.Impacts))
	if err != nil {
		return fmt.Errorf("failed to encode impacts: %w", err)
	}
	proCon, err := json.Marshal(nonNilProCon(analysis.ProsCons))
	if err != nil {
		return fmt.Errorf("failed to encode pros/cons: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE bills SET
			ai_summary = $2,
			ai_impacts = $3,
			ai_pro_con = $4,
			ai_text_fingerprint = $5,
			ai_generated_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
	`, billID, analysis.Summary, string(impacts), string(proCon), fingerprint)
	if err != nil {
		return fmt.Errorf("failed to update analysis of bill %d: %w", billID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update analysis of bill %d: %w", billID, err)
	}
	if n == 0 {
		return fmt.Errorf("bill %d: %w", billID, ErrNotFound)
	}
	return nil
}

func nonNilImpacts(v []model.Impact) []model.Impact {
	if v == nil {
		return []model.Impact{}
	}
	return v
}

func nonNilProCon(v []model.ProCon) []model.ProCon {
	if v == nil {
		return []model.ProCon{}
	}
	return v
}
