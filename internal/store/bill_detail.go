package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jjenkins/billwatch/internal/model"
)

// GetBillDetail loads a bill with its session and every sub-record.
// Returns nil, nil when the bill is not stored.
func (s *BillStore) GetBillDetail(ctx context.Context, billID int) (*model.BillDetail, error) {
	bill, err := s.GetBill(ctx, billID)
	if err != nil || bill == nil {
		return nil, err
	}

	detail := &model.BillDetail{Bill: *bill}

	if bill.SessionID.Valid {
		detail.Session, err = s.getSession(ctx, int(bill.SessionID.Int64))
		if err != nil {
			return nil, err
		}
	}
	if detail.Sponsors, err = s.getSponsors(ctx, billID); err != nil {
		return nil, err
	}
	if detail.Referrals, err = s.getReferrals(ctx, billID); err != nil {
		return nil, err
	}
	if detail.History, err = s.getHistory(ctx, billID); err != nil {
		return nil, err
	}
	if detail.Texts, err = queryTexts(ctx, s.db, billID); err != nil {
		return nil, err
	}
	if detail.Calendar, err = s.getCalendar(ctx, billID); err != nil {
		return nil, err
	}
	if detail.Sasts, err = s.getSasts(ctx, billID); err != nil {
		return nil, err
	}

	return detail, nil
}

func (s *BillStore) getSession(ctx context.Context, sessionID int) (*model.Session, error) {
	var sess model.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, state_id, year_start, year_end, prefile, sine_die, prior, special,
		       session_tag, session_title, session_name
		FROM sessions
		WHERE id = $1
	`, sessionID).Scan(
		&sess.ID,
		&sess.StateID,
		&sess.YearStart,
		&sess.YearEnd,
		&sess.Prefile,
		&sess.SineDie,
		&sess.Prior,
		&sess.Special,
		&sess.SessionTag,
		&sess.SessionTitle,
		&sess.SessionName,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %d: %w", sessionID, err)
	}
	return &sess, nil
}

func (s *BillStore) getSponsors(ctx context.Context, billID int) ([]model.Sponsor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_id, people_id, person_hash, party_id, party, role_id, role, name,
		       first_name, middle_name, last_name, suffix, nickname, district, ftm_eid,
		       votesmart_id, opensecrets_id, knowwho_pid, ballotpedia, bioguide_id,
		       sponsor_type_id, sponsor_order, committee_sponsor, committee_id, state_federal
		FROM sponsors
		WHERE bill_id = $1
		ORDER BY sponsor_order, id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sponsors of bill %d: %w", billID, err)
	}
	defer rows.Close()

	var sponsors []model.Sponsor
	for rows.Next() {
		var sp model.Sponsor
		if err := rows.Scan(&sp.ID, &sp.BillID, &sp.PeopleID, &sp.PersonHash, &sp.PartyID, &sp.Party,
			&sp.RoleID, &sp.Role, &sp.Name, &sp.FirstName, &sp.MiddleName, &sp.LastName, &sp.Suffix,
			&sp.Nickname, &sp.District, &sp.FTMEID, &sp.VotesmartID, &sp.OpensecretsID, &sp.KnowwhoPID,
			&sp.Ballotpedia, &sp.BioguideID, &sp.SponsorTypeID, &sp.SponsorOrder, &sp.CommitteeSponsor,
			&sp.CommitteeID, &sp.StateFederal); err != nil {
			return nil, fmt.Errorf("failed to scan sponsor: %w", err)
		}
		sponsors = append(sponsors, sp)
	}
	return sponsors, rows.Err()
}

func (s *BillStore) getReferrals(ctx context.Context, billID int) ([]model.Referral, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_id, date, committee_id, chamber, chamber_id, name
		FROM referrals
		WHERE bill_id = $1
		ORDER BY date NULLS FIRST, id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to get referrals of bill %d: %w", billID, err)
	}
	defer rows.Close()

	var referrals []model.Referral
	for rows.Next() {
		var r model.Referral
		if err := rows.Scan(&r.ID, &r.BillID, &r.Date, &r.CommitteeID, &r.Chamber, &r.ChamberID, &r.Name); err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		referrals = append(referrals, r)
	}
	return referrals, rows.Err()
}

func (s *BillStore) getHistory(ctx context.Context, billID int) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_id, date, action, chamber, chamber_id, importance
		FROM bill_history
		WHERE bill_id = $1
		ORDER BY date NULLS FIRST, id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history of bill %d: %w", billID, err)
	}
	defer rows.Close()

	var history []model.HistoryEntry
	for rows.Next() {
		var h model.HistoryEntry
		if err := rows.Scan(&h.ID, &h.BillID, &h.Date, &h.Action, &h.Chamber, &h.ChamberID, &h.Importance); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (s *BillStore) getCalendar(ctx context.Context, billID int) ([]model.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_id, type_id, type, event_hash, date, time, location, description
		FROM calendar_events
		WHERE bill_id = $1
		ORDER BY date NULLS FIRST, id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar of bill %d: %w", billID, err)
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		var c model.CalendarEvent
		if err := rows.Scan(&c.ID, &c.BillID, &c.TypeID, &c.Type, &c.EventHash, &c.Date, &c.Time,
			&c.Location, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}
		events = append(events, c)
	}
	return events, rows.Err()
}

func (s *BillStore) getSasts(ctx context.Context, billID int) ([]model.Sast, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_id, type_id, type, sast_bill_number, sast_bill_id
		FROM sasts
		WHERE bill_id = $1
		ORDER BY id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sasts of bill %d: %w", billID, err)
	}
	defer rows.Close()

	var sasts []model.Sast
	for rows.Next() {
		var st model.Sast
		if err := rows.Scan(&st.ID, &st.BillID, &st.TypeID, &st.Type, &st.SastBillNumber, &st.SastBillID); err != nil {
			return nil, fmt.Errorf("failed to scan sast: %w", err)
		}
		sasts = append(sasts, st)
	}
	return sasts, rows.Err()
}

// ListByState returns one page of a state's bills joined with each bill's
// most recent action, plus the state's total bill count.
func (s *BillStore) ListByState(ctx context.Context, state string, limit, offset int) ([]model.BillListItem, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bills WHERE state = $1`, state).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bills of %s: %w", state, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.bill_number, b.change_hash, b.url, b.status, b.status_date,
		       b.title, b.description, h.date, h.action
		FROM bills b
		LEFT JOIN LATERAL (
			SELECT date, action
			FROM bill_history
			WHERE bill_id = b.id
			ORDER BY date DESC NULLS LAST, id DESC
			LIMIT 1
		) h ON TRUE
		WHERE b.state = $1
		ORDER BY b.last_updated DESC NULLS LAST, b.id
		LIMIT $2 OFFSET $3
	`, state, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bills of %s: %w", state, err)
	}
	defer rows.Close()

	var items []model.BillListItem
	for rows.Next() {
		var it model.BillListItem
		if err := rows.Scan(&it.BillID, &it.Number, &it.ChangeHash, &it.URL, &it.Status, &it.StatusDate,
			&it.Title, &it.Description, &it.LastActionDate, &it.LastAction); err != nil {
			return nil, 0, fmt.Errorf("failed to scan bill: %w", err)
		}
		items = append(items, it)
	}

	return items, total, rows.Err()
}
