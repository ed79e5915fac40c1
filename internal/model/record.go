package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FlexInt decodes a JSON number or a quoted number. LegiScan quotes some
// numeric fields; null and "" decode as zero.
type FlexInt int

func (n *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
		if len(data) == 0 {
			*n = 0
			return nil
		}
	}
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("invalid integer %s", data)
	}
	*n = FlexInt(v)
	return nil
}

// SessionInfo is the session sub-object of an upstream bill or master list
type SessionInfo struct {
	SessionID    FlexInt `json:"session_id"`
	StateID      FlexInt `json:"state_id"`
	YearStart    FlexInt `json:"year_start"`
	YearEnd      FlexInt `json:"year_end"`
	Prefile      FlexInt `json:"prefile"`
	SineDie      FlexInt `json:"sine_die"`
	Prior        FlexInt `json:"prior"`
	Special      FlexInt `json:"special"`
	SessionTag   string  `json:"session_tag"`
	SessionTitle string  `json:"session_title"`
	SessionName  string  `json:"session_name"`
}

type SponsorInfo struct {
	PeopleID         FlexInt `json:"people_id"`
	PersonHash       string  `json:"person_hash"`
	PartyID          FlexInt `json:"party_id"`
	Party            string  `json:"party"`
	RoleID           FlexInt `json:"role_id"`
	Role             string  `json:"role"`
	Name             string  `json:"name"`
	FirstName        string  `json:"first_name"`
	MiddleName       string  `json:"middle_name"`
	LastName         string  `json:"last_name"`
	Suffix           string  `json:"suffix"`
	Nickname         string  `json:"nickname"`
	District         string  `json:"district"`
	FTMEID           FlexInt `json:"ftm_eid"`
	VotesmartID      FlexInt `json:"votesmart_id"`
	OpensecretsID    string  `json:"opensecrets_id"`
	KnowwhoPID       FlexInt `json:"knowwho_pid"`
	Ballotpedia      string  `json:"ballotpedia"`
	BioguideID       string  `json:"bioguide_id"`
	SponsorTypeID    FlexInt `json:"sponsor_type_id"`
	SponsorOrder     FlexInt `json:"sponsor_order"`
	CommitteeSponsor FlexInt `json:"committee_sponsor"`
	CommitteeID      FlexInt `json:"committee_id"`
	StateFederal     FlexInt `json:"state_federal"`
}

type ReferralInfo struct {
	Date        string  `json:"date"`
	CommitteeID FlexInt `json:"committee_id"`
	Chamber     string  `json:"chamber"`
	ChamberID   FlexInt `json:"chamber_id"`
	Name        string  `json:"name"`
}

type HistoryInfo struct {
	Date       string  `json:"date"`
	Action     string  `json:"action"`
	Chamber    string  `json:"chamber"`
	ChamberID  FlexInt `json:"chamber_id"`
	Importance FlexInt `json:"importance"`
}

type TextInfo struct {
	DocID     FlexInt `json:"doc_id"`
	Date      string  `json:"date"`
	Type      string  `json:"type"`
	TypeID    FlexInt `json:"type_id"`
	Mime      string  `json:"mime"`
	MimeID    FlexInt `json:"mime_id"`
	URL       string  `json:"url"`
	StateLink string  `json:"state_link"`
	TextSize  FlexInt `json:"text_size"`
	TextHash  string  `json:"text_hash"`
}

type CalendarInfo struct {
	TypeID      FlexInt `json:"type_id"`
	Type        string  `json:"type"`
	EventHash   string  `json:"event_hash"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
}

type SastInfo struct {
	TypeID         FlexInt `json:"type_id"`
	Type           string  `json:"type"`
	SastBillNumber string  `json:"sast_bill_number"`
	SastBillID     FlexInt `json:"sast_bill_id"`
}

// BillRecord is a full upstream bill as returned by getBill
type BillRecord struct {
	BillID             FlexInt        `json:"bill_id"`
	ChangeHash         string         `json:"change_hash"`
	SessionID          FlexInt        `json:"session_id"`
	Session            *SessionInfo   `json:"session"`
	URL                string         `json:"url"`
	StateLink          string         `json:"state_link"`
	Completed          FlexInt        `json:"completed"`
	Status             FlexInt        `json:"status"`
	StatusDate         string         `json:"status_date"`
	State              string         `json:"state"`
	StateID            FlexInt        `json:"state_id"`
	BillNumber         string         `json:"bill_number"`
	BillType           string         `json:"bill_type"`
	BillTypeID         FlexInt        `json:"bill_type_id"`
	Body               string         `json:"body"`
	BodyID             FlexInt        `json:"body_id"`
	CurrentBody        string         `json:"current_body"`
	CurrentBodyID      FlexInt        `json:"current_body_id"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	PendingCommitteeID FlexInt        `json:"pending_committee_id"`
	History            []HistoryInfo  `json:"history"`
	Sponsors           []SponsorInfo  `json:"sponsors"`
	Sasts              []SastInfo     `json:"sasts"`
	Texts              []TextInfo     `json:"texts"`
	Calendar           []CalendarInfo `json:"calendar"`
	Referrals          []ReferralInfo `json:"referrals"`

	// Raw is the bill object exactly as received
	Raw json.RawMessage `json:"-"`
}

// Validate rejects records missing the fields reconciliation depends on
func (r *BillRecord) Validate() error {
	var errs []error
	if r.BillID <= 0 {
		errs = append(errs, errors.New("bill_id is required"))
	}
	if r.ChangeHash == "" {
		errs = append(errs, errors.New("change_hash is required"))
	}
	if r.BillNumber == "" {
		errs = append(errs, errors.New("bill_number is required"))
	}
	if r.State == "" {
		errs = append(errs, errors.New("state is required"))
	}
	if r.Session == nil {
		errs = append(errs, errors.New("session is required"))
	} else if r.Session.SessionID <= 0 {
		errs = append(errs, errors.New("session.session_id is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid bill record %d: %w", r.BillID, errors.Join(errs...))
	}
	return nil
}

// ListItem is one bill entry of a state master list
type ListItem struct {
	BillID         FlexInt `json:"bill_id"`
	Number         string  `json:"number"`
	ChangeHash     string  `json:"change_hash"`
	URL            string  `json:"url"`
	StatusDate     string  `json:"status_date"`
	Status         FlexInt `json:"status"`
	LastActionDate string  `json:"last_action_date"`
	LastAction     string  `json:"last_action"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
}

// Validate rejects list items that cannot be gated by change hash
func (i *ListItem) Validate() error {
	if i.BillID <= 0 {
		return errors.New("bill_id is required")
	}
	if i.ChangeHash == "" {
		return fmt.Errorf("change_hash is required for bill %d", i.BillID)
	}
	return nil
}

// MasterList is a per-state listing keyed by upstream bill id
type MasterList struct {
	State   string
	Session *SessionInfo
	Items   map[int]ListItem
}
