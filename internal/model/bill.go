package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Bill represents the local mirror of an upstream bill
type Bill struct {
	ID                 int
	BillNumber         string
	ChangeHash         string
	Title              string
	Description        string
	Status             int
	StatusDate         sql.NullTime
	State              string
	URL                string
	StateLink          string
	Completed          int
	BillType           string
	BillTypeID         int
	Body               string
	BodyID             int
	CurrentBody        string
	CurrentBodyID      int
	PendingCommitteeID int
	SessionID          sql.NullInt64
	LastUpdated        sql.NullTime
	RawData            json.RawMessage

	AISummary         string
	AIImpacts         []Impact
	AIProCon          []ProCon
	AITextFingerprint string
	AIGeneratedAt     sql.NullTime

	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is an upstream legislative session. Rows are created once and never updated.
type Session struct {
	ID           int
	StateID      int
	YearStart    int
	YearEnd      int
	Prefile      int
	SineDie      int
	Prior        int
	Special      int
	SessionTag   string
	SessionTitle string
	SessionName  string
}

type Sponsor struct {
	ID               int
	BillID           int
	PeopleID         int
	PersonHash       string
	PartyID          int
	Party            string
	RoleID           int
	Role             string
	Name             string
	FirstName        string
	MiddleName       string
	LastName         string
	Suffix           string
	Nickname         string
	District         string
	FTMEID           int
	VotesmartID      int
	OpensecretsID    string
	KnowwhoPID       int
	Ballotpedia      string
	BioguideID       string
	SponsorTypeID    int
	SponsorOrder     int
	CommitteeSponsor int
	CommitteeID      int
	StateFederal     int
}

type Referral struct {
	ID          int
	BillID      int
	Date        sql.NullTime
	CommitteeID int
	Chamber     string
	ChamberID   int
	Name        string
}

type HistoryEntry struct {
	ID         int
	BillID     int
	Date       sql.NullTime
	Action     string
	Chamber    string
	ChamberID  int
	Importance int
}

// BillText is one published version of a bill's text
type BillText struct {
	ID        int
	BillID    int
	DocID     int
	Date      sql.NullTime
	Type      string
	TypeID    int
	Mime      string
	MimeID    int
	URL       string
	StateLink string
	TextSize  int
	TextHash  string
}

// Fingerprint identifies the document content of this version
func (t BillText) Fingerprint() string {
	switch {
	case t.TextHash != "":
		return t.TextHash
	case t.StateLink != "":
		return t.StateLink
	default:
		return t.URL
	}
}

type CalendarEvent struct {
	ID          int
	BillID      int
	TypeID      int
	Type        string
	EventHash   string
	Date        sql.NullTime
	Time        string
	Location    string
	Description string
}

// Sast links a bill to a similar or identical bill in another chamber or session
type Sast struct {
	ID             int
	BillID         int
	TypeID         int
	Type           string
	SastBillNumber string
	SastBillID     int
}

// BillSnapshot is everything a single reconciliation writes for one bill
type BillSnapshot struct {
	Bill      Bill
	Session   *Session
	Sponsors  []Sponsor
	Referrals []Referral
	History   []HistoryEntry
	Texts     []BillText
	Calendar  []CalendarEvent
	Sasts     []Sast
}

// BillDetail is a bill with its session and sub-records loaded
type BillDetail struct {
	Bill      Bill
	Session   *Session
	Sponsors  []Sponsor
	Referrals []Referral
	History   []HistoryEntry
	Texts     []BillText
	Calendar  []CalendarEvent
	Sasts     []Sast
}

// BillListItem is one row of the paginated per-state listing
type BillListItem struct {
	BillID         int
	Number         string
	ChangeHash     string
	URL            string
	Status         int
	StatusDate     sql.NullTime
	Title          string
	Description    string
	LastActionDate sql.NullTime
	LastAction     sql.NullString
}

// Impact is one categorized effect in an AI analysis
type Impact struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

// ProCon is one argument for or against a bill
type ProCon struct {
	Type     string `json:"type"`
	Argument string `json:"argument"`
}

const (
	ProConPro = "pro"
	ProConCon = "con"
)

// Analysis is the structured result of summarizing a bill's text
type Analysis struct {
	Summary  string   `json:"summary"`
	Impacts  []Impact `json:"impacts"`
	ProsCons []ProCon `json:"pros_cons"`
}
