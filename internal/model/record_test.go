package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func validRecord() *BillRecord {
	return &BillRecord{
		BillID:     1001,
		ChangeHash: "abc",
		BillNumber: "HF1",
		State:      "MN",
		Session:    &SessionInfo{SessionID: 2024},
	}
}

func TestBillRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *BillRecord)
		wantErr string
	}{
		{name: "valid", mutate: func(r *BillRecord) {}},
		{name: "missing id", mutate: func(r *BillRecord) { r.BillID = 0 }, wantErr: "bill_id"},
		{name: "missing hash", mutate: func(r *BillRecord) { r.ChangeHash = "" }, wantErr: "change_hash"},
		{name: "missing number", mutate: func(r *BillRecord) { r.BillNumber = "" }, wantErr: "bill_number"},
		{name: "missing state", mutate: func(r *BillRecord) { r.State = "" }, wantErr: "state"},
		{name: "missing session", mutate: func(r *BillRecord) { r.Session = nil }, wantErr: "session is required"},
		{name: "zero session id", mutate: func(r *BillRecord) { r.Session.SessionID = 0 }, wantErr: "session.session_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBillTextFingerprint(t *testing.T) {
	if got := (BillText{TextHash: "h", StateLink: "s", URL: "u"}).Fingerprint(); got != "h" {
		t.Errorf("expected text hash, got %s", got)
	}
	if got := (BillText{StateLink: "s", URL: "u"}).Fingerprint(); got != "s" {
		t.Errorf("expected state link, got %s", got)
	}
	if got := (BillText{URL: "u"}).Fingerprint(); got != "u" {
		t.Errorf("expected url, got %s", got)
	}
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in      string
		want    FlexInt
		wantErr bool
	}{
		{in: `12`, want: 12},
		{in: `"12"`, want: 12},
		{in: `" 3 "`, want: 3},
		{in: `""`, want: 0},
		{in: `null`, want: 0},
		{in: `"abc"`, wantErr: true},
		{in: `1.5`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got struct {
				N FlexInt `json:"n"`
			}
			err := json.Unmarshal([]byte(`{"n":`+tt.in+`}`), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s, got %d", tt.in, got.N)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.N != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got.N)
			}
		})
	}
}
