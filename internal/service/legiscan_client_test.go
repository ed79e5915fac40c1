package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const billPayload = `{
  "status": "OK",
  "bill": {
    "bill_id": 1001,
    "change_hash": "abc",
    "session_id": 2024,
    "session": {"session_id": 2024, "state_id": 23, "year_start": 2023, "year_end": 2024,
                "session_tag": "Regular Session", "session_title": "2023-2024 Regular Session",
                "session_name": "93rd Legislature"},
    "state": "MN",
    "bill_number": "HF1",
    "title": "Education funding",
    "status": 1,
    "status_date": "2024-01-01",
    "history": [{"date": "2024-02-01", "action": "Introduced", "chamber": "H", "chamber_id": 1, "importance": 1}],
    "sponsors": [{"people_id": 7, "name": "Jane Doe", "party": "D"}],
    "texts": [{"doc_id": 1, "date": "2024-01-01", "state_link": "https://example.com/hf1?format=pdf", "text_hash": "t1"}],
    "referrals": [], "calendar": [], "sasts": []
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *LegiScanClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewLegiScanClient(srv.URL+"/", "test-key", 2*time.Second)
}

func TestFetchBill(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("op") != "getBill" || r.URL.Query().Get("id") != "1001" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("expected api key in query")
		}
		w.Write([]byte(billPayload))
	})

	record, err := client.FetchBill(context.Background(), 1001)
	if err != nil {
		t.Fatalf("FetchBill failed: %v", err)
	}
	if record.BillID != 1001 || record.ChangeHash != "abc" {
		t.Errorf("unexpected record identity: %d %s", record.BillID, record.ChangeHash)
	}
	if record.Session == nil || record.Session.SessionName != "93rd Legislature" {
		t.Errorf("expected session to be decoded, got %+v", record.Session)
	}
	if len(record.Sponsors) != 1 || len(record.History) != 1 || len(record.Texts) != 1 {
		t.Errorf("unexpected sub-record counts: %d sponsors, %d history, %d texts",
			len(record.Sponsors), len(record.History), len(record.Texts))
	}
	if !strings.Contains(string(record.Raw), `"bill_number": "HF1"`) {
		t.Errorf("expected raw payload to be retained")
	}
}

func TestFetchBillQuotedNumbers(t *testing.T) {
	payload := strings.Replace(billPayload, `"bill_number": "HF1",`,
		`"bill_number": "HF1", "bill_type_id": "1", "body_id": "", "pending_committee_id": null,`, 1)
	payload = strings.Replace(payload, `"people_id": 7`, `"people_id": "7"`, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	})

	record, err := client.FetchBill(context.Background(), 1001)
	if err != nil {
		t.Fatalf("FetchBill failed: %v", err)
	}
	if record.BillTypeID != 1 || record.BodyID != 0 || record.PendingCommitteeID != 0 {
		t.Errorf("unexpected numeric fields: type %d body %d committee %d",
			record.BillTypeID, record.BodyID, record.PendingCommitteeID)
	}
	if record.Sponsors[0].PeopleID != 7 {
		t.Errorf("expected quoted people_id 7, got %d", record.Sponsors[0].PeopleID)
	}
}

func TestFetchBillFailuresAreUpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "http error", status: http.StatusInternalServerError, body: "boom", wantMsg: "unexpected status code: 500"},
		{name: "provider error", status: http.StatusOK, body: `{"status":"ERROR","alert":{"message":"Unknown bill id"}}`, wantMsg: "Unknown bill id"},
		{name: "malformed", status: http.StatusOK, body: `{"status":"OK","bill":`, wantMsg: "malformed payload"},
		{name: "missing bill", status: http.StatusOK, body: `{"status":"OK"}`, wantMsg: "no bill object"},
		{name: "missing required", status: http.StatusOK, body: `{"status":"OK","bill":{"bill_id":1001,"state":"MN"}}`, wantMsg: "change_hash is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.FetchBill(context.Background(), 1001)
			var uerr *UpstreamError
			if !errors.As(err, &uerr) {
				t.Fatalf("expected UpstreamError, got %T %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestFetchBillUnreachable(t *testing.T) {
	client := NewLegiScanClient("http://127.0.0.1:1/", "k", time.Second)

	_, err := client.FetchBill(context.Background(), 1)
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UpstreamError, got %T %v", err, err)
	}
}

func TestFetchMasterList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != "MN" {
			t.Errorf("expected state MN, got %s", r.URL.Query().Get("state"))
		}
		w.Write([]byte(`{
		  "status": "OK",
		  "masterlist": {
		    "session": {"session_id": 2024, "state_id": 23, "session_name": "93rd Legislature"},
		    "0": {"bill_id": 1001, "number": "HF1", "change_hash": "abc", "status": 1, "status_date": "2024-01-01",
		          "last_action_date": "2024-02-01", "last_action": "Introduced", "title": "Education"},
		    "1": {"bill_id": 1002, "number": "HF2", "change_hash": "def", "title": "Roads"}
		  }
		}`))
	})

	list, err := client.FetchMasterList(context.Background(), "MN")
	if err != nil {
		t.Fatalf("FetchMasterList failed: %v", err)
	}
	if list.Session == nil || list.Session.SessionID != 2024 {
		t.Errorf("expected session 2024, got %+v", list.Session)
	}
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(list.Items))
	}
	if list.Items[1001].ChangeHash != "abc" || list.Items[1002].Number != "HF2" {
		t.Errorf("items not keyed by bill id: %+v", list.Items)
	}
}

func TestFetchMasterListRejectsItemWithoutHash(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","masterlist":{"0":{"bill_id":1001,"number":"HF1"}}}`))
	})

	_, err := client.FetchMasterList(context.Background(), "MN")
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}
