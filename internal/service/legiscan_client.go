package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jjenkins/billwatch/internal/model"
)

const (
	defaultLegiScanURL = "https://api.legiscan.com/"
	defaultTimeout     = 30 * time.Second
	maxResponseBytes   = 32 << 20
)

// LegiScanClient handles communication with the LegiScan API.
// It never retries; callers decide whether a failed bill is worth another attempt.
type LegiScanClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewLegiScanClient creates a new LegiScan API client
func NewLegiScanClient(baseURL, apiKey string, timeout time.Duration) *LegiScanClient {
	if baseURL == "" {
		baseURL = defaultLegiScanURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &LegiScanClient{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// envelope is the outer shape shared by every LegiScan operation
type envelope struct {
	Status string `json:"status"`
	Alert  *struct {
		Message string `json:"message"`
	} `json:"alert"`
}

type billResponse struct {
	envelope
	Bill json.RawMessage `json:"bill"`
}

type masterListResponse struct {
	envelope
	MasterList map[string]json.RawMessage `json:"masterlist"`
}

// FetchBill retrieves a single bill record
func (c *LegiScanClient) FetchBill(ctx context.Context, billID int) (*model.BillRecord, error) {
	target := strconv.Itoa(billID)
	body, err := c.fetch(ctx, "getBill", url.Values{"id": {target}})
	if err != nil {
		return nil, &UpstreamError{Op: "getBill", Target: target, Err: err}
	}

	var resp billResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{Op: "getBill", Target: target, Message: "malformed payload", Err: err}
	}
	if err := resp.check("getBill", target); err != nil {
		return nil, err
	}
	if len(resp.Bill) == 0 || bytes.Equal(resp.Bill, []byte("null")) {
		return nil, &UpstreamError{Op: "getBill", Target: target, Message: "response has no bill object"}
	}

	var record model.BillRecord
	if err := json.Unmarshal(resp.Bill, &record); err != nil {
		return nil, &UpstreamError{Op: "getBill", Target: target, Message: "malformed bill object", Err: err}
	}
	if err := record.Validate(); err != nil {
		return nil, &UpstreamError{Op: "getBill", Target: target, Message: "invalid bill object", Err: err}
	}
	record.Raw = resp.Bill

	return &record, nil
}

// FetchMasterList retrieves the summary listing of every bill in a state's current session
func (c *LegiScanClient) FetchMasterList(ctx context.Context, state string) (*model.MasterList, error) {
	body, err := c.fetch(ctx, "getMasterList", url.Values{"state": {state}})
	if err != nil {
		return nil, &UpstreamError{Op: "getMasterList", Target: state, Err: err}
	}

	var resp masterListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{Op: "getMasterList", Target: state, Message: "malformed payload", Err: err}
	}
	if err := resp.check("getMasterList", state); err != nil {
		return nil, err
	}
	if resp.MasterList == nil {
		return nil, &UpstreamError{Op: "getMasterList", Target: state, Message: "response has no masterlist"}
	}

	list := &model.MasterList{
		State: state,
		Items: make(map[int]model.ListItem, len(resp.MasterList)),
	}

	for key, raw := range resp.MasterList {
		if key == "session" {
			var session model.SessionInfo
			if err := json.Unmarshal(raw, &session); err != nil {
				return nil, &UpstreamError{Op: "getMasterList", Target: state, Message: "malformed session", Err: err}
			}
			list.Session = &session
			continue
		}

		// Entries other than bill objects are ignored
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}

		var item model.ListItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &UpstreamError{Op: "getMasterList", Target: state, Message: fmt.Sprintf("malformed entry %s", key), Err: err}
		}
		if err := item.Validate(); err != nil {
			return nil, &UpstreamError{Op: "getMasterList", Target: state, Message: fmt.Sprintf("invalid entry %s", key), Err: err}
		}
		list.Items[int(item.BillID)] = item
	}

	return list, nil
}

func (e envelope) check(op, target string) error {
	if e.Status == "OK" {
		return nil
	}
	uerr := &UpstreamError{Op: op, Target: target, Status: e.Status}
	if e.Alert != nil {
		uerr.Message = e.Alert.Message
	}
	if uerr.Status == "" {
		uerr.Message = "response has no status"
	}
	return uerr
}

// fetch performs a single HTTP GET against the API
func (c *LegiScanClient) fetch(ctx context.Context, op string, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	q.Set("op", op)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return body, nil
}
