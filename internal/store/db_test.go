package store

import (
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unique violation", err: &pq.Error{Code: "23505", Constraint: "users_email_key"}, want: ErrAlreadyExists},
		{name: "foreign key violation", err: &pq.Error{Code: "23503", Constraint: "followed_bills_bill_id_fkey"}, want: ErrNotFound},
		{name: "other pq error", err: &pq.Error{Code: "42P01"}, want: nil},
		{name: "plain error", err: errors.New("boom"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err)
			if tt.want == nil {
				if got != tt.err {
					t.Errorf("expected error to pass through, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestJSONParam(t *testing.T) {
	if jsonParam(nil) != nil {
		t.Error("expected nil for empty payload")
	}
	if got := jsonParam([]byte(`{"a":1}`)); got != `{"a":1}` {
		t.Errorf("expected text payload, got %#v", got)
	}
}
