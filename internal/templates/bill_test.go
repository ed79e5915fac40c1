package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jjenkins/billwatch/internal/model"
)

func TestBillPageRendersAnalysis(t *testing.T) {
	detail := &model.BillDetail{
		Bill: model.Bill{
			ID:         1001,
			State:      "MN",
			BillNumber: "HF1",
			Title:      "Education <funding>",
			Status:     1,
			AISummary:  "Raises per-pupil funding.",
			AIImpacts:  []model.Impact{{Category: "Education", Description: "More money for schools"}},
			AIProCon: []model.ProCon{
				{Type: model.ProConPro, Argument: "Smaller classes"},
				{Type: model.ProConCon, Argument: "Costs more"},
			},
		},
		Sponsors: []model.Sponsor{{Name: "Jane Doe", Party: "D"}},
	}

	var buf bytes.Buffer
	if err := BillPage(detail).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"MN HF1",
		"Education &lt;funding&gt;",
		"Introduced",
		"Raises per-pupil funding.",
		"More money for schools",
		`<ul class="pros"><li>Smaller classes</li>`,
		`<ul class="cons"><li>Costs more</li>`,
		"Jane Doe (D)",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
}

func TestBillPageWithoutAnalysis(t *testing.T) {
	detail := &model.BillDetail{Bill: model.Bill{State: "MN", BillNumber: "HF2", Title: "Roads"}}

	var buf bytes.Buffer
	if err := BillPage(detail).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No summary has been generated") {
		t.Error("expected empty analysis notice")
	}
}

func TestStatusName(t *testing.T) {
	if StatusName(4) != "Passed" {
		t.Errorf("expected Passed, got %s", StatusName(4))
	}
	if StatusName(42) != "Status 42" {
		t.Errorf("expected fallback label, got %s", StatusName(42))
	}
}
