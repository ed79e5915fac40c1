package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/jjenkins/billwatch/internal/model"
)

var statusNames = map[int]string{
	0: "N/A",
	1: "Introduced",
	2: "Engrossed",
	3: "Enrolled",
	4: "Passed",
	5: "Vetoed",
	6: "Failed",
}

// StatusName is the display label of an upstream status code
func StatusName(status int) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return fmt.Sprintf("Status %d", status)
}

// BillPage renders a single bill with its AI analysis
func BillPage(detail *model.BillDetail) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := detail.Bill
		var sb strings.Builder

		sb.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		fmt.Fprintf(&sb, `<title>%s %s</title>`, esc(b.State), esc(b.BillNumber))
		sb.WriteString(`</head><body><main class="bill">`)

		fmt.Fprintf(&sb, `<h1>%s %s</h1>`, esc(b.State), esc(b.BillNumber))
		fmt.Fprintf(&sb, `<h2>%s</h2>`, esc(b.Title))
		if b.Description != "" && b.Description != b.Title {
			fmt.Fprintf(&sb, `<p class="description">%s</p>`, esc(b.Description))
		}

		sb.WriteString(`<dl class="meta">`)
		fmt.Fprintf(&sb, `<dt>Status</dt><dd>%s</dd>`, esc(StatusName(b.Status)))
		if b.StatusDate.Valid {
			fmt.Fprintf(&sb, `<dt>Status date</dt><dd>%s</dd>`, b.StatusDate.Time.Format("2006-01-02"))
		}
		if b.LastUpdated.Valid {
			fmt.Fprintf(&sb, `<dt>Last action</dt><dd>%s</dd>`, b.LastUpdated.Time.Format("2006-01-02"))
		}
		if detail.Session != nil {
			fmt.Fprintf(&sb, `<dt>Session</dt><dd>%s</dd>`, esc(detail.Session.SessionName))
		}
		sb.WriteString(`</dl>`)

		if b.StateLink != "" {
			fmt.Fprintf(&sb, `<p><a href="%s">View on state legislature site</a></p>`, esc(b.StateLink))
		}

		writeSponsors(&sb, detail.Sponsors)
		writeAnalysis(&sb, b)

		sb.WriteString(`</main></body></html>`)

		_, err := io.WriteString(w, sb.String())
		return err
	})
}

func writeSponsors(sb *strings.Builder, sponsors []model.Sponsor) {
	if len(sponsors) == 0 {
		return
	}
	sb.WriteString(`<section class="sponsors"><h3>Sponsors</h3><ul>`)
	for _, s := range sponsors {
		if s.Party != "" {
			fmt.Fprintf(sb, `<li>%s (%s)</li>`, esc(s.Name), esc(s.Party))
		} else {
			fmt.Fprintf(sb, `<li>%s</li>`, esc(s.Name))
		}
	}
	sb.WriteString(`</ul></section>`)
}

func writeAnalysis(sb *strings.Builder, b model.Bill) {
	sb.WriteString(`<section class="analysis"><h3>AI Summary</h3>`)
	if b.AISummary == "" {
		sb.WriteString(`<p class="empty">No summary has been generated for this bill yet.</p></section>`)
		return
	}

	fmt.Fprintf(sb, `<p>%s</p>`, esc(b.AISummary))

	if len(b.AIImpacts) > 0 {
		sb.WriteString(`<h4>Impacts</h4><ul class="impacts">`)
		for _, imp := range b.AIImpacts {
			fmt.Fprintf(sb, `<li><strong>%s</strong>: %s</li>`, esc(imp.Category), esc(imp.Description))
		}
		sb.WriteString(`</ul>`)
	}

	var pros, cons []string
	for _, pc := range b.AIProCon {
		switch pc.Type {
		case model.ProConPro:
			pros = append(pros, pc.Argument)
		case model.ProConCon:
			cons = append(cons, pc.Argument)
		}
	}
	writeList(sb, "Arguments for", "pros", pros)
	writeList(sb, "Arguments against", "cons", cons)

	if b.AIGeneratedAt.Valid {
		fmt.Fprintf(sb, `<p class="generated">Generated %s</p>`, b.AIGeneratedAt.Time.Format("2006-01-02 15:04 MST"))
	}
	sb.WriteString(`</section>`)
}

func writeList(sb *strings.Builder, heading, class string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, `<h4>%s</h4><ul class="%s">`, heading, class)
	for _, item := range items {
		fmt.Fprintf(sb, `<li>%s</li>`, esc(item))
	}
	sb.WriteString(`</ul>`)
}

func esc(s string) string {
	return templ.EscapeString(s)
}
