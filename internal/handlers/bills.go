package handlers

import (
	"errors"
	"time"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/jjenkins/billwatch/internal/logger"
	"github.com/jjenkins/billwatch/internal/model"
	"github.com/jjenkins/billwatch/internal/service"
	"github.com/jjenkins/billwatch/internal/templates"
)

type sessionResponse struct {
	SessionID    int    `json:"session_id"`
	StateID      int    `json:"state_id"`
	YearStart    int    `json:"year_start"`
	YearEnd      int    `json:"year_end"`
	Prefile      int    `json:"prefile"`
	SineDie      int    `json:"sine_die"`
	Prior        int    `json:"prior"`
	Special      int    `json:"special"`
	SessionTag   string `json:"session_tag"`
	SessionTitle string `json:"session_title"`
	SessionName  string `json:"session_name"`
}

type sponsorResponse struct {
	PeopleID      int    `json:"people_id"`
	Name          string `json:"name"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Party         string `json:"party"`
	Role          string `json:"role"`
	District      string `json:"district"`
	SponsorTypeID int    `json:"sponsor_type_id"`
	SponsorOrder  int    `json:"sponsor_order"`
	Ballotpedia   string `json:"ballotpedia"`
}

type historyResponse struct {
	Date       *string `json:"date"`
	Action     string  `json:"action"`
	Chamber    string  `json:"chamber"`
	Importance int     `json:"importance"`
}

type referralResponse struct {
	Date        *string `json:"date"`
	CommitteeID int     `json:"committee_id"`
	Chamber     string  `json:"chamber"`
	Name        string  `json:"name"`
}

type textResponse struct {
	DocID     int     `json:"doc_id"`
	Date      *string `json:"date"`
	Type      string  `json:"type"`
	Mime      string  `json:"mime"`
	URL       string  `json:"url"`
	StateLink string  `json:"state_link"`
	TextSize  int     `json:"text_size"`
	TextHash  string  `json:"text_hash"`
}

type calendarResponse struct {
	Type        string  `json:"type"`
	Date        *string `json:"date"`
	Time        string  `json:"time"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
}

type sastResponse struct {
	Type           string `json:"type"`
	SastBillNumber string `json:"sast_bill_number"`
	SastBillID     int    `json:"sast_bill_id"`
}

type analysisResponse struct {
	Summary     string         `json:"summary"`
	Impacts     []model.Impact `json:"impacts"`
	ProsCons    []model.ProCon `json:"pros_cons"`
	GeneratedAt *time.Time     `json:"generated_at"`
}

type billResponse struct {
	BillID      int                `json:"bill_id"`
	BillNumber  string             `json:"bill_number"`
	ChangeHash  string             `json:"change_hash"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	State       string             `json:"state"`
	Status      int                `json:"status"`
	StatusDate  *string            `json:"status_date"`
	LastUpdated *string            `json:"last_updated"`
	URL         string             `json:"url"`
	StateLink   string             `json:"state_link"`
	BillType    string             `json:"bill_type"`
	Body        string             `json:"body"`
	CurrentBody string             `json:"current_body"`
	Session     *sessionResponse   `json:"session"`
	Sponsors    []sponsorResponse  `json:"sponsors"`
	History     []historyResponse  `json:"history"`
	Referrals   []referralResponse `json:"referrals"`
	Texts       []textResponse     `json:"texts"`
	Calendar    []calendarResponse `json:"calendar"`
	Sasts       []sastResponse     `json:"sasts"`
	Analysis    *analysisResponse  `json:"analysis"`
	LastSynced  time.Time          `json:"last_synced_at"`
}

// BillHandler refreshes a bill from upstream and returns the stored copy.
// ?sync=false skips the refresh.
func BillHandler(bills BillReader, syncer BillSyncer, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		id, ok := billID(c, "id")
		if !ok {
			return jsonError(c, fiber.StatusBadRequest, "invalid_bill_id", "Invalid bill id")
		}

		if syncer != nil && c.Query("sync") != "false" {
			res, err := syncer.SyncBill(ctx, id)
			var uerr *service.UpstreamError
			var derr *service.DateParseError
			switch {
			case errors.As(err, &uerr):
				log.Warn("upstream lookup failed", "bill_id", id, "error", err)
				return jsonError(c, fiber.StatusNotFound, "bill_not_found", "Bill not found")
			case errors.As(err, &derr):
				log.Error("upstream bill has invalid dates", "bill_id", id, "error", err)
				return jsonError(c, fiber.StatusBadGateway, "invalid_upstream_data", err.Error())
			case err != nil:
				return internalError(c, log, "Error syncing bill", err)
			}
			if res.EnrichErr != nil {
				log.Warn("enrichment failed", "bill_id", id, "error", res.EnrichErr)
			}
		}

		detail, err := bills.GetBillDetail(ctx, id)
		if err != nil {
			return internalError(c, log, "Error loading bill", err)
		}
		if detail == nil {
			return jsonError(c, fiber.StatusNotFound, "bill_not_found", "Bill not found")
		}

		return c.JSON(newBillResponse(detail))
	}
}

// BillViewHandler renders the bill page as HTML
func BillViewHandler(bills BillReader, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := billID(c, "id")
		if !ok {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid bill id")
		}

		detail, err := bills.GetBillDetail(c.UserContext(), id)
		if err != nil {
			log.Error("Error loading bill", "bill_id", id, "error", err)
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading bill")
		}
		if detail == nil {
			return c.Status(fiber.StatusNotFound).SendString("Bill not found")
		}

		page := templates.BillPage(detail)
		handler := adaptor.HTTPHandler(templ.Handler(page))

		return handler(c)
	}
}

// AnalysisHandler returns the stored analysis. 404 until one is generated.
func AnalysisHandler(bills BillReader, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := billID(c, "id")
		if !ok {
			return jsonError(c, fiber.StatusBadRequest, "invalid_bill_id", "Invalid bill id")
		}

		detail, err := bills.GetBillDetail(c.UserContext(), id)
		if err != nil {
			return internalError(c, log, "Error loading bill", err)
		}
		if detail == nil {
			return jsonError(c, fiber.StatusNotFound, "bill_not_found", "Bill not found")
		}

		analysis := newAnalysisResponse(detail.Bill)
		if analysis == nil {
			return jsonError(c, fiber.StatusNotFound, "analysis_not_found", "No analysis has been generated for this bill")
		}
		return c.JSON(analysis)
	}
}

// RegenerateHandler forces a new analysis regardless of the stored fingerprint
func RegenerateHandler(enricher AnalysisRegenerator, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if enricher == nil {
			return jsonError(c, fiber.StatusServiceUnavailable, "ai_disabled", "AI analysis is not configured")
		}

		id, ok := billID(c, "id")
		if !ok {
			return jsonError(c, fiber.StatusBadRequest, "invalid_bill_id", "Invalid bill id")
		}

		mode, err := service.ParseEnrichMode(c.Query("mode", string(service.EnrichLatest)))
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_mode", err.Error())
		}

		analysis, err := enricher.Enrich(c.UserContext(), id, mode)
		var perr *service.ParseFailure
		var terr *service.TransportFailure
		switch {
		case errors.Is(err, service.ErrBillNotFound):
			return jsonError(c, fiber.StatusNotFound, "bill_not_found", "Bill not found")
		case errors.Is(err, service.ErrNoBillTexts):
			return jsonError(c, fiber.StatusNotFound, "no_bill_texts", "No bill texts found")
		case errors.Is(err, service.ErrNoTextExtracted):
			return jsonError(c, fiber.StatusUnprocessableEntity, "no_text_extracted", "Failed to extract any text from bill documents")
		case errors.As(err, &perr), errors.As(err, &terr):
			log.Warn("analysis generation failed", "bill_id", id, "error", err)
			return jsonError(c, fiber.StatusBadGateway, "ai_failed", err.Error())
		case err != nil:
			return internalError(c, log, "Error generating analysis", err)
		}

		now := time.Now().UTC()
		return c.JSON(analysisResponse{
			Summary:     analysis.Summary,
			Impacts:     nonNil(analysis.Impacts),
			ProsCons:    nonNil(analysis.ProsCons),
			GeneratedAt: &now,
		})
	}
}

func newAnalysisResponse(b model.Bill) *analysisResponse {
	if b.AISummary == "" {
		return nil
	}
	resp := &analysisResponse{
		Summary:  b.AISummary,
		Impacts:  nonNil(b.AIImpacts),
		ProsCons: nonNil(b.AIProCon),
	}
	if b.AIGeneratedAt.Valid {
		t := b.AIGeneratedAt.Time
		resp.GeneratedAt = &t
	}
	return resp
}

func newBillResponse(d *model.BillDetail) billResponse {
	b := d.Bill
	resp := billResponse{
		BillID:      b.ID,
		BillNumber:  b.BillNumber,
		ChangeHash:  b.ChangeHash,
		Title:       b.Title,
		Description: b.Description,
		State:       b.State,
		Status:      b.Status,
		StatusDate:  formatDate(b.StatusDate),
		LastUpdated: formatDate(b.LastUpdated),
		URL:         b.URL,
		StateLink:   b.StateLink,
		BillType:    b.BillType,
		Body:        b.Body,
		CurrentBody: b.CurrentBody,
		Sponsors:    make([]sponsorResponse, 0, len(d.Sponsors)),
		History:     make([]historyResponse, 0, len(d.History)),
		Referrals:   make([]referralResponse, 0, len(d.Referrals)),
		Texts:       make([]textResponse, 0, len(d.Texts)),
		Calendar:    make([]calendarResponse, 0, len(d.Calendar)),
		Sasts:       make([]sastResponse, 0, len(d.Sasts)),
		Analysis:    newAnalysisResponse(b),
		LastSynced:  b.LastSyncedAt,
	}

	if s := d.Session; s != nil {
		resp.Session = &sessionResponse{
			SessionID:    s.ID,
			StateID:      s.StateID,
			YearStart:    s.YearStart,
			YearEnd:      s.YearEnd,
			Prefile:      s.Prefile,
			SineDie:      s.SineDie,
			Prior:        s.Prior,
			Special:      s.Special,
			SessionTag:   s.SessionTag,
			SessionTitle: s.SessionTitle,
			SessionName:  s.SessionName,
		}
	}
	for _, s := range d.Sponsors {
		resp.Sponsors = append(resp.Sponsors, sponsorResponse{
			PeopleID:      s.PeopleID,
			Name:          s.Name,
			FirstName:     s.FirstName,
			LastName:      s.LastName,
			Party:         s.Party,
			Role:          s.Role,
			District:      s.District,
			SponsorTypeID: s.SponsorTypeID,
			SponsorOrder:  s.SponsorOrder,
			Ballotpedia:   s.Ballotpedia,
		})
	}
	for _, h := range d.History {
		resp.History = append(resp.History, historyResponse{
			Date:       formatDate(h.Date),
			Action:     h.Action,
			Chamber:    h.Chamber,
			Importance: h.Importance,
		})
	}
	for _, r := range d.Referrals {
		resp.Referrals = append(resp.Referrals, referralResponse{
			Date:        formatDate(r.Date),
			CommitteeID: r.CommitteeID,
			Chamber:     r.Chamber,
			Name:        r.Name,
		})
	}
	for _, t := range d.Texts {
		resp.Texts = append(resp.Texts, textResponse{
			DocID:     t.DocID,
			Date:      formatDate(t.Date),
			Type:      t.Type,
			Mime:      t.Mime,
			URL:       t.URL,
			StateLink: t.StateLink,
			TextSize:  t.TextSize,
			TextHash:  t.TextHash,
		})
	}
	for _, e := range d.Calendar {
		resp.Calendar = append(resp.Calendar, calendarResponse{
			Type:        e.Type,
			Date:        formatDate(e.Date),
			Time:        e.Time,
			Location:    e.Location,
			Description: e.Description,
		})
	}
	for _, s := range d.Sasts {
		resp.Sasts = append(resp.Sasts, sastResponse{
			Type:           s.Type,
			SastBillNumber: s.SastBillNumber,
			SastBillID:     s.SastBillID,
		})
	}

	return resp
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
