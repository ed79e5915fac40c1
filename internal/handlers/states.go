package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/billwatch/internal/logger"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type stateResponse struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	ActiveBills int    `json:"active_bills"`
}

type billListResponse struct {
	BillID         int     `json:"bill_id"`
	Number         string  `json:"number"`
	ChangeHash     string  `json:"change_hash"`
	URL            string  `json:"url"`
	Status         int     `json:"status"`
	StatusDate     *string `json:"status_date"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	LastActionDate *string `json:"last_action_date"`
	LastAction     *string `json:"last_action"`
}

type pageResponse struct {
	Bills      []billListResponse `json:"bills"`
	Total      int                `json:"total"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
	NextOffset *int               `json:"next_offset"`
	PrevOffset *int               `json:"prev_offset"`
}

func MetricsHandler(metrics MetricsReader, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		values, err := metrics.GetLatestMetrics(c.UserContext())
		if err != nil {
			return internalError(c, log, "Error loading metrics", err)
		}
		return c.JSON(fiber.Map{"metrics": values})
	}
}

// StatesHandler lists the tracked states
func StatesHandler(states StateLister, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := states.ListWithCounts(c.UserContext())
		if err != nil {
			return internalError(c, log, "Error loading states", err)
		}

		resp := make([]stateResponse, 0, len(list))
		for _, s := range list {
			resp = append(resp, stateResponse{Code: s.Code, Name: s.Name, ActiveBills: s.ActiveBills})
		}
		return c.JSON(resp)
	}
}

// StateBillsHandler lists a state's bills, newest activity first, with limit/offset paging
func StateBillsHandler(states StateLister, bills BillReader, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		code := strings.ToUpper(c.Params("state"))

		limit, offset, msg := pagination(c.Query("limit"), c.Query("offset"))
		if msg != "" {
			return jsonError(c, fiber.StatusBadRequest, "invalid_pagination", msg)
		}

		ok, err := states.Exists(ctx, code)
		if err != nil {
			return internalError(c, log, "Error loading state", err)
		}
		if !ok {
			return jsonError(c, fiber.StatusNotFound, "state_not_found", "State not found")
		}

		items, total, err := bills.ListByState(ctx, code, limit, offset)
		if err != nil {
			return internalError(c, log, "Error loading bills", err)
		}

		page := pageResponse{
			Bills:  make([]billListResponse, 0, len(items)),
			Total:  total,
			Limit:  limit,
			Offset: offset,
		}
		for _, it := range items {
			item := billListResponse{
				BillID:         it.BillID,
				Number:         it.Number,
				ChangeHash:     it.ChangeHash,
				URL:            it.URL,
				Status:         it.Status,
				StatusDate:     formatDate(it.StatusDate),
				Title:          it.Title,
				Description:    it.Description,
				LastActionDate: formatDate(it.LastActionDate),
			}
			if it.LastAction.Valid {
				item.LastAction = &it.LastAction.String
			}
			page.Bills = append(page.Bills, item)
		}
		page.NextOffset, page.PrevOffset = pageOffsets(limit, offset, total)

		return c.JSON(page)
	}
}

// pagination validates the limit and offset query values. A non-empty msg
// describes the first invalid value.
func pagination(rawLimit, rawOffset string) (limit, offset int, msg string) {
	limit = defaultPageSize
	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n < 1 || n > maxPageSize {
			return 0, 0, "limit must be between 1 and 100"
		}
		limit = n
	}
	if rawOffset != "" {
		n, err := strconv.Atoi(rawOffset)
		if err != nil || n < 0 {
			return 0, 0, "offset must be a non-negative integer"
		}
		offset = n
	}
	return limit, offset, ""
}

func pageOffsets(limit, offset, total int) (next, prev *int) {
	if offset+limit < total {
		n := offset + limit
		next = &n
	}
	if offset > 0 {
		p := offset - limit
		if p < 0 {
			p = 0
		}
		prev = &p
	}
	return next, prev
}
