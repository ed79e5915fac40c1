package handlers

import (
	"context"
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/billwatch/internal/logger"
	"github.com/jjenkins/billwatch/internal/model"
	"github.com/jjenkins/billwatch/internal/service"
)

// BillReader loads stored bills
type BillReader interface {
	GetBillDetail(ctx context.Context, billID int) (*model.BillDetail, error)
	ListByState(ctx context.Context, state string, limit, offset int) ([]model.BillListItem, int, error)
}

// BillSyncer refreshes one bill from upstream
type BillSyncer interface {
	SyncBill(ctx context.Context, billID int) (*service.BillSyncResult, error)
}

// AnalysisRegenerator forces a new AI analysis
type AnalysisRegenerator interface {
	Enrich(ctx context.Context, billID int, mode service.EnrichMode) (*model.Analysis, error)
}

type StateLister interface {
	ListWithCounts(ctx context.Context) ([]model.StateBillCount, error)
	Exists(ctx context.Context, code string) (bool, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type WatchlistRepository interface {
	Follow(ctx context.Context, userID, billID int) error
	Unfollow(ctx context.Context, userID, billID int) error
	List(ctx context.Context, userID int) ([]model.WatchlistEntry, error)
}

type PostRepository interface {
	Create(ctx context.Context, p *model.Post) error
	ListByBill(ctx context.Context, billID int) ([]model.Post, error)
}

// MetricsReader returns the latest stored system metrics
type MetricsReader interface {
	GetLatestMetrics(ctx context.Context) (map[string]string, error)
}

// Tokens issues and verifies bearer tokens
type Tokens interface {
	Issue(email string) (string, error)
	Verify(token string) (string, error)
}

// Deps is everything the routes need. Syncer and Enricher may be nil, in
// which case bill lookups serve the local copy and regeneration is unavailable.
type Deps struct {
	Bills     BillReader
	Syncer    BillSyncer
	Enricher  AnalysisRegenerator
	States    StateLister
	Users     UserRepository
	Watchlist WatchlistRepository
	Posts     PostRepository
	Metrics   MetricsReader
	Tokens    Tokens
	Logger    *logger.Logger
}

// Routes registers every endpoint on app
func Routes(app *fiber.App, d Deps) {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	requireAuth := AuthMiddleware(d.Tokens, d.Users)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", MetricsHandler(d.Metrics, d.Logger))
	app.Get("/states", StatesHandler(d.States, d.Logger))
	app.Get("/states/:state/bills", StateBillsHandler(d.States, d.Bills, d.Logger))

	app.Get("/bills/:id", BillHandler(d.Bills, d.Syncer, d.Logger))
	app.Get("/bills/:id/view", BillViewHandler(d.Bills, d.Logger))
	app.Get("/bills/:id/ai", AnalysisHandler(d.Bills, d.Logger))
	app.Post("/bills/:id/ai/regenerate", RegenerateHandler(d.Enricher, d.Logger))
	app.Get("/bills/:id/posts", PostsHandler(d.Posts, d.Logger))
	app.Post("/bills/:id/posts", requireAuth, CreatePostHandler(d.Posts, d.Logger))

	app.Post("/users/register", RegisterHandler(d.Users, d.Tokens, d.Logger))
	app.Post("/users/login", LoginHandler(d.Users, d.Tokens, d.Logger))

	app.Get("/watchlist", requireAuth, WatchlistHandler(d.Watchlist, d.Logger))
	app.Post("/watchlist/:bill_id", requireAuth, FollowHandler(d.Watchlist, d.Logger))
	app.Delete("/watchlist/:bill_id", requireAuth, UnfollowHandler(d.Watchlist, d.Logger))
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": errorBody{Code: code, Message: message}})
}

func internalError(c *fiber.Ctx, log *logger.Logger, msg string, err error) error {
	log.Error(msg, "path", c.Path(), "error", err)
	return jsonError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// billID parses a positive integer route parameter
func billID(c *fiber.Ctx, name string) (int, bool) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func formatDate(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	s := t.Time.Format("2006-01-02")
	return &s
}
