package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/billwatch/internal/logger"
	"github.com/jjenkins/billwatch/internal/model"
	"github.com/jjenkins/billwatch/internal/store"
)

type postResponse struct {
	ID        int       `json:"id"`
	BillID    int       `json:"bill_id"`
	UserID    int       `json:"user_id"`
	Content   string    `json:"content"`
	Upvotes   int       `json:"upvotes"`
	Downvotes int       `json:"downvotes"`
	CreatedAt time.Time `json:"created_at"`
}

func PostsHandler(posts PostRepository, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := billID(c, "id")
		if !ok {
			return jsonError(c, fiber.StatusBadRequest, "invalid_bill_id", "Invalid bill id")
		}

		list, err := posts.ListByBill(c.UserContext(), id)
		if err != nil {
			return internalError(c, log, "Error loading posts", err)
		}

		resp := make([]postResponse, 0, len(list))
		for _, p := range list {
			resp = append(resp, newPostResponse(p))
		}
		return c.JSON(resp)
	}
}

func CreatePostHandler(posts PostRepository, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := billID(c, "id")
		if !ok {
			return jsonError(c, fiber.StatusBadRequest, "invalid_bill_id", "Invalid bill id")
		}

		var req struct {
			Content string `json:"content"`
		}
		if err := c.BodyParser(&req); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_body", "Invalid request body")
		}
		if len(req.Content) == 0 || len(req.Content) > 10000 {
			return jsonError(c, fiber.StatusBadRequest, "invalid_content", "Content must be between 1 and 10000 characters")
		}

		post := &model.Post{BillID: id, UserID: currentUser(c).ID, Content: req.Content}
		err := posts.Create(c.UserContext(), post)
		if errors.Is(err, store.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "bill_not_found", "Bill not found")
		}
		if err != nil {
			return internalError(c, log, "Error creating post", err)
		}

		return c.Status(fiber.StatusCreated).JSON(newPostResponse(*post))
	}
}

func newPostResponse(p model.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		BillID:    p.BillID,
		UserID:    p.UserID,
		Content:   p.Content,
		Upvotes:   p.Upvotes,
		Downvotes: p.Downvotes,
		CreatedAt: p.CreatedAt,
	}
}
