package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/billwatch/internal/logger"
	"github.com/jjenkins/billwatch/internal/store"
)

type watchlistResponse struct {
	BillID     int       `json:"bill_id"`
	Title      string    `json:"title"`
	FollowedAt time.Time `json:"followed_at"`
}

func WatchlistHandler(watchlist WatchlistRepository, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := currentUser(c)

		entries, err := watchlist.List(c.UserContext(), user.ID)
		if err != nil {
			return internalError(c, log, "Error loading watchlist", err)
		}

		resp := make([]watchlistResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, watchlistResponse{BillID: e.BillID, Title: e.Title, FollowedAt: e.CreatedAt})
		}
		return c.JSON(resp)
	}
}

func FollowHandler(watchlist WatchlistRepository, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := billID(c, "bill_id")
		if !ok {
			return jsonError(c, fiber.StatusBadRequest, "invalid_bill_id", "Invalid bill id")
		}

		err := watchlist.Follow(c.UserContext(), currentUser(c).ID, id)
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			return jsonError(c, fiber.StatusConflict, "already_following", "Bill already followed")
		case errors.Is(err, store.ErrNotFound):
			return jsonError(c, fiber.StatusNotFound, "bill_not_found", "Bill not found")
		case err != nil:
			return internalError(c, log, "Error following bill", err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"bill_id": id, "following": true})
	}
}

func UnfollowHandler(watchlist WatchlistRepository, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := billID(c, "bill_id")
		if !ok {
			return jsonError(c, fiber.StatusBadRequest, "invalid_bill_id", "Invalid bill id")
		}

		err := watchlist.Unfollow(c.UserContext(), currentUser(c).ID, id)
		if errors.Is(err, store.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_following", "Bill is not followed")
		}
		if err != nil {
			return internalError(c, log, "Error unfollowing bill", err)
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
