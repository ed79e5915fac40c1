package handlers

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/billwatch/internal/auth"
	"github.com/jjenkins/billwatch/internal/logger"
	"github.com/jjenkins/billwatch/internal/model"
	"github.com/jjenkins/billwatch/internal/store"
)

const userLocalsKey = "user"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RegisterHandler creates an account and returns a token for it
func RegisterHandler(users UserRepository, tokens Tokens, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req credentials
		if err := c.BodyParser(&req); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_body", "Invalid request body")
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
			return jsonError(c, fiber.StatusBadRequest, "invalid_email", "A valid email is required")
		}

		hash, err := auth.HashPassword(req.Password)
		if errors.Is(err, auth.ErrWeakPassword) {
			return jsonError(c, fiber.StatusBadRequest, "weak_password", err.Error())
		}
		if err != nil {
			return internalError(c, log, "Error registering user", err)
		}

		user := &model.User{
			Email:          email,
			HashedPassword: hash,
			FullName:       strings.TrimSpace(req.FullName),
			IsActive:       true,
		}
		if err := users.Create(c.UserContext(), user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return jsonError(c, fiber.StatusConflict, "email_taken", "Email already registered")
			}
			return internalError(c, log, "Error registering user", err)
		}

		log.Info("user registered", "user_id", user.ID)
		return issueToken(c, tokens, log, email, fiber.StatusCreated)
	}
}

// LoginHandler exchanges a username and password for a token
func LoginHandler(users UserRepository, tokens Tokens, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req credentials
		if err := c.BodyParser(&req); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_body", "Invalid request body")
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		user, err := users.GetByEmail(c.UserContext(), email)
		if err != nil {
			return internalError(c, log, "Error logging in", err)
		}
		if user == nil || !auth.CheckPassword(user.HashedPassword, req.Password) {
			return jsonError(c, fiber.StatusUnauthorized, "invalid_credentials", "Incorrect email or password")
		}
		if !user.IsActive {
			return jsonError(c, fiber.StatusForbidden, "inactive_user", "Account is disabled")
		}

		return issueToken(c, tokens, log, user.Email, fiber.StatusOK)
	}
}

func issueToken(c *fiber.Ctx, tokens Tokens, log *logger.Logger, email string, status int) error {
	token, err := tokens.Issue(email)
	if err != nil {
		return internalError(c, log, "Error issuing token", err)
	}
	return c.Status(status).JSON(tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// AuthMiddleware requires a valid bearer token and stores the user in Locals
func AuthMiddleware(tokens Tokens, users UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing bearer token")
		}

		email, err := tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid or expired token")
		}

		user, err := users.GetByEmail(c.UserContext(), email)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Error loading user")
		}
		if user == nil || !user.IsActive {
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Unknown user")
		}

		c.Locals(userLocalsKey, user)
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *model.User {
	user, _ := c.Locals(userLocalsKey).(*model.User)
	return user
}
