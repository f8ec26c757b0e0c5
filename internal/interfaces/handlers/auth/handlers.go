package auth

import (
	"context"
	"errors"

	authsvc "steward-backend/internal/application/auth"
	"steward-backend/internal/middleware"
	"steward-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const addressSessionsPrefix = "address_sessions:"

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	Auth   *authsvc.Service
	Rdb    *redis.Client
	Config middleware.SessionConfig
}

// LoginRequest body.
type LoginRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// Nonce GET /api/v1/auth/nonce?address= issues the message the wallet must sign.
func (h *Handlers) Nonce(c *fiber.Ctx) error {
	addr, err := authsvc.ParseAddress(c.Query("address"))
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	nonce, err := h.Auth.IssueNonce(c.UserContext(), addr)
	if err != nil {
		log.Error().Err(err).Str("address", addr.Hex()).Msg("auth/nonce: issue failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Nonce issued", fiber.Map{
		"address": addr.Hex(),
		"nonce":   nonce,
		"message": h.Auth.LoginMessage(addr, nonce),
	}, nil)
}

// Login POST /api/v1/auth/login verifies the signed nonce, opens a session and sets the cookie.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Address and signature are required", fiber.StatusBadRequest, nil)
	}
	if req.Address == "" || req.Signature == "" {
		return response.Error(c, "Address and signature are required", fiber.StatusBadRequest, nil)
	}
	addr, err := authsvc.ParseAddress(req.Address)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}

	ctx := c.UserContext()
	if err := h.Auth.Verify(ctx, addr, req.Signature); err != nil {
		switch {
		case errors.Is(err, authsvc.ErrNonceMissing),
			errors.Is(err, authsvc.ErrInvalidSignature),
			errors.Is(err, authsvc.ErrSignerMismatch):
			return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
		default:
			log.Error().Err(err).Str("address", addr.Hex()).Msg("auth/login: verify failed")
			return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
		}
	}

	sessionID := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{Address: addr.Hex()})
	if err := h.Rdb.SAdd(ctx, addressSessionsPrefix+addr.Hex(), sessionID).Err(); err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = middleware.SignSessionID(h.Config.Secret, sessionID)
	c.Cookie(&cookie)

	log.Info().Str("address", addr.Hex()).Msg("auth/login: success")
	return response.Success(c, "Login successful", fiber.Map{
		"user": authsvc.SessionUser{Address: addr.Hex()},
	}, nil)
}

// Me GET /api/v1/auth/me returns the signed-in address.
func (h *Handlers) Me(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	sessionUser := middleware.GetUser(c)

	addr, err := authsvc.VerifyUser(sessionUser)
	if err != nil {
		log.Debug().Str("path", "/auth/me").
			Bool("session_id_present", sessionID != "").
			Bool("session_user_nil", sessionUser == nil).
			Msg("auth/me: returning 401 Not authenticated")
		return response.Error(c, "Not authenticated", fiber.StatusUnauthorized, nil)
	}
	return response.Success(c, "Authenticated", fiber.Map{
		"user": authsvc.SessionUser{Address: addr.Hex()},
	}, nil)
}

// Logout DELETE /api/v1/auth/logout drops the session from Redis and clears the cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	ctx := context.Background()

	if addr, ok := middleware.Caller(c); ok && sessionID != "" {
		_ = h.Rdb.SRem(ctx, addressSessionsPrefix+addr.Hex(), sessionID).Err()
	}
	if sessionID != "" {
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	return response.Success(c, "Logged out successfully", nil, nil)
}
