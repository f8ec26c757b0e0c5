package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionConfig for the Redis-backed session. Secret signs the cookie.
type SessionConfig struct {
	Secret            string
	RedisURL          string
	AllowCrossSiteDev bool
	IsProduction      bool
}

const (
	SessionCookieName  = "steward.sid"
	SessionRedisPrefix = "session:"
	sessionMaxAge      = 24 * time.Hour

	sessionIDLocal    = "session_id"
	sessionDataLocal  = "session_data"
	sessionDirtyLocal = "session_dirty"
)

// SessionUser is the shape stored in session under "user".
type SessionUser struct {
	Address string `json:"address"`
}

// Session opens a Redis client from cfg.RedisURL and returns the session
// middleware over it. The client is shared with the other Redis consumers.
func Session(cfg SessionConfig) (fiber.Handler, *redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opt)
	return SessionWithClient(rdb, cfg.Secret), rdb, nil
}

func sessionSignature(secret, id string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	return base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
}

// SignSessionID returns the cookie value for id, "s:id.signature".
func SignSessionID(secret, id string) string {
	return "s:" + id + "." + sessionSignature(secret, id)
}

// sessionIDFromCookie returns the id of a correctly signed cookie value and
// "" for anything else.
func sessionIDFromCookie(secret, raw string) string {
	if !strings.HasPrefix(raw, "s:") {
		return ""
	}
	id, sig, ok := strings.Cut(raw[2:], ".")
	if !ok || id == "" {
		return ""
	}
	if !hmac.Equal([]byte(sig), []byte(sessionSignature(secret, id))) {
		return ""
	}
	return id
}

// SessionWithClient loads the session named by the cookie into Locals and
// writes it back after the handler when it was changed. Reads only refresh
// the TTL. Cookies not signed with secret are ignored.
func SessionWithClient(rdb *redis.Client, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		sessionID := sessionIDFromCookie(secret, c.Cookies(SessionCookieName))

		data := make(map[string]interface{})
		if sessionID != "" {
			if b, err := rdb.Get(ctx, SessionRedisPrefix+sessionID).Bytes(); err == nil {
				_ = json.Unmarshal(b, &data)
			}
		}
		c.Locals(sessionDataLocal, data)
		c.Locals(userLocal, data["user"])
		c.Locals(sessionIDLocal, sessionID)

		if err := c.Next(); err != nil {
			return err
		}

		sid := GetSessionID(c)
		if sid == "" {
			return nil
		}
		key := SessionRedisPrefix + sid
		if dirty, _ := c.Locals(sessionDirtyLocal).(bool); !dirty {
			rdb.Expire(ctx, key, sessionMaxAge)
			return nil
		}
		updated, _ := c.Locals(sessionDataLocal).(map[string]interface{})
		b, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		if err := rdb.Set(ctx, key, b, sessionMaxAge).Err(); err != nil {
			log.Error().Err(err).Str("session_id", sid).Msg("session save failed")
		}
		return nil
	}
}

// GetSessionID returns the current session ID from context (for login/logout).
func GetSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(sessionIDLocal).(string)
	return sid
}

// SetSessionUser stores the signed-in address and marks the session for save.
// Call RegenerateSessionID first.
func SetSessionUser(c *fiber.Ctx, user SessionUser) {
	data, _ := c.Locals(sessionDataLocal).(map[string]interface{})
	if data == nil {
		data = make(map[string]interface{})
	}
	data["user"] = map[string]interface{}{
		"address": user.Address,
	}
	c.Locals(sessionDataLocal, data)
	c.Locals(userLocal, data["user"])
	c.Locals(sessionDirtyLocal, true)
}

// RegenerateSessionID creates a new session ID and sets it in Locals (cookie set by handler).
func RegenerateSessionID(c *fiber.Ctx) string {
	newID := uuid.New().String()
	c.Locals(sessionIDLocal, newID)
	return newID
}

// DestroySession clears the session from Locals so nothing is written back;
// caller must clear cookie and Redis.
func DestroySession(c *fiber.Ctx) {
	c.Locals(sessionIDLocal, "")
	c.Locals(sessionDataLocal, make(map[string]interface{}))
	c.Locals(userLocal, nil)
	c.Locals(callerLocal, nil)
	c.Locals(sessionDirtyLocal, false)
}

// SessionCookieConfig returns the cookie options used by SetCookie/ClearCookie.
func SessionCookieConfig(cfg SessionConfig) fiber.Cookie {
	sameSite := fiber.CookieSameSiteLaxMode
	if cfg.AllowCrossSiteDev {
		sameSite = fiber.CookieSameSiteNoneMode
	}
	return fiber.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   cfg.IsProduction && cfg.AllowCrossSiteDev,
		SameSite: sameSite,
	}
}
