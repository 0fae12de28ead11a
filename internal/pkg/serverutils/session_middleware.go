package serverutils

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const SessionHeader = "X-Session-Id"

// SessionMiddleware resolves the client session id carried in X-Session-Id.
// A missing or malformed id gets a fresh uuid; the resolved id is echoed back
// so the client can store it. There is no authentication here, a session id
// only scopes state.
func SessionMiddleware(ctx *fiber.Ctx) error {
	raw := ctx.Get(SessionHeader)
	sessionId, err := uuid.Parse(raw)
	if raw == "" || err != nil {
		sessionId = uuid.New()
	}
	ctx.Locals("session_id", sessionId.String())
	ctx.Set(SessionHeader, sessionId.String())
	return ctx.Next()
}

// SessionID extracts the session id resolved by SessionMiddleware.
func SessionID(ctx *fiber.Ctx) uuid.UUID {
	raw, _ := ctx.Locals("session_id").(string)
	id, _ := uuid.Parse(raw)
	return id
}
