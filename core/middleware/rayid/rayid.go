// Package rayid assigns a unique request identifier to every incoming request.
package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderName is the response header carrying the request identifier.
const HeaderName = "X-Ray-Id"

// LocalsKey is the Fiber locals key the identifier is stored under.
const LocalsKey = "ray_id"

// New returns a middleware that generates a RayID per request, stores it in
// the request locals and echoes it in the response headers.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(HeaderName)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals(LocalsKey, rid)
		c.Set(HeaderName, rid)
		return c.Next()
	}
}
