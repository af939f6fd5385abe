package middleware

// identity.go holds the helpers that move the authenticated person between
// the JWT claims, the Echo context and the handlers.

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	personIDKey = "person_id"
	roleKey     = "role"
)

// PersonID returns the authenticated person, if any.
func PersonID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(personIDKey).(uint64)
	return id, ok && id != 0
}

// Role returns the role claim of the authenticated person.
func Role(c echo.Context) string {
	r, _ := c.Get(roleKey).(string)
	return r
}

// claimPersonID accepts the subject as a decimal string or a JSON number.
func claimPersonID(cl jwt.MapClaims) (uint64, bool) {
	for _, key := range []string{"sub", "person_id"} {
		switch v := cl[key].(type) {
		case string:
			if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
				return n, true
			}
		case float64:
			if v > 0 && v == float64(uint64(v)) {
				return uint64(v), true
			}
		}
	}
	return 0, false
}

// personKey identifies the caller in rate limit keys.
func personKey(c echo.Context) string {
	if id, ok := PersonID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
