package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scolarix/scolarix/pkg/errors"
	"github.com/scolarix/scolarix/pkg/response"
)

// AdminOnly allows the request through only when the verified email of the
// caller equals the configured administrator address. It runs before any
// handler data access and keeps no state between requests; every privileged
// route evaluates the comparison independently.
func AdminOnly(adminEmail string) gin.HandlerFunc {
	admin := strings.ToLower(strings.TrimSpace(adminEmail))

	return func(c *gin.Context) {
		email := strings.ToLower(strings.TrimSpace(c.GetString(CtxEmailKey)))
		if email == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if admin == "" || email != admin {
			response.Error(c, errors.ErrPermissionDenied)
			c.Abort()
			return
		}

		c.Next()
	}
}
