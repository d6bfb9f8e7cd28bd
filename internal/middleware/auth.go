package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nordrail/storefront-api/internal/service"
	appErrors "github.com/nordrail/storefront-api/pkg/errors"
	"github.com/nordrail/storefront-api/pkg/response"
)

// ContextSubjectKey is the gin context key storing the authenticated
// subject id.
const ContextSubjectKey = "currentSubject"

// Session protects routes by requiring a valid bearer access token. The
// check is purely stateless: signature and expiry via the token signer,
// never a ledger or account lookup.
func Session(signer *service.TokenSigner) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		subjectID, err := signer.Verify(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextSubjectKey, subjectID)
		c.Next()
	}
}

// OptionalSession attaches the subject when a valid token is present but
// does not block.
func OptionalSession(signer *service.TokenSigner) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.Next()
			return
		}

		if subjectID, err := signer.Verify(parts[1]); err == nil {
			c.Set(ContextSubjectKey, subjectID)
		}
		c.Next()
	}
}

// Subject returns the authenticated subject id stored on the context.
func Subject(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextSubjectKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
