package middleware

import (
	"strings"

	"goldenminutes/models"
	"goldenminutes/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var knownRoles = []string{models.RoleCitizen, models.RoleVolunteer, models.RoleAdmin}

type AuthMiddleware struct {
	jwtService *utils.JWTService
}

func NewAuthMiddleware(jwtService *utils.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// RequireAuth validates the bearer token and places the caller's id and role
// in the context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := am.extractToken(c)
		if token == "" {
			utils.UnauthorizedResponse(c, "Authentication token required")
			c.Abort()
			return
		}

		claims, err := am.jwtService.ValidateToken(token)
		if err != nil {
			logrus.WithField("request_id", c.GetString("request_id")).Warnf("Invalid token: %v", err)
			utils.UnauthorizedResponse(c, "Invalid authentication token")
			c.Abort()
			return
		}

		role := claims.Role
		if role == "" {
			role = models.RoleCitizen
		}
		if !utils.StringSliceContains(knownRoles, role) {
			utils.UnauthorizedResponse(c, "Unknown role in token")
			c.Abort()
			return
		}

		c.Set(utils.ContextUserID, claims.UserID)
		c.Set(utils.ContextRole, role)

		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles. Admins
// always pass.
func (am *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := utils.GetUserRole(c)
		if role == "" {
			utils.UnauthorizedResponse(c, "User role not found in context")
			c.Abort()
			return
		}

		if role != models.RoleAdmin && !utils.StringSliceContains(roles, role) {
			utils.ForbiddenResponse(c, "Insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractToken reads the Authorization header, falling back to the token
// query parameter for websocket upgrades.
func (am *AuthMiddleware) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	return c.Query("token")
}

// Viewer builds the service-level identity of the caller.
func Viewer(c *gin.Context) models.Viewer {
	return models.Viewer{
		UserID: utils.GetUserID(c),
		Role:   utils.GetUserRole(c),
	}
}
