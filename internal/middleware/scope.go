package middleware

import (
	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/gin-gonic/gin"
)

const scopeKey = "messengerScope"

// Scope header names
const (
	HeaderCompanyID    = "X-Company-ID"
	HeaderSiteID       = "X-Site-ID"
	HeaderSubsiteID    = "X-Subsite-ID"
	HeaderDepartmentID = "X-Department-ID"
	HeaderRoleID       = "X-Role-ID"
)

// ResolveScope reads the tenant scope from request headers. The company falls
// back to the token's company; a header naming a different company than the
// token is rejected, as are requests with no company at all.
// Must run after JWTAuth.
func ResolveScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := domain.Scope{
			CompanyID:    header(c, HeaderCompanyID),
			SiteID:       header(c, HeaderSiteID),
			SubsiteID:    header(c, HeaderSubsiteID),
			DepartmentID: header(c, HeaderDepartmentID),
			RoleID:       header(c, HeaderRoleID),
		}
		tokenCompany := GetTokenCompanyID(c)
		if scope.CompanyID == "" {
			scope.CompanyID = tokenCompany
		}
		if tokenCompany != "" && scope.CompanyID != tokenCompany {
			common.ErrorResponse(c, 403, "company does not match token", common.ErrForbidden)
			c.Abort()
			return
		}
		if !scope.Valid() {
			common.ErrorResponse(c, 400, "valid company scope required", nil)
			c.Abort()
			return
		}
		c.Set(scopeKey, scope)
		c.Next()
	}
}

// GetScope returns the scope stored by ResolveScope
func GetScope(c *gin.Context) domain.Scope {
	if v, ok := c.Get(scopeKey); ok {
		if scope, ok := v.(domain.Scope); ok {
			return scope
		}
	}
	return domain.Scope{}
}

// header falls back to a query parameter for WebSocket clients
func header(c *gin.Context, name string) string {
	if v := c.GetHeader(name); v != "" {
		return v
	}
	return c.Query(queryName(name))
}

func queryName(header string) string {
	switch header {
	case HeaderCompanyID:
		return "company_id"
	case HeaderSiteID:
		return "site_id"
	case HeaderSubsiteID:
		return "subsite_id"
	case HeaderDepartmentID:
		return "department_id"
	case HeaderRoleID:
		return "role_id"
	}
	return ""
}
