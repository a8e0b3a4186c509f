package domain

import "strings"

// Scope is the tenant context every data-access call runs under. It replaces any
// process-wide "current company" state: callers pass it explicitly.
type Scope struct {
	CompanyID    string `json:"company_id"`
	SiteID       string `json:"site_id,omitempty"`
	SubsiteID    string `json:"subsite_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
	RoleID       string `json:"role_id,omitempty"`
}

// Valid reports whether the scope names a company and every id is usable as a
// single path segment
func (s Scope) Valid() bool {
	if s.CompanyID == "" {
		return false
	}
	for _, id := range []string{s.CompanyID, s.SiteID, s.SubsiteID, s.DepartmentID, s.RoleID} {
		if strings.Contains(id, "/") || id == "." || id == ".." {
			return false
		}
	}
	return true
}

// BasePath is the storage prefix for the scope: companies/{c}[/sites/{s}[/subsites/{ss}]]
func (s Scope) BasePath() string {
	if s.CompanyID == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("companies/")
	b.WriteString(s.CompanyID)
	if s.SiteID != "" {
		b.WriteString("/sites/")
		b.WriteString(s.SiteID)
		if s.SubsiteID != "" {
			b.WriteString("/subsites/")
			b.WriteString(s.SubsiteID)
		}
	}
	return b.String()
}

// ScopeIDFor returns the organisational id a scoped chat type is keyed on
func (s Scope) ScopeIDFor(t ChatType) string {
	switch t {
	case ChatTypeCompany:
		return s.CompanyID
	case ChatTypeSite:
		return s.SiteID
	case ChatTypeDepartment:
		return s.DepartmentID
	case ChatTypeRole:
		return s.RoleID
	}
	return ""
}
