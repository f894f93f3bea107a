package project

import (
	"regexp"
	"time"

	"github.com/xtown/projecthub/pkg/kernel"
)

// customIDPattern constrains the human-facing project identifier used in
// URLs and token requests.
var customIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

// Project is a destination application users can be granted access to.
type Project struct {
	ID kernel.ProjectID
	// CustomID is the stable, human-chosen identifier clients use in
	// URLs. Unique across all projects.
	CustomID    string
	Name        string
	Icon        string
	Description string
	// URL is the default redirect target for the project. A grant can
	// override it per user.
	URL       string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidCustomID reports whether s is an acceptable custom project
// identifier: 3 to 20 characters, alphanumeric plus hyphen and underscore.
func ValidCustomID(s string) bool {
	return customIDPattern.MatchString(s)
}

// UserProject is an access grant linking a user to a project.
type UserProject struct {
	ID        string
	UserID    kernel.UserID
	ProjectID kernel.ProjectID
	Role      kernel.ProjectRole
	// IsActive distinguishes live grants from soft-deactivated ones.
	// Deactivated grants are kept for audit history.
	IsActive bool
	// ProjectURL, when set, overrides the project's default redirect URL
	// for this user.
	ProjectURL   string
	LastAccessed *time.Time
	GrantedBy    kernel.UserID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
