package user

import (
	"strings"
	"time"

	"github.com/xtown/projecthub/pkg/kernel"
)

// User is a platform account. Exactly one SUPER_ADMIN exists; ADMIN
// accounts own SUB_USER accounts up to their SubUserLimit.
type User struct {
	ID           kernel.UserID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string

	// Company fields describe the owning organization. Sub users inherit
	// all three from the admin who creates them.
	Company        string
	CompanyAddress string
	CompanyPhone   string

	Role kernel.SystemRole
	// CustomRole is a free-form label shown in UIs, orthogonal to Role.
	CustomRole string

	// IsActive flips to true once the account completes OTP activation.
	IsActive bool

	IsSuspended     bool
	SuspendedReason string
	SuspendedAt     *time.Time
	SuspendedBy     *kernel.UserID

	// SubUserLimit caps how many sub users an ADMIN may own. Zero means
	// the platform default applies.
	SubUserLimit int

	// CreatedBy points at the owning ADMIN for SUB_USER accounts.
	CreatedBy *kernel.UserID

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FullName joins the name parts, skipping empty ones.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// CanLogin reports whether the account may authenticate at all.
func (u *User) CanLogin() bool {
	return u.IsActive && !u.IsSuspended
}

// IsSubUserOf reports whether u is a sub user owned by adminID.
func (u *User) IsSubUserOf(adminID kernel.UserID) bool {
	return u.Role == kernel.RoleSubUser && u.CreatedBy != nil && *u.CreatedBy == adminID
}

// Suspend marks the account suspended with a reason and actor.
func (u *User) Suspend(reason string, by kernel.UserID) {
	now := time.Now()
	u.IsSuspended = true
	u.SuspendedReason = reason
	u.SuspendedAt = &now
	u.SuspendedBy = &by
	u.UpdatedAt = now
}

// Unsuspend clears the suspension state.
func (u *User) Unsuspend() {
	u.IsSuspended = false
	u.SuspendedReason = ""
	u.SuspendedAt = nil
	u.SuspendedBy = nil
	u.UpdatedAt = time.Now()
}

// NormalizeEmail lower-cases and trims an email address for storage and
// lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
