package userapi

import (
	"time"

	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
)

// UserResponse is the public shape of an account. The password hash and
// internal suspension bookkeeping never leave the API.
type UserResponse struct {
	ID             kernel.UserID     `json:"id"`
	Email          string            `json:"email"`
	FirstName      string            `json:"firstName"`
	LastName       string            `json:"lastName"`
	Phone          string            `json:"phone,omitempty"`
	Company        string            `json:"company,omitempty"`
	CompanyAddress string            `json:"companyAddress,omitempty"`
	CompanyPhone   string            `json:"companyPhone,omitempty"`
	Role           kernel.SystemRole `json:"role"`
	CustomRole     string            `json:"customRole,omitempty"`
	IsActive       bool              `json:"isActive"`
	IsSuspended    bool              `json:"isSuspended"`
	SuspendedFor   string            `json:"suspendedReason,omitempty"`
	SubUserLimit   int               `json:"subUserLimit,omitempty"`
	CreatedBy      *kernel.UserID    `json:"createdBy,omitempty"`
	LastLoginAt    *time.Time        `json:"lastLoginAt,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func newUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Phone:          u.Phone,
		Company:        u.Company,
		CompanyAddress: u.CompanyAddress,
		CompanyPhone:   u.CompanyPhone,
		Role:           u.Role,
		CustomRole:     u.CustomRole,
		IsActive:       u.IsActive,
		IsSuspended:    u.IsSuspended,
		SuspendedFor:   u.SuspendedReason,
		SubUserLimit:   u.SubUserLimit,
		CreatedBy:      u.CreatedBy,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
	}
}

func newUserResponses(users []*user.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = newUserResponse(u)
	}
	return out
}
