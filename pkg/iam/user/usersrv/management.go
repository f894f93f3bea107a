package usersrv

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xtown/projecthub/pkg/iam/otp"
	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
	"github.com/xtown/projecthub/pkg/logx"
)

// GrantManager is the slice of the grant repository user administration
// needs for reassigning project access.
type GrantManager interface {
	ReplaceForUser(ctx context.Context, userID kernel.UserID, grants []*project.UserProject) error
}

// ProjectAssignment describes one project grant in an assignment set.
type ProjectAssignment struct {
	ProjectID  kernel.ProjectID
	Role       kernel.ProjectRole
	ProjectURL string
}

// CreateAdminInput carries the fields for a new ADMIN account,
// including its initial project assignments.
type CreateAdminInput struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	Phone          string
	Company        string
	CompanyAddress string
	CompanyPhone   string
	CustomRole     string
	SubUserLimit   int
	Projects       []ProjectAssignment
}

// CreateSubUserInput carries the fields for a new SUB_USER account,
// including its initial project assignments.
type CreateSubUserInput struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	Phone      string
	CustomRole string
	Projects   []ProjectAssignment
}

// UpdateUserInput carries optional profile updates. Nil fields are left
// untouched.
type UpdateUserInput struct {
	FirstName    *string
	LastName     *string
	Phone        *string
	Company      *string
	CustomRole   *string
	SubUserLimit *int
}

// UserStats summarizes the account inventory.
type UserStats struct {
	Total     int `json:"total"`
	Admins    int `json:"admins"`
	SubUsers  int `json:"subUsers"`
	Suspended int `json:"suspended"`
	// Recent holds the five newest accounts.
	Recent []*user.User `json:"-"`
}

// CreateAdmin registers a new ADMIN account together with its initial
// project grants, inactive until it completes OTP activation. Only the
// super admin may call this; the route middleware enforces it.
func (s *UserService) CreateAdmin(ctx context.Context, actorID kernel.UserID, input CreateAdminInput) (*user.User, error) {
	if err := s.validatePassword(input.Password); err != nil {
		return nil, err
	}
	if err := validateAssignments(input.Projects); err != nil {
		return nil, err
	}
	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	limit := input.SubUserLimit
	if limit <= 0 {
		limit = s.defaultSubLimit
	}

	now := time.Now()
	u := &user.User{
		ID:             kernel.NewUserID(),
		Email:          user.NormalizeEmail(input.Email),
		PasswordHash:   hash,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		Phone:          input.Phone,
		Company:        input.Company,
		CompanyAddress: input.CompanyAddress,
		CompanyPhone:   input.CompanyPhone,
		Role:           kernel.RoleAdmin,
		CustomRole:     input.CustomRole,
		SubUserLimit:   limit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.CreateWithGrants(ctx, u, buildGrants(u.ID, actorID, input.Projects)); err != nil {
		return nil, err
	}
	if _, err := s.otps.Generate(ctx, u.Email, otp.PurposeAccountActivation); err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{"user_id": u.ID.String()}).Info("admin account created")
	return u, nil
}

// CreateSubUser registers a SUB_USER owned by the acting admin, enforcing
// the admin's sub user limit.
func (s *UserService) CreateSubUser(ctx context.Context, adminID kernel.UserID, input CreateSubUserInput) (*user.User, error) {
	admin, err := s.repo.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Role != kernel.RoleAdmin {
		return nil, user.ErrCannotModify()
	}

	limit := admin.SubUserLimit
	if limit <= 0 {
		limit = s.defaultSubLimit
	}
	count, err := s.repo.CountSubUsers(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if count >= limit {
		return nil, user.ErrSubUserLimit().
			WithDetail("limit", limit).
			WithDetail("current", count)
	}

	if err := s.validatePassword(input.Password); err != nil {
		return nil, err
	}
	if err := validateAssignments(input.Projects); err != nil {
		return nil, err
	}
	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	u := &user.User{
		ID:           kernel.NewUserID(),
		Email:        user.NormalizeEmail(input.Email),
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		Company:      admin.Company,
		Role:         kernel.RoleSubUser,
		CustomRole:   input.CustomRole,
		CreatedBy:    &adminID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	if _, err := s.otps.Generate(ctx, u.Email, otp.PurposeAccountActivation); err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{"user_id": u.ID.String(), "admin_id": adminID.String()}).
		Info("sub user created")
	return u, nil
}

// List returns the accounts visible to the actor: everything for the
// super admin, owned sub users for an admin.
func (s *UserService) List(ctx context.Context, actor kernel.AuthContext) ([]*user.User, error) {
	switch {
	case actor.IsSuperAdmin():
		return s.repo.List(ctx, user.ListFilter{IncludeSuspended: true})
	case actor.IsAdmin():
		return s.repo.List(ctx, user.ListFilter{
			Role:             kernel.RoleSubUser,
			CreatedBy:        actor.UserID,
			IncludeSuspended: true,
		})
	default:
		return nil, user.ErrCannotModify()
	}
}

// Get returns one account if the actor may see it.
func (s *UserService) Get(ctx context.Context, actor kernel.AuthContext, id kernel.UserID) (*user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(actor, u) {
		return nil, user.ErrCannotModify()
	}
	return u, nil
}

// Update applies profile updates if the actor may modify the target.
// SubUserLimit changes are super-admin only.
func (s *UserService) Update(ctx context.Context, actor kernel.AuthContext, id kernel.UserID, input UpdateUserInput) (*user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canModify(actor, u) {
		return nil, user.ErrCannotModify()
	}

	if input.FirstName != nil {
		u.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		u.LastName = *input.LastName
	}
	if input.Phone != nil {
		u.Phone = *input.Phone
	}
	if input.Company != nil {
		u.Company = *input.Company
	}
	if input.CustomRole != nil {
		u.CustomRole = *input.CustomRole
	}
	if input.SubUserLimit != nil {
		if !actor.IsSuperAdmin() {
			return nil, user.ErrCannotModify()
		}
		u.SubUserLimit = *input.SubUserLimit
	}
	u.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateProjects replaces the target's project grants with the given
// assignment set. Old grants are soft-deactivated, not deleted, to keep
// audit history. When the target is an ADMIN the same set is mirrored
// onto every sub user the admin owns.
func (s *UserService) UpdateProjects(ctx context.Context, actor kernel.AuthContext, targetID kernel.UserID, assignments []ProjectAssignment) error {
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !s.canModify(actor, target) {
		return user.ErrCannotModify()
	}

	if err := validateAssignments(assignments); err != nil {
		return err
	}

	if err := s.replaceGrants(ctx, targetID, actor.UserID, assignments); err != nil {
		return err
	}

	if target.Role == kernel.RoleAdmin {
		subs, err := s.repo.List(ctx, user.ListFilter{
			Role:             kernel.RoleSubUser,
			CreatedBy:        targetID,
			IncludeSuspended: true,
		})
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if err := s.replaceGrants(ctx, sub.ID, actor.UserID, assignments); err != nil {
				return err
			}
		}
	}

	logx.WithFields(logx.Fields{
		"user_id":  targetID.String(),
		"projects": len(assignments),
	}).Info("project grants updated")
	return nil
}

func (s *UserService) replaceGrants(ctx context.Context, userID, grantedBy kernel.UserID, assignments []ProjectAssignment) error {
	return s.grants.ReplaceForUser(ctx, userID, buildGrants(userID, grantedBy, assignments))
}

func validateAssignments(assignments []ProjectAssignment) error {
	for _, a := range assignments {
		if !a.Role.Valid() {
			return project.ErrInvalidRole().WithDetail("role", string(a.Role))
		}
	}
	return nil
}

func buildGrants(userID, grantedBy kernel.UserID, assignments []ProjectAssignment) []*project.UserProject {
	now := time.Now()
	grants := make([]*project.UserProject, 0, len(assignments))
	for _, a := range assignments {
		grants = append(grants, &project.UserProject{
			ID:         uuid.NewString(),
			UserID:     userID,
			ProjectID:  a.ProjectID,
			Role:       a.Role,
			IsActive:   true,
			ProjectURL: a.ProjectURL,
			GrantedBy:  grantedBy,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return grants
}

// Delete removes an account and everything that hangs off it. The super
// admin account itself cannot be deleted.
func (s *UserService) Delete(ctx context.Context, actor kernel.AuthContext, id kernel.UserID) error {
	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == kernel.RoleSuperAdmin {
		return user.ErrCannotModify()
	}
	if !s.canAdministrate(actor, target) {
		return user.ErrCannotModify()
	}

	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		return err
	}

	logx.WithFields(logx.Fields{"user_id": id.String(), "actor_id": actor.UserID.String()}).
		Info("user deleted")
	return nil
}

// Suspend marks an account suspended. Suspending an ADMIN also suspends
// every sub user the admin owns, with the same reason.
func (s *UserService) Suspend(ctx context.Context, actor kernel.AuthContext, id kernel.UserID, reason string) error {
	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == kernel.RoleSuperAdmin {
		return user.ErrCannotModify()
	}
	if !s.canAdministrate(actor, target) {
		return user.ErrCannotModify()
	}

	target.Suspend(reason, actor.UserID)
	if err := s.repo.Update(ctx, target); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, target.ID); err != nil {
		return err
	}

	if target.Role == kernel.RoleAdmin {
		subs, err := s.repo.List(ctx, user.ListFilter{
			Role:      kernel.RoleSubUser,
			CreatedBy: target.ID,
		})
		if err != nil {
			return err
		}
		for _, sub := range subs {
			sub.Suspend(reason, actor.UserID)
			if err := s.repo.Update(ctx, sub); err != nil {
				return err
			}
			if err := s.tokens.RevokeAllForUser(ctx, sub.ID); err != nil {
				return err
			}
		}
	}

	logx.WithFields(logx.Fields{"user_id": id.String(), "reason": reason}).Info("user suspended")
	return nil
}

// Unsuspend clears a suspension. Sub users suspended through their
// admin's cascade are not automatically unsuspended.
func (s *UserService) Unsuspend(ctx context.Context, actor kernel.AuthContext, id kernel.UserID) error {
	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.canAdministrate(actor, target) {
		return user.ErrCannotModify()
	}

	target.Unsuspend()
	if err := s.repo.Update(ctx, target); err != nil {
		return err
	}

	logx.WithFields(logx.Fields{"user_id": id.String()}).Info("user unsuspended")
	return nil
}

// Stats returns account counts by role and suspension state, plus the
// five newest accounts.
func (s *UserService) Stats(ctx context.Context) (*UserStats, error) {
	all, err := s.repo.List(ctx, user.ListFilter{IncludeSuspended: true})
	if err != nil {
		return nil, err
	}

	stats := &UserStats{Total: len(all)}
	// List returns newest first.
	stats.Recent = all
	if len(stats.Recent) > 5 {
		stats.Recent = stats.Recent[:5]
	}
	for _, u := range all {
		switch u.Role {
		case kernel.RoleAdmin:
			stats.Admins++
		case kernel.RoleSubUser:
			stats.SubUsers++
		}
		if u.IsSuspended {
			stats.Suspended++
		}
	}
	return stats, nil
}

// canView: self, super admin, or the owning admin.
func (s *UserService) canView(actor kernel.AuthContext, target *user.User) bool {
	if actor.UserID == target.ID {
		return true
	}
	return s.canAdministrate(actor, target)
}

// canModify: profile-level changes. Users may edit themselves; admins
// their sub users; the super admin anyone.
func (s *UserService) canModify(actor kernel.AuthContext, target *user.User) bool {
	if actor.UserID == target.ID {
		return true
	}
	return s.canAdministrate(actor, target)
}

// canAdministrate: account-level actions (suspend, delete, grants) on
// someone else. Super admin covers admins and sub users; admins cover
// only their own sub users.
func (s *UserService) canAdministrate(actor kernel.AuthContext, target *user.User) bool {
	switch {
	case actor.IsSuperAdmin():
		return actor.UserID != target.ID
	case actor.IsAdmin():
		return target.IsSubUserOf(actor.UserID)
	default:
		return false
	}
}
