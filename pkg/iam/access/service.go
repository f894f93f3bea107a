package access

import (
	"context"
	"net/url"

	"github.com/xtown/projecthub/pkg/iam/auth"
	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
	"github.com/xtown/projecthub/pkg/logx"
)

// RequestMeta carries client details for audit rows.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// ValidationResult is what downstream project backends get when they
// validate a token against this service. Main tokens carry the user's
// live project list; project tokens carry the single project scope.
type ValidationResult struct {
	Valid     bool                `json:"valid"`
	TokenType auth.TokenType      `json:"tokenType"`
	UserID    kernel.UserID       `json:"userId"`
	Email     string              `json:"email"`
	Name      string              `json:"name"`
	Role      kernel.SystemRole   `json:"role"`
	ProjectID kernel.ProjectID    `json:"projectId,omitempty"`
	Project   string              `json:"project,omitempty"`
	GrantRole kernel.ProjectRole  `json:"projectRole,omitempty"`
	Projects  []auth.ProjectClaim `json:"projects,omitempty"`
}

// AccessCheck reports whether a user currently holds access to a project.
type AccessCheck struct {
	HasAccess bool               `json:"hasAccess"`
	Role      kernel.ProjectRole `json:"role,omitempty"`
	URL       string             `json:"url,omitempty"`
}

// Service mediates delegated access into destination projects: it mints
// project-scoped tokens, resolves redirects and answers downstream
// validation calls against live grants.
type Service struct {
	users    user.Repository
	projects project.Repository
	grants   project.GrantRepository
	jwt      auth.TokenService
	audit    auth.AuditRepository
}

// NewService creates an access service.
func NewService(
	users user.Repository,
	projects project.Repository,
	grants project.GrantRepository,
	jwt auth.TokenService,
	audit auth.AuditRepository,
) *Service {
	return &Service{
		users:    users,
		projects: projects,
		grants:   grants,
		jwt:      jwt,
		audit:    audit,
	}
}

// resolveClaim checks the user's standing on a project and builds the
// claim a project token would carry. The super admin passes without a
// grant, as projects' implicit owner.
func (s *Service) resolveClaim(ctx context.Context, u *user.User, p *project.Project) (auth.ProjectClaim, error) {
	claim := auth.ProjectClaim{
		ProjectID: p.ID,
		CustomID:  p.CustomID,
		Name:      p.Name,
		Icon:      p.Icon,
		URL:       p.URL,
	}

	if u.Role == kernel.RoleSuperAdmin {
		claim.Role = kernel.ProjectRoleOwner
		return claim, nil
	}

	grant, err := s.grants.GetActive(ctx, u.ID, p.ID)
	if err != nil {
		return auth.ProjectClaim{}, err
	}
	if grant == nil {
		return auth.ProjectClaim{}, project.ErrGrantNotFound().WithDetail("project", p.CustomID)
	}

	claim.Role = grant.Role
	if grant.ProjectURL != "" {
		claim.URL = grant.ProjectURL
	}

	// Best effort: a failed timestamp must not block access.
	if err := s.grants.TouchLastAccessed(ctx, grant.ID); err != nil {
		logx.WithError(err).Debug("failed to record project access time")
	}
	return claim, nil
}

// IssueProjectToken mints a short-lived token scoped to one project for
// the acting user.
func (s *Service) IssueProjectToken(ctx context.Context, actorID kernel.UserID, customProjectID string, meta RequestMeta) (string, auth.ProjectClaim, error) {
	u, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return "", auth.ProjectClaim{}, err
	}

	p, err := s.projects.GetByCustomID(ctx, customProjectID)
	if err != nil {
		return "", auth.ProjectClaim{}, err
	}
	if !p.IsActive {
		return "", auth.ProjectClaim{}, project.ErrProjectNotFound().WithDetail("custom_id", customProjectID)
	}

	claim, err := s.resolveClaim(ctx, u, p)
	if err != nil {
		s.record(ctx, auth.AuditEntry{
			UserID: actorID, Action: auth.AuditProjectToken, ProjectID: &p.ID,
			Success: false, IP: meta.IP, UserAgent: meta.UserAgent, Detail: "no active grant",
		})
		return "", auth.ProjectClaim{}, err
	}

	token, err := s.jwt.GenerateProjectToken(u, claim)
	if err != nil {
		return "", auth.ProjectClaim{}, err
	}

	s.record(ctx, auth.AuditEntry{
		UserID: actorID, Action: auth.AuditProjectToken, ProjectID: &p.ID,
		Success: true, IP: meta.IP, UserAgent: meta.UserAgent,
	})
	return token, claim, nil
}

// ResolveRedirect mints a project token and builds the destination URL
// with the token and user identity appended as query parameters.
func (s *Service) ResolveRedirect(ctx context.Context, actorID kernel.UserID, customProjectID string, meta RequestMeta) (string, error) {
	token, claim, err := s.IssueProjectToken(ctx, actorID, customProjectID, meta)
	if err != nil {
		return "", err
	}
	if claim.URL == "" {
		return "", project.ErrNoRedirectURL().WithDetail("project", claim.CustomID)
	}

	target, err := url.Parse(claim.URL)
	if err != nil {
		return "", project.ErrNoRedirectURL().WithDetail("project", claim.CustomID)
	}

	u, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return "", err
	}

	q := target.Query()
	q.Set("access_token", token)
	q.Set("user_id", u.ID.String())
	q.Set("user_role", string(claim.Role))
	q.Set("project_id", claim.ProjectID.String())
	target.RawQuery = q.Encode()

	s.record(ctx, auth.AuditEntry{
		UserID: actorID, Action: auth.AuditProjectAccess, ProjectID: &claim.ProjectID,
		Success: true, IP: meta.IP, UserAgent: meta.UserAgent,
	})
	return target.String(), nil
}

// ValidateToken answers a downstream backend's token check for either
// token type. Grants are re-read so access revoked after token issue is
// caught within the token's lifetime.
func (s *Service) ValidateToken(ctx context.Context, tokenString string, meta RequestMeta) (*ValidationResult, error) {
	claims, err := s.jwt.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, auth.ErrTokenValidationFailed()
	}

	if claims.TokenType == auth.TokenTypeProject {
		return s.validateProjectScope(ctx, u, claims, meta)
	}
	return s.validateMainScope(ctx, u, meta)
}

// validateMainScope handles a main access token: the result carries a
// fresh snapshot of the user's live grants instead of a project scope.
func (s *Service) validateMainScope(ctx context.Context, u *user.User, meta RequestMeta) (*ValidationResult, error) {
	if !u.CanLogin() {
		s.record(ctx, auth.AuditEntry{
			UserID: u.ID, Action: auth.AuditMainTokenValidated,
			Success: false, IP: meta.IP, UserAgent: meta.UserAgent, Detail: "account disabled",
		})
		return nil, auth.ErrTokenValidationFailed()
	}

	projects, err := s.MyProjects(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, auth.AuditEntry{
		UserID: u.ID, Action: auth.AuditMainTokenValidated,
		Success: true, IP: meta.IP, UserAgent: meta.UserAgent,
	})
	return &ValidationResult{
		Valid:     true,
		TokenType: auth.TokenTypeAccess,
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.FullName(),
		Role:      u.Role,
		Projects:  projects,
	}, nil
}

func (s *Service) validateProjectScope(ctx context.Context, u *user.User, claims *auth.TokenClaims, meta RequestMeta) (*ValidationResult, error) {
	if !u.CanLogin() {
		s.record(ctx, auth.AuditEntry{
			UserID: u.ID, Action: auth.AuditTokenValidated, ProjectID: &claims.ProjectID,
			Success: false, IP: meta.IP, UserAgent: meta.UserAgent, Detail: "account disabled",
		})
		return nil, auth.ErrTokenValidationFailed()
	}

	grantRole := kernel.ProjectRoleOwner
	if u.Role != kernel.RoleSuperAdmin {
		grant, err := s.grants.GetActive(ctx, u.ID, claims.ProjectID)
		if err != nil {
			return nil, err
		}
		if grant == nil {
			s.record(ctx, auth.AuditEntry{
				UserID: u.ID, Action: auth.AuditTokenValidated, ProjectID: &claims.ProjectID,
				Success: false, IP: meta.IP, UserAgent: meta.UserAgent, Detail: "grant revoked",
			})
			return nil, project.ErrAccessRevoked()
		}
		grantRole = grant.Role
	}

	s.record(ctx, auth.AuditEntry{
		UserID: u.ID, Action: auth.AuditTokenValidated, ProjectID: &claims.ProjectID,
		Success: true, IP: meta.IP, UserAgent: meta.UserAgent,
	})

	projectName := ""
	if len(claims.Projects) > 0 {
		projectName = claims.Projects[0].Name
	}
	return &ValidationResult{
		Valid:     true,
		TokenType: auth.TokenTypeProject,
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.FullName(),
		Role:      u.Role,
		ProjectID: claims.ProjectID,
		Project:   projectName,
		GrantRole: grantRole,
	}, nil
}

// CheckAccessByToken authenticates the caller by the token they present
// and answers the access check against that token's subject. The surface
// is public; the token is the only credential.
func (s *Service) CheckAccessByToken(ctx context.Context, tokenString, projectRef string, meta RequestMeta) (*AccessCheck, error) {
	claims, err := s.jwt.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, auth.ErrTokenValidationFailed()
	}
	if !u.CanLogin() {
		return nil, auth.ErrTokenValidationFailed()
	}
	return s.CheckAccess(ctx, u.ID, projectRef, meta)
}

// CheckAccess reports whether the user currently holds access to the
// project, by internal ID or custom ID.
func (s *Service) CheckAccess(ctx context.Context, actorID kernel.UserID, projectRef string, meta RequestMeta) (*AccessCheck, error) {
	u, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	p, err := s.projects.GetByCustomID(ctx, projectRef)
	if err != nil {
		p, err = s.projects.GetByID(ctx, kernel.ProjectID(projectRef))
		if err != nil {
			return nil, err
		}
	}

	claim, err := s.resolveClaim(ctx, u, p)
	if err != nil {
		s.record(ctx, auth.AuditEntry{
			UserID: actorID, Action: auth.AuditAccessChecked, ProjectID: &p.ID,
			Success: false, IP: meta.IP, UserAgent: meta.UserAgent,
		})
		return &AccessCheck{HasAccess: false}, nil
	}

	s.record(ctx, auth.AuditEntry{
		UserID: actorID, Action: auth.AuditAccessChecked, ProjectID: &p.ID,
		Success: true, IP: meta.IP, UserAgent: meta.UserAgent,
	})
	return &AccessCheck{HasAccess: true, Role: claim.Role, URL: claim.URL}, nil
}

// MyProjects returns the acting user's live project grants as claims.
func (s *Service) MyProjects(ctx context.Context, actorID kernel.UserID) ([]auth.ProjectClaim, error) {
	views, err := s.grants.ListActiveByUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	claims := make([]auth.ProjectClaim, len(views))
	for i, v := range views {
		claims[i] = auth.ProjectClaim{
			ProjectID: v.Project.ID,
			CustomID:  v.Project.CustomID,
			Name:      v.Project.Name,
			Icon:      v.Project.Icon,
			Role:      v.Grant.Role,
			URL:       v.Project.URL,
		}
		if v.Grant.ProjectURL != "" {
			claims[i].URL = v.Grant.ProjectURL
		}
	}
	return claims, nil
}

// record writes an audit row, logging instead of failing on error.
func (s *Service) record(ctx context.Context, entry auth.AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		logx.WithError(err).WithField("action", entry.Action).Warn("failed to record audit entry")
	}
}
