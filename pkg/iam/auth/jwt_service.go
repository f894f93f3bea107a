package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
)

// JWTService signs and verifies HS256 tokens.
type JWTService struct {
	secretKey       []byte
	accessTokenTTL  time.Duration
	projectTokenTTL time.Duration
	issuer          string
}

// NewJWTService creates a JWT service.
func NewJWTService(secretKey string, accessTokenTTL, projectTokenTTL time.Duration, issuer string) *JWTService {
	if accessTokenTTL == 0 {
		accessTokenTTL = 8 * time.Hour
	}
	if projectTokenTTL == 0 {
		projectTokenTTL = time.Hour
	}
	if issuer == "" {
		issuer = "projecthub"
	}

	return &JWTService{
		secretKey:       []byte(secretKey),
		accessTokenTTL:  accessTokenTTL,
		projectTokenTTL: projectTokenTTL,
		issuer:          issuer,
	}
}

// AccessTokenTTL returns the configured access token lifetime.
func (j *JWTService) AccessTokenTTL() time.Duration { return j.accessTokenTTL }

// JWTClaims is the wire shape of a signed token.
type JWTClaims struct {
	UserID         kernel.UserID     `json:"user_id"`
	Email          string            `json:"email"`
	Name           string            `json:"name"`
	Role           kernel.SystemRole `json:"role"`
	CustomRole     string            `json:"customRole,omitempty"`
	Company        string            `json:"companyName,omitempty"`
	CompanyAddress string            `json:"companyAddress,omitempty"`
	CompanyPhone   string            `json:"companyPhone,omitempty"`
	IsActive       bool              `json:"isActive"`
	IsSuspended    bool              `json:"isSuspended"`
	CreatedAt      *jwt.NumericDate  `json:"createdAt,omitempty"`
	TokenType      TokenType         `json:"token_type"`
	Projects       []ProjectClaim    `json:"projects,omitempty"`
	ProjectID      kernel.ProjectID  `json:"project_id,omitempty"`
	jwt.RegisteredClaims
}

func userClaims(u *user.User, tokenType TokenType) JWTClaims {
	return JWTClaims{
		UserID:         u.ID,
		Email:          u.Email,
		Name:           u.FullName(),
		Role:           u.Role,
		CustomRole:     u.CustomRole,
		Company:        u.Company,
		CompanyAddress: u.CompanyAddress,
		CompanyPhone:   u.CompanyPhone,
		IsActive:       u.IsActive,
		IsSuspended:    u.IsSuspended,
		CreatedAt:      jwt.NewNumericDate(u.CreatedAt),
		TokenType:      tokenType,
	}
}

// GenerateAccessToken signs a full-session token carrying the user
// snapshot and every live project grant.
func (j *JWTService) GenerateAccessToken(u *user.User, projects []ProjectClaim) (string, error) {
	if projects == nil {
		projects = []ProjectClaim{}
	}
	claims := userClaims(u, TokenTypeAccess)
	claims.Projects = projects
	return j.sign(claims, j.accessTokenTTL)
}

// GenerateProjectToken signs a short-lived token scoped to one project.
func (j *JWTService) GenerateProjectToken(u *user.User, claim ProjectClaim) (string, error) {
	claims := userClaims(u, TokenTypeProject)
	claims.Projects = []ProjectClaim{claim}
	claims.ProjectID = claim.ProjectID
	return j.sign(claims, j.projectTokenTTL)
}

func (j *JWTService) sign(claims JWTClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    j.issuer,
		Subject:   claims.UserID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", ErrTokenGenerationFailed().WithDetail("error", err.Error())
	}
	return signed, nil
}

// ValidateToken verifies the signature and expiry and decodes the claims.
func (j *JWTService) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, ErrTokenValidationFailed().WithDetail("error", err.Error())
	}
	if !token.Valid {
		return nil, ErrTokenValidationFailed()
	}

	jwtClaims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, ErrTokenValidationFailed().WithDetail("error", "invalid claims type")
	}

	return &TokenClaims{
		UserID:    jwtClaims.UserID,
		Email:     jwtClaims.Email,
		Name:      jwtClaims.Name,
		Role:      jwtClaims.Role,
		TokenType: jwtClaims.TokenType,
		Projects:  jwtClaims.Projects,
		ProjectID: jwtClaims.ProjectID,
		IssuedAt:  jwtClaims.IssuedAt.Time,
		ExpiresAt: jwtClaims.ExpiresAt.Time,
	}, nil
}

// ValidateAccessToken verifies the token and requires the ACCESS type.
func (j *JWTService) ValidateAccessToken(tokenString string) (*TokenClaims, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, ErrWrongTokenType()
	}
	return claims, nil
}

// ValidateProjectToken verifies the token and requires the PROJECT_ACCESS
// type.
func (j *JWTService) ValidateProjectToken(tokenString string) (*TokenClaims, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeProject {
		return nil, ErrWrongTokenType()
	}
	return claims, nil
}
