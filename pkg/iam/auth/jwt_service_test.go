package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
)

func testUser() *user.User {
	return &user.User{
		ID:        kernel.UserID("u-1"),
		Email:     "admin@example.com",
		FirstName: "Ada",
		LastName:  "Admin",
		Role:      kernel.RoleAdmin,
		IsActive:  true,
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour, time.Hour, "test")

	projects := []ProjectClaim{
		{ProjectID: "p-1", CustomID: "portal", Name: "Portal", Role: kernel.ProjectRoleOwner, URL: "https://portal.example"},
		{ProjectID: "p-2", CustomID: "crm", Name: "CRM", Role: kernel.ProjectRoleViewer},
	}

	token, err := svc.GenerateAccessToken(testUser(), projects)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "u-1" || claims.Email != "admin@example.com" {
		t.Fatalf("identity claims wrong: %+v", claims)
	}
	if claims.Name != "Ada Admin" {
		t.Fatalf("name = %q", claims.Name)
	}
	if claims.Role != kernel.RoleAdmin {
		t.Fatalf("role = %q", claims.Role)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("token type = %q", claims.TokenType)
	}
	if len(claims.Projects) != 2 || claims.Projects[0].CustomID != "portal" {
		t.Fatalf("projects = %+v", claims.Projects)
	}
}

func TestProjectTokenCarriesDiscriminator(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour, time.Hour, "test")

	token, err := svc.GenerateProjectToken(testUser(), ProjectClaim{
		ProjectID: "p-1", CustomID: "portal", Role: kernel.ProjectRoleMember,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.ValidateProjectToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.TokenType != TokenTypeProject {
		t.Fatalf("token type = %q", claims.TokenType)
	}
	if claims.ProjectID != "p-1" {
		t.Fatalf("project id = %q", claims.ProjectID)
	}
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour, time.Hour, "test")

	access, err := svc.GenerateAccessToken(testUser(), nil)
	if err != nil {
		t.Fatalf("generate access: %v", err)
	}
	projectToken, err := svc.GenerateProjectToken(testUser(), ProjectClaim{ProjectID: "p-1"})
	if err != nil {
		t.Fatalf("generate project: %v", err)
	}

	if _, err := svc.ValidateProjectToken(access); !errx.IsCode(err, CodeWrongTokenType) {
		t.Fatalf("access token accepted as project token: %v", err)
	}
	if _, err := svc.ValidateAccessToken(projectToken); !errx.IsCode(err, CodeWrongTokenType) {
		t.Fatalf("project token accepted as access token: %v", err)
	}
}

func TestTamperedTokenIsRejected(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour, time.Hour, "test")

	token, err := svc.GenerateAccessToken(testUser(), nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := svc.ValidateToken(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}

	other := NewJWTService("other-secret", time.Hour, time.Hour, "test")
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("token signed with a different secret accepted")
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	svc := NewJWTService("test-secret", -time.Minute, time.Hour, "test")

	token, err := svc.GenerateAccessToken(testUser(), nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}
