package usersrv

import (
	"context"
	"testing"

	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/otp"
	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
	"github.com/xtown/projecthub/pkg/ptrx"
)

type fakeUserRepo struct {
	users  map[kernel.UserID]*user.User
	grants *fakeGrants
}

func newFakeUserRepo(grants *fakeGrants) *fakeUserRepo {
	return &fakeUserRepo{users: make(map[kernel.UserID]*user.User), grants: grants}
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return user.ErrDuplicateEmail()
		}
		if existing.Role == kernel.RoleSuperAdmin && u.Role == kernel.RoleSuperAdmin {
			return user.ErrSuperAdminExists()
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) CreateWithGrants(ctx context.Context, u *user.User, grants []*project.UserProject) error {
	if err := r.Create(ctx, u); err != nil {
		return err
	}
	for _, g := range grants {
		cp := *g
		r.grants.grants = append(r.grants.grants, &cp)
	}
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id kernel.UserID) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrUserNotFound()
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound()
}

func (r *fakeUserRepo) List(_ context.Context, filter user.ListFilter) ([]*user.User, error) {
	var out []*user.User
	for _, u := range r.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if !filter.CreatedBy.IsEmpty() && (u.CreatedBy == nil || *u.CreatedBy != filter.CreatedBy) {
			continue
		}
		if !filter.IncludeSuspended && u.IsSuspended {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *user.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return user.ErrUserNotFound()
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) DeleteCascade(_ context.Context, id kernel.UserID) error {
	target, ok := r.users[id]
	if !ok {
		return user.ErrUserNotFound()
	}
	if target.Role == kernel.RoleAdmin {
		for subID, sub := range r.users {
			if sub.CreatedBy != nil && *sub.CreatedBy == id {
				delete(r.users, subID)
			}
		}
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) SuperAdminExists(_ context.Context) (bool, error) {
	for _, u := range r.users {
		if u.Role == kernel.RoleSuperAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) CountSubUsers(_ context.Context, adminID kernel.UserID) (int, error) {
	n := 0
	for _, u := range r.users {
		if u.Role == kernel.RoleSubUser && u.CreatedBy != nil && *u.CreatedBy == adminID {
			n++
		}
	}
	return n, nil
}

func (r *fakeUserRepo) CountByRole(_ context.Context, role kernel.SystemRole) (int, error) {
	n := 0
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, id kernel.UserID) error {
	return nil
}

type fakePasswords struct{}

func (fakePasswords) Hash(password string) (string, error) { return "hash:" + password, nil }
func (fakePasswords) Verify(hash, password string) bool    { return hash == "hash:"+password }

type fakeOTPs struct {
	lastCode map[string]string // email|purpose -> code
}

func newFakeOTPs() *fakeOTPs { return &fakeOTPs{lastCode: make(map[string]string)} }

func (f *fakeOTPs) Generate(_ context.Context, email string, purpose otp.Purpose) (*otp.OTP, error) {
	f.lastCode[email+"|"+string(purpose)] = "123456"
	return &otp.OTP{Email: email, Code: "123456", Purpose: purpose}, nil
}

func (f *fakeOTPs) Verify(_ context.Context, email, code string, purpose otp.Purpose) (*otp.OTP, error) {
	key := email + "|" + string(purpose)
	if f.lastCode[key] != code {
		return nil, otp.ErrInvalidOTP()
	}
	delete(f.lastCode, key)
	return &otp.OTP{Email: email, Code: code, Purpose: purpose, Used: true}, nil
}

type fakeRevoker struct {
	revoked []kernel.UserID
}

func (f *fakeRevoker) RevokeAllForUser(_ context.Context, userID kernel.UserID) error {
	f.revoked = append(f.revoked, userID)
	return nil
}

func (f *fakeRevoker) wasRevoked(id kernel.UserID) bool {
	for _, r := range f.revoked {
		if r == id {
			return true
		}
	}
	return false
}

type fakeGrants struct {
	grants []*project.UserProject
}

func (f *fakeGrants) ReplaceForUser(_ context.Context, userID kernel.UserID, grants []*project.UserProject) error {
	for _, g := range f.grants {
		if g.UserID == userID {
			g.IsActive = false
		}
	}
	for _, g := range grants {
		cp := *g
		f.grants = append(f.grants, &cp)
	}
	return nil
}

func (f *fakeGrants) activeProjects(userID kernel.UserID) []kernel.ProjectID {
	var out []kernel.ProjectID
	for _, g := range f.grants {
		if g.UserID == userID && g.IsActive {
			out = append(out, g.ProjectID)
		}
	}
	return out
}

type testEnv struct {
	repo    *fakeUserRepo
	otps    *fakeOTPs
	revoker *fakeRevoker
	grants  *fakeGrants
	svc     *UserService
}

func newTestEnv() *testEnv {
	grants := &fakeGrants{}
	env := &testEnv{
		repo:    newFakeUserRepo(grants),
		otps:    newFakeOTPs(),
		revoker: &fakeRevoker{},
		grants:  grants,
	}
	env.svc = NewUserService(env.repo, fakePasswords{}, env.otps, env.revoker, env.grants, nil, 5)
	return env
}

func (e *testEnv) mustCreateActive(t *testing.T, role kernel.SystemRole, email string, createdBy *kernel.UserID) *user.User {
	t.Helper()
	u := &user.User{
		ID:        kernel.NewUserID(),
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedBy: createdBy,
	}
	u.PasswordHash = "hash:password123"
	if err := e.repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func authFor(u *user.User) kernel.AuthContext {
	return kernel.AuthContext{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func TestRegisterSuperAdminPersistsNothing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	input := RegisterSuperAdminInput{
		Email: "owner@example.com", Password: "password123", FirstName: "O",
	}
	if err := env.svc.RegisterSuperAdmin(ctx, input); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := env.repo.GetByEmail(ctx, "owner@example.com"); !errx.IsCode(err, user.CodeUserNotFound) {
		t.Fatal("account created before OTP verification")
	}

	if _, err := env.svc.VerifyRegistration(ctx, input, "999999"); err == nil {
		t.Fatal("wrong OTP accepted")
	}
	if _, err := env.repo.GetByEmail(ctx, "owner@example.com"); !errx.IsCode(err, user.CodeUserNotFound) {
		t.Fatal("account created despite wrong OTP")
	}
}

func TestVerifyRegistrationCreatesActiveAccount(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	input := RegisterSuperAdminInput{
		Email: "owner@example.com", Password: "password123", FirstName: "O",
		Company: "Xtown", CompanyAddress: "Av. Norte 12", CompanyPhone: "+51 1 555",
	}
	if err := env.svc.RegisterSuperAdmin(ctx, input); err != nil {
		t.Fatalf("register: %v", err)
	}

	code := env.otps.lastCode["owner@example.com|"+string(otp.PurposeRegistration)]
	created, err := env.svc.VerifyRegistration(ctx, input, code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !created.IsActive {
		t.Fatal("account not active after verification")
	}
	if created.Role != kernel.RoleSuperAdmin {
		t.Fatalf("role = %s", created.Role)
	}
	if created.Company != "Xtown" || created.CompanyAddress != "Av. Norte 12" || created.CompanyPhone != "+51 1 555" {
		t.Fatal("company fields not carried into the account")
	}

	if err := env.svc.RegisterSuperAdmin(ctx, RegisterSuperAdminInput{
		Email: "second@example.com", Password: "password123",
	}); !errx.IsCode(err, user.CodeSuperAdminExists) {
		t.Fatalf("want super-admin-exists, got %v", err)
	}
}

func TestAbandonedRegistrationCanRestart(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first := RegisterSuperAdminInput{Email: "owner@example.com", Password: "password123"}
	if err := env.svc.RegisterSuperAdmin(ctx, first); err != nil {
		t.Fatalf("first register: %v", err)
	}

	// The OTP was never entered. A fresh registration, even under a
	// different email, must still be possible.
	second := RegisterSuperAdminInput{Email: "other@example.com", Password: "password123"}
	if err := env.svc.RegisterSuperAdmin(ctx, second); err != nil {
		t.Fatalf("register after abandoned attempt: %v", err)
	}

	code := env.otps.lastCode["other@example.com|"+string(otp.PurposeRegistration)]
	created, err := env.svc.VerifyRegistration(ctx, second, code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !created.IsActive {
		t.Fatal("account not active after verification")
	}

	// The abandoned attempt's OTP cannot resurrect a second super admin.
	staleCode := env.otps.lastCode["owner@example.com|"+string(otp.PurposeRegistration)]
	if _, err := env.svc.VerifyRegistration(ctx, first, staleCode); !errx.IsCode(err, user.CodeSuperAdminExists) {
		t.Fatalf("want super-admin-exists, got %v", err)
	}
}

func TestCreateAdminWithInitialProjects(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	super := env.mustCreateActive(t, kernel.RoleSuperAdmin, "owner@example.com", nil)
	p1, p2 := kernel.NewProjectID(), kernel.NewProjectID()

	admin, err := env.svc.CreateAdmin(ctx, super.ID, CreateAdminInput{
		Email: "admin@example.com", Password: "password123",
		Projects: []ProjectAssignment{
			{ProjectID: p1, Role: kernel.ProjectRoleAdmin},
			{ProjectID: p2, Role: kernel.ProjectRoleMember},
		},
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	active := env.grants.activeProjects(admin.ID)
	if len(active) != 2 {
		t.Fatalf("active projects = %v, want both assignments", active)
	}
	for _, g := range env.grants.grants {
		if g.UserID == admin.ID && g.GrantedBy != super.ID {
			t.Fatalf("granted_by = %s, want the acting super admin", g.GrantedBy)
		}
	}

	if env.otps.lastCode["admin@example.com|"+string(otp.PurposeAccountActivation)] == "" {
		t.Fatal("activation OTP not sent")
	}
}

func TestCreateAdminRejectsBadAssignmentBeforePersisting(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	super := env.mustCreateActive(t, kernel.RoleSuperAdmin, "owner@example.com", nil)

	_, err := env.svc.CreateAdmin(ctx, super.ID, CreateAdminInput{
		Email: "admin@example.com", Password: "password123",
		Projects: []ProjectAssignment{{ProjectID: kernel.NewProjectID(), Role: "JANITOR"}},
	})
	if !errx.IsCode(err, project.CodeInvalidRole) {
		t.Fatalf("want invalid-role, got %v", err)
	}
	if _, err := env.repo.GetByEmail(ctx, "admin@example.com"); !errx.IsCode(err, user.CodeUserNotFound) {
		t.Fatal("account persisted despite rejected assignment")
	}
}

func TestCreateSubUserInheritsCompany(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	admin := env.mustCreateActive(t, kernel.RoleAdmin, "admin@example.com", nil)
	admin.Company = "Xtown"
	admin.CompanyAddress = "Av. Norte 12"
	admin.CompanyPhone = "+51 1 555"
	if err := env.repo.Update(ctx, admin); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p := kernel.NewProjectID()
	sub, err := env.svc.CreateSubUser(ctx, admin.ID, CreateSubUserInput{
		Email: "sub@example.com", Password: "password123",
		Projects: []ProjectAssignment{{ProjectID: p, Role: kernel.ProjectRoleMember}},
	})
	if err != nil {
		t.Fatalf("create sub user: %v", err)
	}
	if sub.Company != "Xtown" || sub.CompanyAddress != "Av. Norte 12" || sub.CompanyPhone != "+51 1 555" {
		t.Fatalf("company fields = %q %q %q, want the admin's", sub.Company, sub.CompanyAddress, sub.CompanyPhone)
	}
	if active := env.grants.activeProjects(sub.ID); len(active) != 1 || active[0] != p {
		t.Fatalf("active projects = %v, want [%s]", active, p)
	}
}

func TestLoginErrorMatrix(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	active := env.mustCreateActive(t, kernel.RoleAdmin, "active@example.com", nil)

	inactive := &user.User{ID: kernel.NewUserID(), Email: "inactive@example.com", Role: kernel.RoleAdmin, PasswordHash: "hash:password123"}
	if err := env.repo.Create(ctx, inactive); err != nil {
		t.Fatalf("seed: %v", err)
	}

	suspended := env.mustCreateActive(t, kernel.RoleAdmin, "suspended@example.com", nil)
	suspended.Suspend("policy violation", active.ID)
	if err := env.repo.Update(ctx, suspended); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		name     string
		email    string
		password string
		wantCode *errx.ErrorCode
	}{
		{"unknown email", "nobody@example.com", "password123", user.CodeInvalidCredentials},
		{"wrong password", "active@example.com", "wrong", user.CodeInvalidCredentials},
		{"not activated", "inactive@example.com", "password123", user.CodeNotActivated},
		{"suspended", "suspended@example.com", "password123", user.CodeSuspended},
	}
	for _, tc := range cases {
		_, err := env.svc.Login(ctx, tc.email, tc.password)
		if !errx.IsCode(err, tc.wantCode) {
			t.Errorf("%s: want %s, got %v", tc.name, tc.wantCode.Code, err)
		}
	}

	got, err := env.svc.Login(ctx, "active@example.com", "password123")
	if err != nil {
		t.Fatalf("valid login: %v", err)
	}
	if got.ID != active.ID {
		t.Fatal("wrong user returned")
	}
}

func TestSuspendedErrorCarriesReason(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	u := env.mustCreateActive(t, kernel.RoleSubUser, "s@example.com", nil)
	u.Suspend("billing overdue", kernel.NewUserID())
	if err := env.repo.Update(ctx, u); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := env.svc.Login(ctx, "s@example.com", "password123")
	var e *errx.Error
	if !errx.As(err, &e) {
		t.Fatalf("want errx error, got %v", err)
	}
	if e.Details["reason"] != "billing overdue" {
		t.Fatalf("reason detail = %v", e.Details["reason"])
	}
}

func TestCreateSubUserEnforcesLimit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	admin := env.mustCreateActive(t, kernel.RoleAdmin, "admin@example.com", nil)
	admin.SubUserLimit = 2
	if err := env.repo.Update(ctx, admin); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i, email := range []string{"sub1@example.com", "sub2@example.com"} {
		if _, err := env.svc.CreateSubUser(ctx, admin.ID, CreateSubUserInput{
			Email: email, Password: "password123",
		}); err != nil {
			t.Fatalf("sub user %d: %v", i+1, err)
		}
	}

	_, err := env.svc.CreateSubUser(ctx, admin.ID, CreateSubUserInput{
		Email: "sub3@example.com", Password: "password123",
	})
	if !errx.IsCode(err, user.CodeSubUserLimit) {
		t.Fatalf("want sub-user-limit, got %v", err)
	}
}

func TestResetPasswordRevokesTokens(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	u := env.mustCreateActive(t, kernel.RoleAdmin, "reset@example.com", nil)

	if err := env.svc.ForgotPassword(ctx, "reset@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	code := env.otps.lastCode["reset@example.com|"+string(otp.PurposeForgotPassword)]

	if err := env.svc.ResetPassword(ctx, "reset@example.com", code, "newpassword1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !env.revoker.wasRevoked(u.ID) {
		t.Fatal("refresh tokens not revoked after password reset")
	}

	if _, err := env.svc.Login(ctx, "reset@example.com", "password123"); err == nil {
		t.Fatal("old password still works")
	}
	if _, err := env.svc.Login(ctx, "reset@example.com", "newpassword1"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestForgotPasswordHidesUnknownEmails(t *testing.T) {
	env := newTestEnv()
	if err := env.svc.ForgotPassword(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("unknown email must not error, got %v", err)
	}
}

func TestSuspendAdminCascadesToSubUsers(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	super := env.mustCreateActive(t, kernel.RoleSuperAdmin, "owner@example.com", nil)
	admin := env.mustCreateActive(t, kernel.RoleAdmin, "admin@example.com", nil)
	sub := env.mustCreateActive(t, kernel.RoleSubUser, "sub@example.com", &admin.ID)

	if err := env.svc.Suspend(ctx, authFor(super), admin.ID, "contract ended"); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	for _, id := range []kernel.UserID{admin.ID, sub.ID} {
		got, err := env.repo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !got.IsSuspended {
			t.Fatalf("user %s not suspended", got.Email)
		}
		if got.SuspendedReason != "contract ended" {
			t.Fatalf("reason = %q", got.SuspendedReason)
		}
		if !env.revoker.wasRevoked(id) {
			t.Fatalf("tokens of %s not revoked", got.Email)
		}
	}
}

func TestSuspendPermissionMatrix(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	super := env.mustCreateActive(t, kernel.RoleSuperAdmin, "owner@example.com", nil)
	adminA := env.mustCreateActive(t, kernel.RoleAdmin, "a@example.com", nil)
	adminB := env.mustCreateActive(t, kernel.RoleAdmin, "b@example.com", nil)
	subOfA := env.mustCreateActive(t, kernel.RoleSubUser, "sub-a@example.com", &adminA.ID)

	// An admin cannot suspend another admin's sub user.
	if err := env.svc.Suspend(ctx, authFor(adminB), subOfA.ID, "x"); !errx.IsCode(err, user.CodeCannotModify) {
		t.Fatalf("foreign sub user: want cannot-modify, got %v", err)
	}
	// An admin cannot suspend another admin.
	if err := env.svc.Suspend(ctx, authFor(adminA), adminB.ID, "x"); !errx.IsCode(err, user.CodeCannotModify) {
		t.Fatalf("peer admin: want cannot-modify, got %v", err)
	}
	// Nobody suspends the super admin.
	if err := env.svc.Suspend(ctx, authFor(adminA), super.ID, "x"); !errx.IsCode(err, user.CodeCannotModify) {
		t.Fatalf("super admin target: want cannot-modify, got %v", err)
	}
	// The owning admin can suspend their own sub user.
	if err := env.svc.Suspend(ctx, authFor(adminA), subOfA.ID, "inactive"); err != nil {
		t.Fatalf("own sub user: %v", err)
	}
}

func TestDeleteAdminCascades(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	super := env.mustCreateActive(t, kernel.RoleSuperAdmin, "owner@example.com", nil)
	admin := env.mustCreateActive(t, kernel.RoleAdmin, "admin@example.com", nil)
	sub := env.mustCreateActive(t, kernel.RoleSubUser, "sub@example.com", &admin.ID)

	if err := env.svc.Delete(ctx, authFor(super), admin.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.repo.GetByID(ctx, admin.ID); !errx.IsCode(err, user.CodeUserNotFound) {
		t.Fatal("admin still present")
	}
	if _, err := env.repo.GetByID(ctx, sub.ID); !errx.IsCode(err, user.CodeUserNotFound) {
		t.Fatal("sub user survived the cascade")
	}
}

func TestDeleteSuperAdminIsRefused(t *testing.T) {
	env := newTestEnv()
	super := env.mustCreateActive(t, kernel.RoleSuperAdmin, "owner@example.com", nil)

	err := env.svc.Delete(context.Background(), authFor(super), super.ID)
	if !errx.IsCode(err, user.CodeCannotModify) {
		t.Fatalf("want cannot-modify, got %v", err)
	}
}

func TestUpdateProjectsMirrorsOntoSubUsers(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	super := env.mustCreateActive(t, kernel.RoleSuperAdmin, "owner@example.com", nil)
	admin := env.mustCreateActive(t, kernel.RoleAdmin, "admin@example.com", nil)
	sub := env.mustCreateActive(t, kernel.RoleSubUser, "sub@example.com", &admin.ID)

	oldProject := kernel.NewProjectID()
	if err := env.svc.UpdateProjects(ctx, authFor(super), admin.ID, []ProjectAssignment{
		{ProjectID: oldProject, Role: kernel.ProjectRoleOwner},
	}); err != nil {
		t.Fatalf("initial grants: %v", err)
	}

	newProject := kernel.NewProjectID()
	if err := env.svc.UpdateProjects(ctx, authFor(super), admin.ID, []ProjectAssignment{
		{ProjectID: newProject, Role: kernel.ProjectRoleAdmin},
	}); err != nil {
		t.Fatalf("reassign: %v", err)
	}

	for _, id := range []kernel.UserID{admin.ID, sub.ID} {
		active := env.grants.activeProjects(id)
		if len(active) != 1 || active[0] != newProject {
			t.Fatalf("user %s active projects = %v, want [%s]", id, active, newProject)
		}
	}
}

func TestUpdateProjectsRejectsUnknownRole(t *testing.T) {
	env := newTestEnv()
	super := env.mustCreateActive(t, kernel.RoleSuperAdmin, "owner@example.com", nil)
	admin := env.mustCreateActive(t, kernel.RoleAdmin, "admin@example.com", nil)

	err := env.svc.UpdateProjects(context.Background(), authFor(super), admin.ID, []ProjectAssignment{
		{ProjectID: kernel.NewProjectID(), Role: "JANITOR"},
	})
	if !errx.IsCode(err, project.CodeInvalidRole) {
		t.Fatalf("want invalid-role, got %v", err)
	}
}

func TestUpdateSubUserLimitIsSuperAdminOnly(t *testing.T) {
	env := newTestEnv()
	super := env.mustCreateActive(t, kernel.RoleSuperAdmin, "root@example.com", nil)
	admin := env.mustCreateActive(t, kernel.RoleAdmin, "admin@example.com", nil)
	ctx := context.Background()

	_, err := env.svc.Update(ctx, authFor(admin), admin.ID, UpdateUserInput{
		SubUserLimit: ptrx.Int(50),
	})
	if !errx.IsCode(err, user.CodeCannotModify) {
		t.Fatalf("want cannot-modify for admin raising own limit, got %v", err)
	}

	updated, err := env.svc.Update(ctx, authFor(super), admin.ID, UpdateUserInput{
		SubUserLimit: ptrx.Int(50),
		Company:      ptrx.String("Xtown Norte"),
	})
	if err != nil {
		t.Fatalf("super admin update: %v", err)
	}
	if updated.SubUserLimit != 50 {
		t.Fatalf("sub user limit = %d, want 50", updated.SubUserLimit)
	}
	if updated.Company != "Xtown Norte" {
		t.Fatalf("company = %q", updated.Company)
	}
}
