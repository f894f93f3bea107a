package projectsrv

import (
	"context"
	"testing"

	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/kernel"
	"github.com/xtown/projecthub/pkg/ptrx"
)

type fakeProjectRepo struct {
	projects map[kernel.ProjectID]*project.Project
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: make(map[kernel.ProjectID]*project.Project)}
}

func (r *fakeProjectRepo) Create(_ context.Context, p *project.Project) error {
	for _, existing := range r.projects {
		if existing.CustomID == p.CustomID {
			return project.ErrDuplicateProject()
		}
	}
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

func (r *fakeProjectRepo) GetByID(_ context.Context, id kernel.ProjectID) (*project.Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, project.ErrProjectNotFound()
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProjectRepo) GetByCustomID(_ context.Context, customID string) (*project.Project, error) {
	for _, p := range r.projects {
		if p.CustomID == customID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, project.ErrProjectNotFound()
}

func (r *fakeProjectRepo) List(_ context.Context) ([]*project.Project, error) {
	out := make([]*project.Project, 0, len(r.projects))
	for _, p := range r.projects {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeProjectRepo) Update(_ context.Context, p *project.Project) error {
	if _, ok := r.projects[p.ID]; !ok {
		return project.ErrProjectNotFound()
	}
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

func (r *fakeProjectRepo) Delete(_ context.Context, id kernel.ProjectID) error {
	if _, ok := r.projects[id]; !ok {
		return project.ErrProjectNotFound()
	}
	delete(r.projects, id)
	return nil
}

func (r *fakeProjectRepo) Count(_ context.Context) (int, error) {
	return len(r.projects), nil
}

type fakeGrantRepo struct {
	grants []*project.UserProject
}

func (r *fakeGrantRepo) Upsert(_ context.Context, g *project.UserProject) error {
	for i, existing := range r.grants {
		if existing.UserID == g.UserID && existing.ProjectID == g.ProjectID {
			cp := *g
			r.grants[i] = &cp
			return nil
		}
	}
	cp := *g
	r.grants = append(r.grants, &cp)
	return nil
}

func (r *fakeGrantRepo) GetActive(_ context.Context, userID kernel.UserID, projectID kernel.ProjectID) (*project.UserProject, error) {
	for _, g := range r.grants {
		if g.UserID == userID && g.ProjectID == projectID && g.IsActive {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeGrantRepo) ListActiveByUser(_ context.Context, userID kernel.UserID) ([]project.GrantView, error) {
	var out []project.GrantView
	for _, g := range r.grants {
		if g.UserID == userID && g.IsActive {
			out = append(out, project.GrantView{Grant: *g})
		}
	}
	return out, nil
}

func (r *fakeGrantRepo) ListByProject(_ context.Context, projectID kernel.ProjectID) ([]*project.UserProject, error) {
	var out []*project.UserProject
	for _, g := range r.grants {
		if g.ProjectID == projectID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeGrantRepo) DeactivateAllForUser(_ context.Context, userID kernel.UserID) error {
	for _, g := range r.grants {
		if g.UserID == userID {
			g.IsActive = false
		}
	}
	return nil
}

func (r *fakeGrantRepo) ReplaceForUser(ctx context.Context, userID kernel.UserID, grants []*project.UserProject) error {
	if err := r.DeactivateAllForUser(ctx, userID); err != nil {
		return err
	}
	for _, g := range grants {
		cp := *g
		r.grants = append(r.grants, &cp)
	}
	return nil
}

func (r *fakeGrantRepo) TouchLastAccessed(_ context.Context, _ string) error { return nil }

func (r *fakeGrantRepo) CountActiveByProject(_ context.Context, projectID kernel.ProjectID) (int, error) {
	n := 0
	for _, g := range r.grants {
		if g.ProjectID == projectID && g.IsActive {
			n++
		}
	}
	return n, nil
}

func TestCreateRejectsInvalidCustomID(t *testing.T) {
	svc := NewProjectService(newFakeProjectRepo(), &fakeGrantRepo{})

	cases := []string{"ab", "has space", "way-too-long-for-a-project-id", "bad!chars", ""}
	for _, customID := range cases {
		_, err := svc.Create(context.Background(), CreateProjectInput{CustomID: customID, Name: "X"})
		if !errx.IsCode(err, project.CodeInvalidCustomID) {
			t.Errorf("custom id %q: want invalid-custom-id error, got %v", customID, err)
		}
	}
}

func TestCreateAcceptsValidCustomIDs(t *testing.T) {
	svc := NewProjectService(newFakeProjectRepo(), &fakeGrantRepo{})

	for _, customID := range []string{"crm", "portal-v2", "my_project", "A1b-2C"} {
		if _, err := svc.Create(context.Background(), CreateProjectInput{CustomID: customID, Name: "X"}); err != nil {
			t.Errorf("custom id %q rejected: %v", customID, err)
		}
	}
}

func TestCreateRejectsDuplicateCustomID(t *testing.T) {
	svc := NewProjectService(newFakeProjectRepo(), &fakeGrantRepo{})
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateProjectInput{CustomID: "portal", Name: "Portal"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(ctx, CreateProjectInput{CustomID: "portal", Name: "Other"})
	if !errx.IsCode(err, project.CodeDuplicateProject) {
		t.Fatalf("want duplicate error, got %v", err)
	}
}

func TestUpdateKeepsCustomIDImmutable(t *testing.T) {
	svc := NewProjectService(newFakeProjectRepo(), &fakeGrantRepo{})
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateProjectInput{CustomID: "portal", Name: "Portal", URL: "https://portal.example"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(ctx, created.ID, UpdateProjectInput{Name: ptrx.String("Renamed")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CustomID != "portal" {
		t.Fatalf("custom id changed to %q", updated.CustomID)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("name = %q, want Renamed", updated.Name)
	}
	if updated.URL != "https://portal.example" {
		t.Fatalf("untouched URL changed to %q", updated.URL)
	}
}

func TestStatsCountsActiveGrants(t *testing.T) {
	repo := newFakeProjectRepo()
	grants := &fakeGrantRepo{}
	svc := NewProjectService(repo, grants)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateProjectInput{CustomID: "portal", Name: "Portal"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	grants.grants = []*project.UserProject{
		{ID: "g1", UserID: "u1", ProjectID: p.ID, IsActive: true},
		{ID: "g2", UserID: "u2", ProjectID: p.ID, IsActive: false},
		{ID: "g3", UserID: "u3", ProjectID: p.ID, IsActive: true},
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("total = %d, want 1", stats.Total)
	}
	if stats.Top[0].ActiveUsers != 2 {
		t.Fatalf("active users = %d, want 2", stats.Top[0].ActiveUsers)
	}
	if len(stats.Recent) != 1 || stats.Recent[0].ID != p.ID {
		t.Fatalf("recent projects = %+v", stats.Recent)
	}
}
