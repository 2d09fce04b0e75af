package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"eduport/portfolio/internal/kv"
	"eduport/portfolio/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(kv.NewMemory())
}

// fixedClock makes the store clock step forward one second per call, so
// UpdatedAt ordering is deterministic.
func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(time.Second)
		return now
	}
}

func TestSavePortfolioCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saved, err := s.SavePortfolio(ctx, model.Portfolio{
		StudentID:   "1",
		StudentName: "John Doe",
		Title:       "Robotics Project",
		Status:      model.StatusIdea,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected a fresh id to be assigned")
	}
	if !saved.CreatedAt.Equal(saved.UpdatedAt) {
		t.Fatalf("expected createdAt == updatedAt on create, got %v / %v", saved.CreatedAt, saved.UpdatedAt)
	}

	portfolios, err := s.ListPortfolios(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(portfolios) != 1 || portfolios[0].ID != saved.ID {
		t.Fatalf("expected the new portfolio in the list, got %+v", portfolios)
	}
}

func TestSavePortfolioUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.now = fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	created, err := s.SavePortfolio(ctx, model.Portfolio{
		StudentID: "1",
		Title:     "Before",
		Status:    model.StatusIdea,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	changed := created
	changed.Title = "After"
	changed.Status = model.StatusPrototype
	updated, err := s.SavePortfolio(ctx, changed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.Title != "After" {
		t.Fatalf("expected title change to persist, got %s", updated.Title)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("expected createdAt unchanged, got %v", updated.CreatedAt)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("expected updatedAt to advance, got %v <= %v", updated.UpdatedAt, created.UpdatedAt)
	}

	stored, err := s.FindPortfolio(ctx, created.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Title != "After" || stored.Status != model.StatusPrototype {
		t.Fatalf("expected full overwrite, got %+v", stored)
	}
}

func TestSavePortfolioUnknownIDRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SavePortfolio(ctx, model.Portfolio{ID: "does-not-exist", Title: "X", Status: model.StatusIdea})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}

	portfolios, err := s.ListPortfolios(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(portfolios) != 0 {
		t.Fatalf("expected rejected save to write nothing, got %+v", portfolios)
	}
}

func TestFindPortfolioIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	first, err := s.FindPortfolio(ctx, "1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	second, err := s.FindPortfolio(ctx, "1")
	if err != nil {
		t.Fatalf("find again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical snapshots without intervening writes")
	}
}

func TestDeletePortfolio(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := s.DeletePortfolio(ctx, "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.FindPortfolio(ctx, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted portfolio to be absent, got %v", err)
	}
	portfolios, err := s.ListPortfolios(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(portfolios) != 1 || portfolios[0].ID != "2" {
		t.Fatalf("expected only portfolio 2 to remain, got %+v", portfolios)
	}

	// Absent id is a no-op.
	if err := s.DeletePortfolio(ctx, "1"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestListPortfoliosByStudent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mine, err := s.ListPortfoliosByStudent(ctx, "1")
	if err != nil {
		t.Fatalf("list by student: %v", err)
	}
	if len(mine) != 1 || mine[0].StudentID != "1" {
		t.Fatalf("expected only student 1's portfolio, got %+v", mine)
	}

	none, err := s.ListPortfoliosByStudent(ctx, "nobody")
	if err != nil {
		t.Fatalf("list by unknown student: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no portfolios for unknown student, got %+v", none)
	}
}

func TestFeedbackAddAndListFor(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	added, err := s.AddFeedback(ctx, model.Feedback{
		PortfolioID: "1",
		Author:      "A",
		Comment:     "c",
		Type:        model.FeedbackTypeAdmin,
	})
	if err != nil {
		t.Fatalf("add feedback: %v", err)
	}
	if added.ID == "" {
		t.Fatalf("expected feedback id to be assigned")
	}
	if added.Date.IsZero() {
		t.Fatalf("expected feedback date to be assigned")
	}

	feedback, err := s.ListFeedbackFor(ctx, "1")
	if err != nil {
		t.Fatalf("list feedback: %v", err)
	}
	if len(feedback) != 1 || feedback[0].ID != added.ID {
		t.Fatalf("expected exactly the added entry, got %+v", feedback)
	}

	other, err := s.ListFeedbackFor(ctx, "2")
	if err != nil {
		t.Fatalf("list feedback other: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no feedback for portfolio 2, got %+v", other)
	}

	if err := s.DeleteFeedback(ctx, added.ID); err != nil {
		t.Fatalf("delete feedback: %v", err)
	}
	feedback, err = s.ListFeedbackFor(ctx, "1")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(feedback) != 0 {
		t.Fatalf("expected feedback removed, got %+v", feedback)
	}
}

func TestAddUserAndFindByEmail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	added, err := s.AddUser(ctx, model.User{
		Email:    "new@edu.com",
		Password: "secret1",
		Role:     model.RoleStudent,
		Name:     "New Student",
	})
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	if added.ID == "" {
		t.Fatalf("expected user id to be assigned")
	}

	found, err := s.FindUserByEmail(ctx, "new@edu.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if found.ID != added.ID {
		t.Fatalf("expected to find the added user, got %+v", found)
	}

	if _, err := s.FindUserByEmail(ctx, "missing@edu.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown email, got %v", err)
	}
}

// The store does not own email uniqueness; adding the same email twice
// produces two independent records. The pre-check belongs to the caller.
func TestAddUserDoesNotEnforceEmailUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.AddUser(ctx, model.User{Email: "dup@edu.com", Role: model.RoleStudent})
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	second, err := s.AddUser(ctx, model.User{Email: "dup@edu.com", Role: model.RoleStudent})
	if err != nil {
		t.Fatalf("add second: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids for the two records")
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected two rows, got %d", len(users))
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.CurrentUser(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no session initially, got %v", err)
	}

	user := model.User{ID: "1", Email: "student1@edu.com", Name: "John Doe", Role: model.RoleStudent}
	if err := s.SetCurrentUser(ctx, &user); err != nil {
		t.Fatalf("set session: %v", err)
	}

	cached, err := s.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if cached.ID != "1" || cached.Name != "John Doe" {
		t.Fatalf("unexpected session user: %+v", cached)
	}

	// The session holds a copy taken at set time; later mutation of the
	// caller's value does not reach it.
	user.Name = "Changed"
	cached, err = s.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("get session again: %v", err)
	}
	if cached.Name != "John Doe" {
		t.Fatalf("expected cached copy to be unaffected, got %s", cached.Name)
	}

	if err := s.SetCurrentUser(ctx, nil); err != nil {
		t.Fatalf("clear session: %v", err)
	}
	if _, err := s.CurrentUser(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session cleared, got %v", err)
	}
}

// Two stores over separate backends keep separate sessions.
func TestIndependentSessions(t *testing.T) {
	ctx := context.Background()
	a := New(kv.NewMemory())
	b := New(kv.NewMemory())

	if err := a.SetCurrentUser(ctx, &model.User{ID: "1"}); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if _, err := b.CurrentUser(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second store to have no session, got %v", err)
	}
}

func TestFreshIDsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		saved, err := s.SavePortfolio(ctx, model.Portfolio{Title: "P", Status: model.StatusIdea})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if seen[saved.ID] {
			t.Fatalf("duplicate id %s", saved.ID)
		}
		seen[saved.ID] = true
	}
}
