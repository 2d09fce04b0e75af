package store

import (
	"context"
	"errors"
	"time"

	"eduport/portfolio/internal/kv"
	"eduport/portfolio/internal/model"
)

// Seed pre-populates the demo accounts and example portfolios. Each key is
// written only if currently absent, so repeated calls are no-ops.
func (s *Store) Seed(ctx context.Context) error {
	if err := s.seedKey(ctx, usersKey, seedUsers()); err != nil {
		return err
	}
	if err := s.seedKey(ctx, portfoliosKey, seedPortfolios()); err != nil {
		return err
	}
	return s.seedKey(ctx, feedbackKey, []model.Feedback{})
}

func (s *Store) seedKey(ctx context.Context, key string, value interface{}) error {
	_, err := s.backend.Get(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return err
	}
	return s.storeJSON(ctx, key, value)
}

func seedUsers() []model.User {
	return []model.User{
		{
			ID:       "1",
			Email:    "student1@edu.com",
			Password: "student123",
			Role:     model.RoleStudent,
			Name:     "John Doe",
		},
		{
			ID:       "2",
			Email:    "student2@edu.com",
			Password: "student123",
			Role:     model.RoleStudent,
			Name:     "Jane Smith",
		},
		{
			ID:       "admin",
			Email:    "admin@edu.com",
			Password: "admin123",
			Role:     model.RoleAdmin,
			Name:     "Admin User",
		},
	}
}

func seedPortfolios() []model.Portfolio {
	return []model.Portfolio{
		{
			ID:          "1",
			StudentID:   "1",
			StudentName: "John Doe",
			Title:       "E-Commerce Website",
			Description: "A full-stack e-commerce platform with payment integration",
			Status:      model.StatusTesting,
			Milestones: []model.Milestone{
				{ID: "1", Name: "Idea", Completed: true, Date: seedDate(2024, 1, 15)},
				{ID: "2", Name: "Prototype", Completed: true, Date: seedDate(2024, 2, 20)},
				{ID: "3", Name: "Testing", Completed: true, Date: seedDate(2024, 3, 10)},
				{ID: "4", Name: "Completed", Completed: false},
			},
			Media:     []model.Media{},
			CreatedAt: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "2",
			StudentID:   "2",
			StudentName: "Jane Smith",
			Title:       "Mobile App for Fitness",
			Description: "A React Native app for tracking workouts and nutrition",
			Status:      model.StatusPrototype,
			Milestones: []model.Milestone{
				{ID: "1", Name: "Idea", Completed: true, Date: seedDate(2024, 2, 1)},
				{ID: "2", Name: "Prototype", Completed: true, Date: seedDate(2024, 3, 1)},
				{ID: "3", Name: "Testing", Completed: false},
				{ID: "4", Name: "Completed", Completed: false},
			},
			Media:     []model.Media{},
			CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func seedDate(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}
