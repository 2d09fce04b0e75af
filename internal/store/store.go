// Package store is the record store behind the portfolio service: four
// independent collections (users, current session, portfolios, feedback)
// serialized as JSON under fixed keys in a kv.Store. Every operation is a
// whole-collection load/mutate/store round-trip; reads return fresh
// snapshots, so callers re-fetch after mutating.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"eduport/portfolio/internal/kv"
	"eduport/portfolio/internal/model"
)

const (
	usersKey       = "eduport_users"
	currentUserKey = "eduport_current_user"
	portfoliosKey  = "eduport_portfolios"
	feedbackKey    = "eduport_feedback"
)

var ErrNotFound = errors.New("record not found")

type Store struct {
	backend kv.Store

	// Overridable in tests; real callers keep the defaults.
	now   func() time.Time
	newID func() string
}

func New(backend kv.Store) *Store {
	return &Store{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return ulid.Make().String() },
	}
}

// Users

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.loadUsers(ctx)
}

// AddUser assigns a fresh id, appends and persists. It does not check email
// uniqueness; that pre-check belongs to the caller.
func (s *Store) AddUser(ctx context.Context, user model.User) (model.User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return model.User{}, err
	}
	user.ID = s.newID()
	users = append(users, user)
	if err := s.storeJSON(ctx, usersKey, users); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (model.User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return model.User{}, err
	}
	for _, user := range users {
		if user.Email == email {
			return user, nil
		}
	}
	return model.User{}, ErrNotFound
}

// Session

// CurrentUser returns the cached session user. The copy is taken at login
// time; later changes to the underlying user record do not update it.
func (s *Store) CurrentUser(ctx context.Context) (model.User, error) {
	raw, err := s.backend.Get(ctx, currentUserKey)
	if errors.Is(err, kv.ErrNotFound) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// SetCurrentUser replaces the session value; nil clears it.
func (s *Store) SetCurrentUser(ctx context.Context, user *model.User) error {
	if user == nil {
		return s.backend.Delete(ctx, currentUserKey)
	}
	return s.storeJSON(ctx, currentUserKey, user)
}

// Portfolios

func (s *Store) ListPortfolios(ctx context.Context) ([]model.Portfolio, error) {
	return s.loadPortfolios(ctx)
}

func (s *Store) FindPortfolio(ctx context.Context, id string) (model.Portfolio, error) {
	portfolios, err := s.loadPortfolios(ctx)
	if err != nil {
		return model.Portfolio{}, err
	}
	for _, p := range portfolios {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Portfolio{}, ErrNotFound
}

func (s *Store) ListPortfoliosByStudent(ctx context.Context, studentID string) ([]model.Portfolio, error) {
	portfolios, err := s.loadPortfolios(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]model.Portfolio, 0, len(portfolios))
	for _, p := range portfolios {
		if p.StudentID == studentID {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// SavePortfolio upserts by id. An empty id means create: a fresh id is
// assigned and CreatedAt/UpdatedAt are both set to now. A non-empty id must
// match an existing record, whose fields are replaced wholesale with the
// input's (CreatedAt is preserved, UpdatedAt is set to now); a non-empty id
// with no match returns ErrNotFound.
func (s *Store) SavePortfolio(ctx context.Context, portfolio model.Portfolio) (model.Portfolio, error) {
	portfolios, err := s.loadPortfolios(ctx)
	if err != nil {
		return model.Portfolio{}, err
	}

	now := s.now()
	if portfolio.ID == "" {
		portfolio.ID = s.newID()
		portfolio.CreatedAt = now
		portfolio.UpdatedAt = now
		portfolios = append(portfolios, portfolio)
	} else {
		index := -1
		for i, p := range portfolios {
			if p.ID == portfolio.ID {
				index = i
				break
			}
		}
		if index < 0 {
			return model.Portfolio{}, ErrNotFound
		}
		portfolio.CreatedAt = portfolios[index].CreatedAt
		portfolio.UpdatedAt = now
		portfolios[index] = portfolio
	}

	if err := s.storeJSON(ctx, portfoliosKey, portfolios); err != nil {
		return model.Portfolio{}, err
	}
	return portfolio, nil
}

// DeletePortfolio removes the matching record; absent ids are a no-op. It
// does not cascade to feedback; that cleanup belongs to the caller.
func (s *Store) DeletePortfolio(ctx context.Context, id string) error {
	portfolios, err := s.loadPortfolios(ctx)
	if err != nil {
		return err
	}
	kept := make([]model.Portfolio, 0, len(portfolios))
	for _, p := range portfolios {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	return s.storeJSON(ctx, portfoliosKey, kept)
}

// Feedback

func (s *Store) ListFeedbackFor(ctx context.Context, portfolioID string) ([]model.Feedback, error) {
	feedback, err := s.loadFeedback(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]model.Feedback, 0, len(feedback))
	for _, f := range feedback {
		if f.PortfolioID == portfolioID {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

func (s *Store) AddFeedback(ctx context.Context, entry model.Feedback) (model.Feedback, error) {
	feedback, err := s.loadFeedback(ctx)
	if err != nil {
		return model.Feedback{}, err
	}
	entry.ID = s.newID()
	entry.Date = s.now()
	feedback = append(feedback, entry)
	if err := s.storeJSON(ctx, feedbackKey, feedback); err != nil {
		return model.Feedback{}, err
	}
	return entry, nil
}

func (s *Store) DeleteFeedback(ctx context.Context, id string) error {
	feedback, err := s.loadFeedback(ctx)
	if err != nil {
		return err
	}
	kept := make([]model.Feedback, 0, len(feedback))
	for _, f := range feedback {
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	return s.storeJSON(ctx, feedbackKey, kept)
}

// Collection plumbing. An absent key reads as an empty collection; corrupted
// JSON propagates as-is, the store trusts its own prior writes.

func (s *Store) loadUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.loadJSON(ctx, usersKey, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

func (s *Store) loadPortfolios(ctx context.Context) ([]model.Portfolio, error) {
	var portfolios []model.Portfolio
	if err := s.loadJSON(ctx, portfoliosKey, &portfolios); err != nil {
		return nil, err
	}
	if portfolios == nil {
		portfolios = []model.Portfolio{}
	}
	return portfolios, nil
}

func (s *Store) loadFeedback(ctx context.Context) ([]model.Feedback, error) {
	var feedback []model.Feedback
	if err := s.loadJSON(ctx, feedbackKey, &feedback); err != nil {
		return nil, err
	}
	if feedback == nil {
		feedback = []model.Feedback{}
	}
	return feedback, nil
}

func (s *Store) loadJSON(ctx context.Context, key string, out interface{}) error {
	raw, err := s.backend.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *Store) storeJSON(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, key, raw)
}
