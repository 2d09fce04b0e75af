package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eduport/portfolio/internal/auth"
	"eduport/portfolio/internal/config"
	"eduport/portfolio/internal/model"
	"eduport/portfolio/internal/store"
)

type Server struct {
	cfg   config.Config
	store *store.Store
}

func NewServer(cfg config.Config, recordStore *store.Store) *Server {
	return &Server{cfg: cfg, store: recordStore}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/public/portfolios/{portfolioId}", s.handlePublicPortfolio)
	r.Get("/public/portfolios/{portfolioId}/export", s.handleExportPortfolio)

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)

	r.With(s.authMiddleware).Get("/portfolios", s.handleListPortfolios)
	r.With(s.authMiddleware, s.requireStudent).Post("/portfolios", s.handleCreatePortfolio)
	r.With(s.authMiddleware).Get("/portfolios/{portfolioId}", s.handleGetPortfolio)
	r.With(s.authMiddleware, s.requireStudent).Put("/portfolios/{portfolioId}", s.handleUpdatePortfolio)
	r.With(s.authMiddleware, s.requireStudent).Post("/portfolios/{portfolioId}/milestones/{milestoneId}/toggle", s.handleToggleMilestone)
	r.With(s.authMiddleware, s.requireAdmin).Post("/portfolios/{portfolioId}/approve", s.handleApprovePortfolio)
	r.With(s.authMiddleware, s.requireAdmin).Post("/portfolios/{portfolioId}/reject", s.handleRejectPortfolio)
	r.With(s.authMiddleware, s.requireAdmin).Delete("/portfolios/{portfolioId}", s.handleDeletePortfolio)

	r.With(s.authMiddleware).Get("/portfolios/{portfolioId}/feedback", s.handleListFeedback)
	r.With(s.authMiddleware).Post("/portfolios/{portfolioId}/feedback", s.handleCreateFeedback)
	r.With(s.authMiddleware, s.requireAdmin).Delete("/feedback/{feedbackId}", s.handleDeleteFeedback)

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || claims.Role != string(model.RoleAdmin) {
			writeError(w, http.StatusForbidden, "admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireStudent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || claims.Role != string(model.RoleStudent) {
			writeError(w, http.StatusForbidden, "student_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Accounts and session

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

type authResponse struct {
	AccessToken string      `json:"accessToken"`
	User        userSummary `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}

	// Email uniqueness lives here, not in the store.
	if _, err := s.store.FindUserByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email_already_registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	user, err := s.store.AddUser(r.Context(), model.User{
		Email:    req.Email,
		Password: req.Password,
		Role:     model.RoleStudent,
		Name:     req.Name,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if err := s.signIn(r.Context(), w, http.StatusCreated, user); err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	// Plain string comparison; the store keeps passwords as-is.
	if user.Password != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	if err := s.signIn(r.Context(), w, http.StatusOK, user); err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
	}
}

func (s *Server) signIn(ctx context.Context, w http.ResponseWriter, status int, user model.User) error {
	if err := s.store.SetCurrentUser(ctx, &user); err != nil {
		return err
	}
	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: user.ID,
		Role:   string(user.Role),
		Name:   user.Name,
	})
	if err != nil {
		return err
	}
	writeJSON(w, status, authResponse{
		AccessToken: token,
		User:        mapUser(user),
	})
	return nil
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.store.SetCurrentUser(r.Context(), nil); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.CurrentUser(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no_session")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}

// Portfolios

type milestonePayload struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Completed bool       `json:"completed"`
	Date      *time.Time `json:"date"`
}

type mediaPayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type portfolioRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      string             `json:"status"`
	Milestones  []milestonePayload `json:"milestones"`
	Media       []mediaPayload     `json:"media"`
}

type portfolioResponse struct {
	model.Portfolio
	Progress float64 `json:"progress"`
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	if claims.Role == string(model.RoleStudent) {
		portfolios, err := s.store.ListPortfoliosByStudent(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		writeJSON(w, http.StatusOK, mapPortfolios(portfolios))
		return
	}

	portfolios, err := s.store.ListPortfolios(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if filter := r.URL.Query().Get("status"); filter != "" && filter != "all" {
		portfolios = filterPortfolios(portfolios, filter)
	}
	writeJSON(w, http.StatusOK, mapPortfolios(portfolios))
}

// filterPortfolios keeps portfolios whose student status or admin review
// status matches the value, preserving relative order.
func filterPortfolios(portfolios []model.Portfolio, value string) []model.Portfolio {
	matched := make([]model.Portfolio, 0, len(portfolios))
	for _, p := range portfolios {
		if string(p.Status) == value || string(p.AdminStatus) == value {
			matched = append(matched, p)
		}
	}
	return matched
}

func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req portfolioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	portfolio, errCode := buildPortfolio(req, claims)
	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode)
		return
	}

	saved, err := s.store.SavePortfolio(r.Context(), portfolio)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapPortfolio(saved))
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	portfolio, ok := s.fetchPortfolio(w, r)
	if !ok {
		return
	}
	if claims.Role == string(model.RoleStudent) && portfolio.StudentID != claims.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, mapPortfolio(portfolio))
}

func (s *Server) handleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	existing, ok := s.fetchPortfolio(w, r)
	if !ok {
		return
	}
	if existing.StudentID != claims.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req portfolioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	portfolio, errCode := buildPortfolio(req, claims)
	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode)
		return
	}
	// Full overwrite of student-controlled fields; the review outcome is not
	// the student's to change.
	portfolio.ID = existing.ID
	portfolio.AdminStatus = existing.AdminStatus

	saved, err := s.store.SavePortfolio(r.Context(), portfolio)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portfolio_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapPortfolio(saved))
}

func buildPortfolio(req portfolioRequest, claims *auth.Claims) (model.Portfolio, string) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return model.Portfolio{}, "missing_title"
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		return model.Portfolio{}, "invalid_status"
	}

	milestones := make([]model.Milestone, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		milestones = append(milestones, model.Milestone{
			ID:        m.ID,
			Name:      m.Name,
			Completed: m.Completed,
			Date:      m.Date,
		})
	}
	if len(milestones) == 0 {
		milestones = model.DefaultMilestones()
	}

	media := make([]model.Media, 0, len(req.Media))
	for _, m := range req.Media {
		mediaType, err := model.ParseMediaType(m.Type)
		if err != nil {
			return model.Portfolio{}, "invalid_media_type"
		}
		media = append(media, model.Media{Name: m.Name, Type: mediaType, URL: m.URL})
	}

	return model.Portfolio{
		StudentID:   claims.UserID,
		StudentName: claims.Name,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Milestones:  milestones,
		Media:       media,
	}, ""
}

func (s *Server) handleToggleMilestone(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	portfolio, ok := s.fetchPortfolio(w, r)
	if !ok {
		return
	}
	if portfolio.StudentID != claims.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	milestoneID := chi.URLParam(r, "milestoneId")
	if !model.ToggleMilestone(portfolio.Milestones, milestoneID, time.Now().UTC()) {
		writeError(w, http.StatusNotFound, "milestone_not_found")
		return
	}

	saved, err := s.store.SavePortfolio(r.Context(), portfolio)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapPortfolio(saved))
}

func (s *Server) handleApprovePortfolio(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, model.AdminStatusApproved)
}

func (s *Server) handleRejectPortfolio(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, model.AdminStatusRejected)
}

func (s *Server) review(w http.ResponseWriter, r *http.Request, outcome model.AdminStatus) {
	portfolio, ok := s.fetchPortfolio(w, r)
	if !ok {
		return
	}
	portfolio.AdminStatus = outcome

	saved, err := s.store.SavePortfolio(r.Context(), portfolio)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapPortfolio(saved))
}

func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, ok := s.fetchPortfolio(w, r)
	if !ok {
		return
	}

	if err := s.store.DeletePortfolio(r.Context(), portfolio.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	// Cascade: feedback rows reference the portfolio informally, so they are
	// removed here, not inside the store.
	feedback, err := s.store.ListFeedbackFor(r.Context(), portfolio.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	for _, entry := range feedback {
		if err := s.store.DeleteFeedback(r.Context(), entry.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Feedback

type feedbackRequest struct {
	Comment string `json:"comment"`
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	portfolio, ok := s.fetchPortfolio(w, r)
	if !ok {
		return
	}
	feedback, err := s.store.ListFeedbackFor(r.Context(), portfolio.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}

func (s *Server) handleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	portfolio, ok := s.fetchPortfolio(w, r)
	if !ok {
		return
	}

	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if req.Comment == "" {
		writeError(w, http.StatusBadRequest, "missing_comment")
		return
	}

	entry, err := s.store.AddFeedback(r.Context(), model.Feedback{
		PortfolioID: portfolio.ID,
		Author:      claims.Name,
		Comment:     req.Comment,
		Type:        model.FeedbackType(claims.Role),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDeleteFeedback(w http.ResponseWriter, r *http.Request) {
	feedbackID := chi.URLParam(r, "feedbackId")
	if feedbackID == "" {
		writeError(w, http.StatusBadRequest, "missing_feedback_id")
		return
	}
	if err := s.store.DeleteFeedback(r.Context(), feedbackID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Public read-only surface

type publicPortfolioResponse struct {
	Portfolio portfolioResponse `json:"portfolio"`
	Feedback  []model.Feedback  `json:"feedback"`
}

func (s *Server) handlePublicPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, ok := s.fetchPortfolio(w, r)
	if !ok {
		return
	}
	feedback, err := s.store.ListFeedbackFor(r.Context(), portfolio.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, publicPortfolioResponse{
		Portfolio: mapPortfolio(portfolio),
		Feedback:  feedback,
	})
}

type exportResponse struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	Portfolio   portfolioResponse `json:"portfolio"`
	Feedback    []model.Feedback  `json:"feedback"`
}

// handleExportPortfolio assembles the snapshot the download feature renders:
// the portfolio, its feedback and the computed progress. Rendering to PDF is
// the client's concern; this endpoint never writes.
func (s *Server) handleExportPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, ok := s.fetchPortfolio(w, r)
	if !ok {
		return
	}
	feedback, err := s.store.ListFeedbackFor(r.Context(), portfolio.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	filename := portfolio.Title
	if filename == "" {
		filename = "portfolio"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".json"))
	writeJSON(w, http.StatusOK, exportResponse{
		GeneratedAt: time.Now().UTC(),
		Portfolio:   mapPortfolio(portfolio),
		Feedback:    feedback,
	})
}

// Helpers

func (s *Server) fetchPortfolio(w http.ResponseWriter, r *http.Request) (model.Portfolio, bool) {
	portfolioID := chi.URLParam(r, "portfolioId")
	if portfolioID == "" {
		writeError(w, http.StatusBadRequest, "missing_portfolio_id")
		return model.Portfolio{}, false
	}
	portfolio, err := s.store.FindPortfolio(r.Context(), portfolioID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portfolio_not_found")
			return model.Portfolio{}, false
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return model.Portfolio{}, false
	}
	return portfolio, true
}

func mapUser(user model.User) userSummary {
	return userSummary{
		ID:    user.ID,
		Email: user.Email,
		Role:  string(user.Role),
		Name:  user.Name,
	}
}

func mapPortfolio(p model.Portfolio) portfolioResponse {
	return portfolioResponse{Portfolio: p, Progress: model.Progress(p.Milestones)}
}

func mapPortfolios(portfolios []model.Portfolio) []portfolioResponse {
	resp := make([]portfolioResponse, 0, len(portfolios))
	for _, p := range portfolios {
		resp = append(resp, mapPortfolio(p))
	}
	return resp
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
