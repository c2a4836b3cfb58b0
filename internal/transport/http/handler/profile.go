package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/layoffproof/layoff-tracker/internal/domain"
	"github.com/layoffproof/layoff-tracker/internal/repository"
	"github.com/layoffproof/layoff-tracker/internal/transport/http/middleware"
	"github.com/layoffproof/layoff-tracker/internal/usecase"
)

type profileUsecaser interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userID string, input repository.UpdateProfileInput) (*domain.Profile, error)
	SearchCompanies(ctx context.Context, query string) ([]*domain.Company, error)
	SelectCompany(ctx context.Context, userID, companyID string) (*domain.Profile, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
}

type ProfileHandler struct {
	profiles profileUsecaser
	logger   *slog.Logger
}

func NewProfileHandler(profiles profileUsecaser, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger.With("component", "profile_handler")}
}

type companyResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Industry      string     `json:"industry"`
	LayoffCount   int        `json:"layoff_count"`
	LastLayoffAt  *time.Time `json:"last_layoff_at,omitempty"`
	EmployeeCount *int       `json:"employee_count,omitempty"`
}

type profileResponse struct {
	ID                 string                    `json:"id"`
	Email              string                    `json:"email"`
	Name               string                    `json:"name"`
	Company            *companyResponse          `json:"company"`
	SubscriptionStatus domain.SubscriptionStatus `json:"subscription_status"`
	Premium            bool                      `json:"premium"`
	CreatedAt          time.Time                 `json:"created_at"`
}

type updateProfileRequest struct {
	Name *string `json:"name" binding:"required"`
}

type selectCompanyRequest struct {
	CompanyID string `json:"company_id" binding:"required"`
}

type notificationResponse struct {
	ID        string                  `json:"id"`
	Kind      domain.NotificationKind `json:"kind"`
	Title     string                  `json:"title"`
	Body      string                  `json:"body"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"created_at"`
}

// GET /me
func (h *ProfileHandler) Get(c *gin.Context) {
	p, err := h.profiles.GetProfile(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		h.fail(c, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, toProfileResponse(p))
}

// PATCH /me
func (h *ProfileHandler) Update(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.profiles.UpdateProfile(c.Request.Context(), c.GetString(middleware.UserIDKey),
		repository.UpdateProfileInput{Name: req.Name})
	if err != nil {
		h.fail(c, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, toProfileResponse(p))
}

// GET /companies?q=
func (h *ProfileHandler) SearchCompanies(c *gin.Context) {
	companies, err := h.profiles.SearchCompanies(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, "search companies", err)
		return
	}
	out := make([]companyResponse, 0, len(companies))
	for _, co := range companies {
		out = append(out, toCompanyResponse(co))
	}
	c.JSON(http.StatusOK, gin.H{"companies": out})
}

// PUT /me/company
func (h *ProfileHandler) SelectCompany(c *gin.Context) {
	var req selectCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := uuid.Parse(req.CompanyID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errCompanyNotFound})
		return
	}

	p, err := h.profiles.SelectCompany(c.Request.Context(), c.GetString(middleware.UserIDKey), req.CompanyID)
	if err != nil {
		h.fail(c, "select company", err)
		return
	}
	c.JSON(http.StatusOK, toProfileResponse(p))
}

// GET /notifications?unread=true
func (h *ProfileHandler) ListNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	list, err := h.profiles.ListNotifications(c.Request.Context(), c.GetString(middleware.UserIDKey), unreadOnly)
	if err != nil {
		h.fail(c, "list notifications", err)
		return
	}
	out := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, notificationResponse{
			ID:        n.ID,
			Kind:      n.Kind,
			Title:     n.Title,
			Body:      n.Body,
			Read:      n.ReadAt != nil,
			CreatedAt: n.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

// POST /notifications/:id/read
func (h *ProfileHandler) MarkNotificationRead(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errNotificationNotFound})
		return
	}
	if err := h.profiles.MarkNotificationRead(c.Request.Context(), c.GetString(middleware.UserIDKey), id); err != nil {
		h.fail(c, "mark notification read", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProfileHandler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": usecase.ErrInvalidName.Error()})
	case errors.Is(err, domain.ErrCompanyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errCompanyNotFound})
	case errors.Is(err, domain.ErrNotificationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errNotificationNotFound})
	case errors.Is(err, domain.ErrUserNotFound):
		middleware.Unauthorized(c)
	default:
		h.logger.ErrorContext(c.Request.Context(), op, "error", err)
		internalError(c, err)
	}
}

func toCompanyResponse(co *domain.Company) companyResponse {
	return companyResponse{
		ID:            co.ID,
		Name:          co.Name,
		Industry:      co.Industry,
		LayoffCount:   co.LayoffCount,
		LastLayoffAt:  co.LastLayoffAt,
		EmployeeCount: co.EmployeeCount,
	}
}

func toProfileResponse(p *domain.Profile) profileResponse {
	resp := profileResponse{
		ID:                 p.User.ID,
		Email:              p.User.Email,
		Name:               p.User.Name,
		SubscriptionStatus: p.SubscriptionStatus,
		Premium:            p.SubscriptionStatus.Premium(),
		CreatedAt:          p.User.CreatedAt,
	}
	if p.Company != nil {
		co := toCompanyResponse(p.Company)
		resp.Company = &co
	}
	return resp
}
