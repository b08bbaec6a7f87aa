package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"user-admin/internal/archive"
	"user-admin/internal/auth"
	"user-admin/internal/domain"
	"user-admin/internal/paging"
	"user-admin/internal/service"
)

const dateLayout = "2006-01-02"

// Handler wires HTTP routes to domain services.
type Handler struct {
	users   service.UserService
	logs    service.LogService
	admin   service.AdminService
	archive archive.Manager
	auth    *auth.Authenticator
	logger  logrus.FieldLogger
}

type Deps struct {
	Users   service.UserService
	Logs    service.LogService
	Admin   service.AdminService
	Archive archive.Manager
	Auth    *auth.Authenticator
	Logger  logrus.FieldLogger
}

func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	return &Handler{
		users:   deps.Users,
		logs:    deps.Logs,
		admin:   deps.Admin,
		archive: deps.Archive,
		auth:    deps.Auth,
		logger:  deps.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestIDMiddleware(), accessLogMiddleware(h.logger), corsMiddleware())

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
	api.POST("/auth/login", h.login)

	secured := api.Group("", authMiddleware(h.auth))
	{
		secured.GET("/users", h.listUsers)
		secured.POST("/users", h.createUser)
		secured.GET("/users/:id", h.getUser)
		secured.PUT("/users/:id", h.updateUser)
		secured.DELETE("/users/:id", h.deleteUser)
		secured.GET("/users/:id/logs", h.userLogs)

		secured.GET("/logs", h.listLogs)
		secured.POST("/logs/archive", h.archiveLogs)
		secured.GET("/logs/archives", h.listArchives)
		secured.GET("/logs/:id", h.getLog)
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userRequest struct {
	Forename    string  `json:"forename" binding:"required"`
	Surname     string  `json:"surname" binding:"required"`
	Email       string  `json:"email" binding:"required,email"`
	IsActive    bool    `json:"isActive"`
	DateOfBirth *string `json:"dateOfBirth"`
}

func (h *Handler) login(c *gin.Context) {
	if !h.auth.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "authentication is not configured"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	tok, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.FilterByActive(c.Request.Context(), c.Query("filter"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createUser(c *gin.Context) {
	user, ok := h.bindUser(c)
	if !ok {
		return
	}

	created, err := h.admin.CreateUser(c.Request.Context(), user)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userToResponse(created))
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := parseID(c, "user")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, found, err := h.users.GetByID(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	entries, err := h.logs.GetLogsForUser(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, UserDetailResponse{
		User: userToResponse(user),
		Logs: logsToResponse(entries),
	})
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := parseID(c, "user")
	if !ok {
		return
	}
	user, ok := h.bindUser(c)
	if !ok {
		return
	}
	user.ID = id

	updated, err := h.admin.UpdateUser(c.Request.Context(), user)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(updated))
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := parseID(c, "user")
	if !ok {
		return
	}

	deleted, found, err := h.admin.DeleteUser(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": userToResponse(deleted)})
}

func (h *Handler) userLogs(c *gin.Context) {
	id, ok := parseID(c, "user")
	if !ok {
		return
	}

	entries, err := h.logs.GetLogsForUser(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, logsToResponse(entries))
}

func (h *Handler) listLogs(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	pageSize, err := queryInt(c, "pageSize", paging.DefaultPageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pageSize"})
		return
	}

	result, err := h.logs.ListPage(c.Request.Context(), page, min(pageSize, paging.MaxPageSize))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paging.Result[LogResponse]{
		Items:      logsToResponse(result.Items),
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) getLog(c *gin.Context) {
	id, ok := parseID(c, "log")
	if !ok {
		return
	}

	entry, found, err := h.logs.GetLogByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "log entry not found"})
		return
	}
	c.JSON(http.StatusOK, logToResponse(entry))
}

func (h *Handler) archiveLogs(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": archive.ErrDisabled.Error()})
		return
	}

	res, err := h.archive.Archive(c.Request.Context())
	if err != nil {
		if errors.Is(err, archive.ErrDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) listArchives(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": archive.ErrDisabled.Error()})
		return
	}

	objects, err := h.archive.List(c.Request.Context())
	if err != nil {
		if errors.Is(err, archive.ErrDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		h.writeError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) bindUser(c *gin.Context) (domain.User, bool) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return domain.User{}, false
	}

	user := domain.User{
		Forename: strings.TrimSpace(req.Forename),
		Surname:  strings.TrimSpace(req.Surname),
		Email:    strings.TrimSpace(req.Email),
		IsActive: req.IsActive,
	}
	if req.DateOfBirth != nil && strings.TrimSpace(*req.DateOfBirth) != "" {
		dob, err := parseDate(strings.TrimSpace(*req.DateOfBirth))
		if err != nil {
			h.writeError(c, domain.NewValidationError("dateOfBirth", "must be a date (YYYY-MM-DD)"))
			return domain.User{}, false
		}
		user.DateOfBirth = &dob
	}
	return user, true
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseID(c *gin.Context, kind string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + kind + " id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// bindError reports request binding failures, listing field errors when the
// validator produced them.
func (h *Handler) bindError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Field()
		name = strings.ToLower(name[:1]) + name[1:]
		switch fe.Tag() {
		case "required":
			fields[name] = "is required"
		case "email":
			fields[name] = "must be a valid email address"
		default:
			fields[name] = "is invalid"
		}
	}
	h.writeError(c, &domain.ValidationError{Fields: fields})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrConstraintViolation.Error(), "fields": verr.Fields})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.logger.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"path":       c.FullPath(),
		}).Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
