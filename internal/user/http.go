package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/abduss/grimoire/internal/security"
	"github.com/abduss/grimoire/internal/store"
	"github.com/gin-gonic/gin"
)

// reserved query parameters of the list endpoint; everything else is a filter.
const (
	queryParamSkip    = "skip"
	queryParamLimit   = "limit"
	queryParamOrderBy = "order_by"
	maxPageSize       = 500
)

// RegisterRoutes mounts user endpoints. Registration is public; the rest
// requires an authenticated caller.
func RegisterRoutes(public, protected *gin.RouterGroup, users *Store) {
	handler := &httpHandler{users: users}

	public.POST("/users", handler.create)

	usersGroup := protected.Group("/users")
	{
		usersGroup.GET("", handler.list)
		usersGroup.GET("/superusers", handler.superusers)
		usersGroup.GET("/:id", handler.get)
		usersGroup.PATCH("/:id", handler.update)
		usersGroup.PUT("/:id", handler.update)
		usersGroup.DELETE("/:id", handler.deactivate)
		usersGroup.POST("/:id/activate", handler.activate)
	}
}

type httpHandler struct {
	users *Store
}

type createRequest struct {
	Username string  `json:"username" binding:"required,min=3,max=50,username"`
	Email    string  `json:"email" binding:"required,email,max=254"`
	Password string  `json:"password" binding:"required,min=8,max=72,password_strength"`
	Name     *string `json:"name" binding:"omitempty,max=100,person_name"`
}

type updateRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=50,username"`
	Email    *string `json:"email" binding:"omitempty,email,max=254"`
	Password *string `json:"password" binding:"omitempty,min=8,max=72,password_strength"`
	Name     *string `json:"name" binding:"omitempty,max=100,person_name"`
}

type listResponse struct {
	Count   int64  `json:"count"`
	Results []User `json:"results"`
}

func (h *httpHandler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": DescribeValidation(err)})
		return
	}

	in, err := req.normalize()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.checkConflicts(ctx, 0, &in.Username, &in.Email); err != nil {
		h.writeError(c, err)
		return
	}

	created, err := h.users.Create(ctx, in)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) list(c *gin.Context) {
	opts, err := h.listOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	results, err := h.users.List(ctx, opts)
	if err != nil {
		h.writeError(c, err)
		return
	}
	total, err := h.users.Count(ctx, opts.Filters)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, listResponse{Count: total, Results: results})
}

func (h *httpHandler) superusers(c *gin.Context) {
	results, err := h.users.GetSuperusers(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse{Count: int64(len(results)), Results: results})
}

func (h *httpHandler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	found, exists, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !exists {
		h.writeError(c, ErrUserNotFound)
		return
	}

	c.JSON(http.StatusOK, found)
}

func (h *httpHandler) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": DescribeValidation(err)})
		return
	}

	in, err := req.normalize()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.checkConflicts(ctx, id, in.Username, in.Email); err != nil {
		h.writeError(c, err)
		return
	}

	updated, exists, err := h.users.Update(ctx, id, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !exists {
		h.writeError(c, ErrUserNotFound)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) deactivate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	_, exists, err := h.users.DeactivateUser(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !exists {
		h.writeError(c, ErrUserNotFound)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *httpHandler) activate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	activated, exists, err := h.users.ActivateUser(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !exists {
		h.writeError(c, ErrUserNotFound)
		return
	}

	c.JSON(http.StatusOK, activated)
}

// checkConflicts reports a taken username or email owned by a user other than self.
func (h *httpHandler) checkConflicts(ctx context.Context, self int64, username, email *string) error {
	if username != nil {
		other, found, err := h.users.GetByUsername(ctx, *username)
		if err != nil {
			return err
		}
		if found && other.ID != self {
			return fmt.Errorf("%w: %q", ErrUsernameTaken, *username)
		}
	}
	if email != nil {
		other, found, err := h.users.GetByEmail(ctx, *email)
		if err != nil {
			return err
		}
		if found && other.ID != self {
			return fmt.Errorf("%w: %q", ErrEmailTaken, *email)
		}
	}
	return nil
}

func (h *httpHandler) listOptions(c *gin.Context) (store.ListOptions, error) {
	opts := store.ListOptions{Limit: store.DefaultLimit, Filters: store.Filters{}}

	for key, values := range c.Request.URL.Query() {
		if len(values) == 0 {
			continue
		}
		raw := values[len(values)-1]

		switch key {
		case queryParamSkip:
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return opts, fmt.Errorf("skip must be a non-negative integer")
			}
			opts.Skip = n
		case queryParamLimit:
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxPageSize {
				return opts, fmt.Errorf("limit must be between 1 and %d", maxPageSize)
			}
			opts.Limit = n
		case queryParamOrderBy:
			if _, ok := h.queryable(strings.TrimPrefix(raw, "-")); !ok {
				return opts, fmt.Errorf("cannot order by %q", raw)
			}
			opts.OrderBy = raw
		default:
			field, ok := h.queryable(key)
			if !ok {
				return opts, fmt.Errorf("cannot filter by %q", key)
			}
			parts := strings.Split(raw, ",")
			parsed := make(store.In, 0, len(parts))
			for _, part := range parts {
				v, err := field.Parse(part)
				if err != nil {
					return opts, err
				}
				parsed = append(parsed, v)
			}
			if len(parsed) == 1 {
				opts.Filters[key] = parsed[0]
			} else {
				opts.Filters[key] = parsed
			}
		}
	}
	return opts, nil
}

// queryable hides the password digest from filtering and ordering.
func (h *httpHandler) queryable(name string) (store.Field[User], bool) {
	if name == FieldHashedPassword {
		return store.Field[User]{}, false
	}
	return h.users.Field(name)
}

func (h *httpHandler) writeError(c *gin.Context, err error) {
	var fieldErr *store.InvalidFieldError
	switch {
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case store.IsUniqueViolation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "username or email already registered"})
	case errors.As(err, &fieldErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": fieldErr.Error()})
	case errors.Is(err, security.ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (r createRequest) normalize() (CreateInput, error) {
	username, err := ValidateUsername(r.Username)
	if err != nil {
		return CreateInput{}, err
	}
	name, err := ValidateName(r.Name)
	if err != nil {
		return CreateInput{}, err
	}
	return CreateInput{
		Username: username,
		Email:    strings.ToLower(strings.TrimSpace(r.Email)),
		Password: r.Password,
		Name:     name,
	}, nil
}

func (r updateRequest) normalize() (UpdateInput, error) {
	in := UpdateInput{Password: r.Password}
	if r.Username != nil {
		username, err := ValidateUsername(*r.Username)
		if err != nil {
			return UpdateInput{}, err
		}
		in.Username = &username
	}
	if r.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*r.Email))
		in.Email = &email
	}
	if r.Name != nil {
		name, err := ValidateName(r.Name)
		if err != nil {
			return UpdateInput{}, err
		}
		in.Name = name
	}
	return in, nil
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}
