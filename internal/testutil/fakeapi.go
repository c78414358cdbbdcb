// Package testutil provides an in-process admin API for tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/charlesng35/userdash/internal/models"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
	"github.com/charlesng35/userdash/pkg/response"
)

// DefaultPassword is accepted for every seeded user.
const DefaultPassword = "password123"

// Failure makes the next matching requests fail with Status and Message.
type Failure struct {
	Status  int
	Message string
	// Times limits how many requests fail; zero means every request.
	Times int
}

// FakeAPI serves /api/users and the /api/auth routes from memory.
type FakeAPI struct {
	T      *testing.T
	Server *httptest.Server
	Router *gin.Engine

	mu       sync.Mutex
	users    []models.User
	tokens   map[string]uint64
	calls    map[string]int
	queries  []models.QueryKey
	failures map[string]*Failure
	delay    time.Duration
	gate     chan struct{}

	// passwords overrides DefaultPassword for registered or reset accounts.
	passwords   map[string]string
	resetTokens map[string]string
}

// NewFakeAPI starts a fake API seeded with count users and registers cleanup.
func NewFakeAPI(t *testing.T, count int) *FakeAPI {
	t.Helper()

	gin.SetMode(gin.TestMode)

	f := &FakeAPI{
		T:           t,
		users:       SeedUsers(count),
		tokens:      make(map[string]uint64),
		passwords:   make(map[string]string),
		resetTokens: make(map[string]string),
		calls:       make(map[string]int),
		failures:    make(map[string]*Failure),
	}

	router := gin.New()
	api := router.Group("/api")
	api.GET("/users", f.listUsers)
	api.POST("/auth/login", f.login)
	api.POST("/auth/register", f.register)
	api.POST("/auth/forgot-password", f.forgotPassword)
	api.POST("/auth/reset-password", f.resetPassword)
	api.GET("/auth/me", f.me)
	f.Router = router

	f.Server = httptest.NewServer(router)
	t.Cleanup(f.Server.Close)
	return f
}

// SeedUsers builds count users named "User N". Every third user is named after
// "Ann" so prefix searches have predictable matches.
func SeedUsers(count int) []models.User {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	users := make([]models.User, 0, count)
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("User %d", i)
		if i%3 == 0 {
			name = fmt.Sprintf("Ann %d", i)
		}
		users = append(users, models.User{
			ID:        uint64(i),
			Name:      name,
			Email:     fmt.Sprintf("user%d@example.com", i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	return users
}

// BaseURL returns the API root, e.g. http://127.0.0.1:1234/api.
func (f *FakeAPI) BaseURL() string {
	return f.Server.URL + "/api"
}

// IssueToken registers a bearer token for the user with id and returns it.
func (f *FakeAPI) IssueToken(id uint64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := uuid.NewString()
	f.tokens[token] = id
	return token
}

// Fail installs a failure for path, e.g. "/api/users".
func (f *FakeAPI) Fail(path string, failure Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cpy := failure
	f.failures[path] = &cpy
}

// ClearFailures removes every installed failure.
func (f *FakeAPI) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = make(map[string]*Failure)
}

// SetDelay slows every response by d.
func (f *FakeAPI) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Hold blocks /api/users responses until the returned release func is called.
func (f *FakeAPI) Hold() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many requests reached path.
func (f *FakeAPI) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// Queries returns the listing queries received, in arrival order.
func (f *FakeAPI) Queries() []models.QueryKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.QueryKey(nil), f.queries...)
}

// Filter applies the API's case-insensitive prefix match on name or email.
func Filter(users []models.User, search string) []models.User {
	if search == "" {
		return users
	}
	prefix := strings.ToLower(search)
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if strings.HasPrefix(strings.ToLower(u.Name), prefix) || strings.HasPrefix(strings.ToLower(u.Email), prefix) {
			out = append(out, u)
		}
	}
	return out
}

// begin records the call and applies delay, hold and failure settings. It
// returns false when the request has already been answered.
func (f *FakeAPI) begin(c *gin.Context) bool {
	path := c.Request.URL.Path

	f.mu.Lock()
	f.calls[path]++
	delay := f.delay
	gate := f.gate
	if path != "/api/users" {
		gate = nil
	}
	failure := f.failures[path]
	if failure != nil && failure.Times > 0 {
		failure.Times--
		if failure.Times == 0 {
			delete(f.failures, path)
		}
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Request.Context().Done():
			return false
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-c.Request.Context().Done():
			return false
		}
	}
	if failure != nil {
		response.Error(c, appErrors.NewServerError(failure.Status, failure.Message))
		return false
	}
	return true
}

func (f *FakeAPI) authorize(c *gin.Context) (uint64, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		response.Error(c, appErrors.ErrUnauthorized.WithMessage("Authorization header is required"))
		return 0, false
	}

	f.mu.Lock()
	id, known := f.tokens[token]
	f.mu.Unlock()
	if !known {
		response.Error(c, appErrors.ErrUnauthorized.WithMessage("Invalid or expired token"))
		return 0, false
	}
	return id, true
}

func (f *FakeAPI) listUsers(c *gin.Context) {
	if _, ok := f.authorize(c); !ok {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	search := c.Query("search")

	f.mu.Lock()
	f.queries = append(f.queries, models.QueryKey{Page: page, Limit: limit, Search: search})
	matches := Filter(f.users, search)
	f.mu.Unlock()

	if !f.begin(c) {
		return
	}

	start := min((page-1)*limit, len(matches))
	end := min(start+limit, len(matches))

	response.SuccessWithMeta(c, http.StatusOK, matches[start:end], &response.Meta{
		Total: len(matches),
		Page:  page,
		Limit: limit,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (f *FakeAPI) login(c *gin.Context) {
	if !f.begin(c) {
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewServerError(http.StatusBadRequest, err.Error()))
		return
	}

	user, ok := f.findByEmail(req.Email)
	if !ok || req.Password != f.passwordFor(user.Email) {
		response.Error(c, appErrors.ErrUnauthorized.WithMessage("invalid email or password"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": f.IssueToken(user.ID), "user": user})
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,min=2"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (f *FakeAPI) register(c *gin.Context) {
	if !f.begin(c) {
		return
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewServerError(http.StatusBadRequest, err.Error()))
		return
	}

	f.mu.Lock()
	for _, u := range f.users {
		if u.Email == req.Email {
			f.mu.Unlock()
			response.Error(c, appErrors.NewServerError(http.StatusBadRequest, "email already registered"))
			return
		}
	}
	user := models.User{
		ID:        uint64(len(f.users) + 1),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: time.Now().UTC(),
	}
	f.users = append(f.users, user)
	f.passwords[user.Email] = req.Password
	f.mu.Unlock()

	response.Success(c, http.StatusCreated, models.Profile{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// ResetNotice is the acknowledgement for every forgot-password request.
const ResetNotice = "If your email is registered, you will receive a reset link."

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (f *FakeAPI) forgotPassword(c *gin.Context) {
	if !f.begin(c) {
		return
	}

	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewServerError(http.StatusBadRequest, err.Error()))
		return
	}

	if _, ok := f.findByEmail(req.Email); ok {
		f.mu.Lock()
		f.resetTokens[req.Email] = uuid.NewString()
		f.mu.Unlock()
	}
	c.JSON(http.StatusOK, gin.H{"message": ResetNotice})
}

type resetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
}

func (f *FakeAPI) resetPassword(c *gin.Context) {
	if !f.begin(c) {
		return
	}

	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewServerError(http.StatusBadRequest, err.Error()))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for email, token := range f.resetTokens {
		if token == req.Token {
			delete(f.resetTokens, email)
			f.passwords[email] = req.Password
			c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully."})
			return
		}
	}
	response.Error(c, appErrors.NewServerError(http.StatusBadRequest, "invalid or expired reset token"))
}

// ResetToken returns the outstanding reset token mailed to email, if any.
func (f *FakeAPI) ResetToken(email string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.resetTokens[email]
	return token, ok
}

func (f *FakeAPI) passwordFor(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.passwords[email]; ok {
		return pw
	}
	return DefaultPassword
}

func (f *FakeAPI) me(c *gin.Context) {
	id, ok := f.authorize(c)
	if !ok {
		return
	}
	if !f.begin(c) {
		return
	}

	user, found := f.findByID(id)
	if !found {
		response.Error(c, appErrors.NewServerError(http.StatusNotFound, "user not found"))
		return
	}

	response.Success(c, http.StatusOK, models.Profile{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

func (f *FakeAPI) findByEmail(email string) (models.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, true
		}
	}
	return models.User{}, false
}

func (f *FakeAPI) findByID(id uint64) (models.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}
