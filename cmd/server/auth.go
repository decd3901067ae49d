package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/icco/goban"
	"github.com/ifo/sanic"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Define context key type to avoid collisions
type contextKey string

const userContextKey contextKey = "user"

var emailRe = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

// authService issues and verifies the bearer tokens the game routes
// require. It is constructed once in main and handed to the router, not
// kept as a process-wide singleton.
type authService struct {
	secret   []byte
	duration time.Duration
	worker   *sanic.Worker
}

func newAuthService() (*authService, error) {
	secret := os.Getenv("AUTH_JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET environment variable is required")
	}

	return &authService{
		secret:   []byte(secret),
		duration: time.Hour,
		worker:   sanic.NewWorker7(),
	}, nil
}

// issueToken signs a token bound to the user's id. The token carries no
// claims beyond the registered set.
func (a *authService) issueToken(user *User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    goban.Service,
		Subject:   strconv.FormatInt(user.ID, 10),
		ID:        a.worker.IDString(a.worker.NextID()),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.duration)),
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// parseToken verifies the signature and expiry and returns the bound
// user id.
func (a *authService) parseToken(raw string) (int64, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	return strconv.ParseInt(claims.Subject, 10, 64)
}

type SignupRequest struct {
	Name     string `json:"name" example:"player1"`
	Email    string `json:"email" example:"player1@example.com"`
	Password string `json:"password" example:"secret123"`
}

type LoginRequest struct {
	Login    string `json:"login,omitempty" example:"player1"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password" example:"secret123"`
}

// userRoutes wires the credential endpoints with their own rate limits.
func (s *apiServer) userRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.ThrottleBacklog(10, 60, time.Minute))

	r.Post("/signup", s.signupHandler)
	r.Post("/login", s.loginHandler)

	return r
}

// @Summary Register a new user
// @Description Register with name, email and password
// @Tags user
// @Accept json
// @Produce json
// @Param user body SignupRequest true "User registration data"
// @Success 201 {object} SignupResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /user/signup [post]
func (s *apiServer) signupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warnw("invalid signup request body", "error", err.Error(), "remote_addr", r.RemoteAddr)
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if name == "" || email == "" || req.Password == "" {
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "username, email and password are required"})
		return
	}
	if !emailRe.MatchString(email) {
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid email address"})
		return
	}
	if len(req.Password) < 6 {
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "password must be at least 6 characters"})
		return
	}

	var existing User
	if err := s.db.Where("name = ? OR email = ?", name, email).First(&existing).Error; err == nil {
		log.Warnw("signup attempt for taken identity", "name", name, "remote_addr", r.RemoteAddr)
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "username or email already in use"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Errorw("failed to hash password", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	user := User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.db.Create(&user).Error; err != nil {
		// The pre-check races with concurrent signups; the unique index
		// is the real arbiter.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "username or email already in use"})
			return
		}
		log.Errorw("failed to create user", "name", name, zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	log.Infow("user registered", "user_id", user.ID, "remote_addr", r.RemoteAddr)
	renderJSON(w, http.StatusCreated, SignupResponse{
		Message: "user created",
		User:    publicUser(&user),
	})
}

// @Summary Login
// @Description Login with name or email plus password
// @Tags user
// @Accept json
// @Produce json
// @Param user body LoginRequest true "User login data"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /user/login [post]
func (s *apiServer) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warnw("invalid login request body", "error", err.Error(), "remote_addr", r.RemoteAddr)
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	identifier := strings.TrimSpace(req.Login)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Name)
	}
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}

	if identifier == "" || req.Password == "" {
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "login and password are required"})
		return
	}

	// Same response whether the user is missing or the password is
	// wrong, so the endpoint does not leak which one it was.
	var user User
	if err := s.db.Where("name = ? OR email = ?", identifier, strings.ToLower(identifier)).
		First(&user).Error; err != nil {
		log.Warnw("login attempt for unknown identity", "remote_addr", r.RemoteAddr)
		renderJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warnw("login attempt with invalid password", "user_id", user.ID, "remote_addr", r.RemoteAddr)
		renderJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	}

	token, err := s.auth.issueToken(&user)
	if err != nil {
		log.Errorw("failed to generate token", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	log.Infow("user logged in", "user_id", user.ID, "remote_addr", r.RemoteAddr)
	renderJSON(w, http.StatusOK, AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.auth.duration.Seconds()),
		User:        publicUser(&user),
	})
}

func (s *apiServer) currentUser(r *http.Request) (*User, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, fmt.Errorf("missing or invalid authorization header")
	}

	userID, err := s.auth.parseToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return nil, err
	}

	var user User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// authMiddleware protects the game routes. The caller's identity only
// ever comes from the verified token, never from the request body.
func (s *apiServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.currentUser(r)
		if err != nil {
			log.Warnw("authentication failed", zap.Error(err))
			renderJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Helper to get user from request context
func getUserFromContext(r *http.Request) *User {
	if user, ok := r.Context().Value(userContextKey).(*User); ok && user != nil {
		return user
	}
	return nil
}

// Helper to get user from request context with panic on nil (for protected routes)
func getMustUserFromContext(r *http.Request) *User {
	user := getUserFromContext(r)
	if user == nil {
		panic("user is nil in protected route - auth middleware failed")
	}
	return user
}
