package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/jobtrust/internal/server/middleware"
	"github.com/jonathan/jobtrust/internal/types"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	userService *UserService
	jwtService  *JWTService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(userService *UserService, jwtService *JWTService, logger *zap.Logger) *AuthHandler {
	v := validator.New()
	// report JSON field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &AuthHandler{
		userService: userService,
		jwtService:  jwtService,
		validator:   v,
		logger:      logger,
	}
}

func (h *AuthHandler) validate(req any) error {
	if err := h.validator.Struct(req); err != nil {
		return validationError(err)
	}
	return nil
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, status int, message string, user *types.User) {
	token, err := h.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		writeError(w, h.logger, r, fmt.Errorf("failed to generate token: %w", err))
		return
	}
	writeJSON(w, status, types.LoginResponse{Message: message, User: user, Token: token})
}

// Register handles POST /api/signup.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if err := h.validate(&req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.issue(w, r, http.StatusCreated, "Account created successfully", user)
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if err := h.validate(&req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	user, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.issue(w, r, http.StatusOK, "Login successful", user)
}

// currentUser loads the authenticated user. A valid token for a deleted user is a 401.
func (h *AuthHandler) currentUser(w http.ResponseWriter, r *http.Request) (*types.User, bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, middleware.MsgTokenMissing)
		return nil, false
	}
	user, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		var missing *ErrUserNotFound
		if errors.As(err, &missing) {
			writeMessage(w, http.StatusUnauthorized, "User not found")
			return nil, false
		}
		writeError(w, h.logger, r, err)
		return nil, false
	}
	return user, true
}

// Verify handles GET /api/verify.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Token is valid", "user": user})
}

// GetUser handles GET /api/user.
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// UpdateUser handles PUT /api/user.
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req types.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if err := h.validate(&req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), user.ID, &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User updated successfully", "user": updated})
}

// UpdatePassword handles PUT /api/user/password.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req types.UpdatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if err := h.validate(&req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	if err := h.userService.UpdatePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated successfully")
}

// CountUsers handles GET /api/users/count.
func (h *AuthHandler) CountUsers(w http.ResponseWriter, r *http.Request) {
	n, err := h.userService.CountUsers(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// validationError turns the first validator failure into a readable ErrValidation.
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return &ErrValidation{Message: "validation error: invalid request"}
	}
	fe := errs[0]
	field := fe.Field()

	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "email":
		msg = "Invalid email format"
	case "min":
		if strings.Contains(field, "password") {
			msg = fmt.Sprintf("Password must be at least %s characters long", fe.Param())
		} else {
			msg = fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		}
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	default:
		msg = fmt.Sprintf("validation error: %s - %s", field, fe.Tag())
	}
	return &ErrValidation{Message: msg}
}
