package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-reservations/internal/application"
)

type userService interface {
	Register(ctx context.Context, input application.UserInput) (application.User, error)
	CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error)
	UpdateUserRole(ctx context.Context, principal application.Principal, email, role string) (application.User, error)
	DeleteUser(ctx context.Context, principal application.Principal, email string) error
	ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error)
}

// UserHandler serves signup and account administration.
type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

// Signup registers a new account with the user role. It is unauthenticated.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Signup", "username", req.Username)
	user, err := h.service.Register(r.Context(), req.toInput())
	if err != nil {
		logger.WarnContext(r.Context(), "signup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "username", req.Username)
	user, err := h.service.CreateUser(r.Context(), application.CreateUserParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "user creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	email, ok := pathVar(r, "email")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPathVariable)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateRole", "email", email, "role", req.Role)
	user, err := h.service.UpdateUserRole(r.Context(), principal, email, req.Role)
	if err != nil {
		logger.WarnContext(r.Context(), "role update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "role updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	email, ok := pathVar(r, "email")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPathVariable)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	logger := h.log(r.Context(), "Delete", "email", email)
	if err := h.service.DeleteUser(r.Context(), principal, email); err != nil {
		logger.WarnContext(r.Context(), "user delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	users, err := h.service.ListUsers(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]userDTO, 0, len(users))
	for _, user := range users {
		out = append(out, toUserDTO(user))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUsersResponse{Users: out})
}

type userRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r userRequest) toInput() application.UserInput {
	return application.UserInput{
		Email:    strings.TrimSpace(r.Email),
		Username: strings.TrimSpace(r.Username),
		Password: r.Password,
		Role:     strings.TrimSpace(r.Role),
	}
}

type roleRequest struct {
	Role string `json:"role"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

type listUsersResponse struct {
	Users []userDTO `json:"users"`
}

// userDTO never carries the credential.
type userDTO struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		Email:     user.Email,
		Username:  user.Username,
		Role:      string(user.Role),
		CreatedAt: formatTimestamp(user.CreatedAt),
		UpdatedAt: formatTimestamp(user.UpdatedAt),
	}
}
