package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	minUsernameLength = 3
	minPasswordLength = 6
)

// UserStore captures the persistence operations needed by the user service.
type UserStore interface {
	UpsertUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, email string) error
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users          UserStore
	now            func() time.Time
	passwordParams Argon2idParams
	recorder       Recorder
	logger         *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserStore, now func() time.Time, opts ...Option) *UserService {
	o := newOptions(opts)
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:          users,
		now:            now,
		passwordParams: o.passwordParams,
		recorder:       o.recorder,
		logger:         o.logger,
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input and persists a new account for administrators.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user User, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user service not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateUser", "principal", params.Principal.Username)
	defer func() {
		logOutcome(ctx, logger, s.recorder, "create_user", err, "create user", "email", user.Email, "role", user.Role)
	}()

	if !params.Principal.IsAdmin() {
		err = fmt.Errorf("%w: only administrators can manage users", ErrPermissionDenied)
		return
	}

	user, err = s.create(ctx, params.Input)
	return
}

// Register creates a self-service account with the user role.
func (s *UserService) Register(ctx context.Context, input UserInput) (user User, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user service not configured")
		return
	}

	logger := s.loggerWith(ctx, "Register")
	defer func() {
		logOutcome(ctx, logger, s.recorder, "register", err, "register user", "email", user.Email)
	}()

	input.Role = string(scheduler.RoleUser)
	user, err = s.create(ctx, input)
	return
}

func (s *UserService) create(ctx context.Context, input UserInput) (User, error) {
	normalized := normalizeUserInput(input)
	role, vErr := validateUserInput(normalized)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	credential, err := CreatePasswordHash(normalized.Password, s.passwordParams)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := User{
		Email:      normalized.Email,
		Username:   normalized.Username,
		Credential: credential,
		Role:       role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.users.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.users.FindUserByEmail(ctx, user.Email)
		switch {
		case err == nil:
			return fmt.Errorf("%w: email %s", persistence.ErrDuplicate, user.Email)
		case !errors.Is(err, persistence.ErrNotFound):
			return err
		}
		return s.users.UpsertUser(ctx, user)
	})
	if err != nil {
		return User{}, mapRepoError(err, fmt.Sprintf("user %s", user.Email))
	}
	return user, nil
}

// UpdateUserRole changes the role of an account. Demoting the final admin
// fails with ErrLastAdmin.
func (s *UserService) UpdateUserRole(ctx context.Context, principal Principal, email, role string) (user User, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user service not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateUserRole",
		"principal", principal.Username,
		"email", email,
		"role", role,
	)
	defer func() {
		logOutcome(ctx, logger, s.recorder, "update_user_role", err, "update user role")
	}()

	if !principal.IsAdmin() {
		err = fmt.Errorf("%w: only administrators can manage users", ErrPermissionDenied)
		return
	}

	parsed, parseErr := scheduler.ParseRole(role)
	if parseErr != nil {
		vErr := &ValidationError{}
		vErr.add("role", "role must be admin, user, or approved_user")
		err = vErr
		return
	}

	err = s.users.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.users.FindUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		existing.Role = parsed
		existing.UpdatedAt = s.now()
		if err := s.users.UpsertUser(ctx, existing); err != nil {
			return err
		}
		user = existing
		return nil
	})
	if err != nil {
		user = User{}
		err = mapRepoError(err, fmt.Sprintf("user %s", email))
	}
	return
}

// ApproveUser promotes an account to approved_user.
func (s *UserService) ApproveUser(ctx context.Context, principal Principal, email string) (User, error) {
	return s.UpdateUserRole(ctx, principal, email, string(scheduler.RoleApprovedUser))
}

// DeleteUser removes an account and its reservations. Deleting the final
// admin fails with ErrLastAdmin.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, email string) (err error) {
	if s == nil || s.users == nil {
		return fmt.Errorf("user service not configured")
	}

	logger := s.loggerWith(ctx, "DeleteUser", "principal", principal.Username, "email", email)
	defer func() {
		logOutcome(ctx, logger, s.recorder, "delete_user", err, "delete user")
	}()

	if !principal.IsAdmin() {
		return fmt.Errorf("%w: only administrators can manage users", ErrPermissionDenied)
	}

	if err = s.users.DeleteUser(ctx, email); err != nil {
		err = mapRepoError(err, fmt.Sprintf("user %s", email))
	}
	return
}

// ListUsers returns every account for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil || s.users == nil {
		return nil, fmt.Errorf("user service not configured")
	}
	if !principal.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators can manage users", ErrPermissionDenied)
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapRepoError(err, "users")
	}
	return users, nil
}

// Authenticate verifies credentials and returns the matching principal.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (principal Principal, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user service not configured")
		return
	}

	logger := s.loggerWith(ctx, "Authenticate", "email", strings.ToLower(strings.TrimSpace(email)))

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			logger.DebugContext(ctx, "unknown email")
			err = ErrInvalidCredentials
			return
		}
		logger.ErrorContext(ctx, "failed to load user", "error", err, "error_kind", ErrorKind(err))
		return
	}

	if verifyErr := VerifyPassword(user.Credential, password); verifyErr != nil {
		logger.DebugContext(ctx, "credential mismatch", "error", verifyErr)
		err = ErrInvalidCredentials
		return
	}

	if NeedsRehash(user.Credential, s.passwordParams) {
		s.rehash(ctx, logger, user, password)
	}

	principal = PrincipalFor(user)
	return
}

// rehash upgrades a credential derived with outdated parameters. Failures
// only cost the upgrade, never the login.
func (s *UserService) rehash(ctx context.Context, logger *slog.Logger, user User, password string) {
	credential, err := CreatePasswordHash(password, s.passwordParams)
	if err != nil {
		logger.WarnContext(ctx, "failed to rehash credential", "error", err)
		return
	}
	user.Credential = credential
	user.UpdatedAt = s.now()
	if err := s.users.UpsertUser(ctx, user); err != nil {
		logger.WarnContext(ctx, "failed to store rehashed credential", "error", err, "error_kind", ErrorKind(err))
		return
	}
	logger.InfoContext(ctx, "credential rehashed")
}

// AdminBootstrap describes the administrator created on first start.
type AdminBootstrap struct {
	Email    string
	Username string
	Password string
}

// EnsureAdmin creates the bootstrap administrator when no admin exists.
// It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, bootstrap AdminBootstrap) (created bool, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user service not configured")
		return
	}

	logger := s.loggerWith(ctx, "EnsureAdmin", "email", bootstrap.Email)

	var users []User
	if users, err = s.users.ListUsers(ctx); err != nil {
		return
	}
	for _, u := range users {
		if u.IsAdmin() {
			logger.DebugContext(ctx, "admin already present", "admin", u.Email)
			return
		}
	}

	if _, err = s.create(ctx, UserInput{
		Email:    bootstrap.Email,
		Username: bootstrap.Username,
		Password: bootstrap.Password,
		Role:     string(scheduler.RoleAdmin),
	}); err != nil {
		logger.ErrorContext(ctx, "failed to create bootstrap admin", "error", err, "error_kind", ErrorKind(err))
		return
	}

	logger.InfoContext(ctx, "bootstrap admin created")
	created = true
	return
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Username: strings.TrimSpace(input.Username),
		Password: input.Password,
		Role:     strings.TrimSpace(input.Role),
	}
}

func validateUserInput(input UserInput) (scheduler.Role, *ValidationError) {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if !emailPattern.MatchString(input.Email) {
		vErr.add("email", "email must be a valid address")
	}
	if len([]rune(input.Username)) < minUsernameLength {
		vErr.add("username", fmt.Sprintf("username must be at least %d characters", minUsernameLength))
	}
	if len([]rune(input.Password)) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	role := scheduler.RoleUser
	if input.Role != "" {
		parsed, err := scheduler.ParseRole(input.Role)
		if err != nil {
			vErr.add("role", "role must be admin, user, or approved_user")
		}
		role = parsed
	}

	return role, vErr
}
