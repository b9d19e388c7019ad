package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

var userColumns = []string{"email", "username", "credential", "role", "created_at", "updated_at"}

// UserRepository implements persistence.UserRepository.
type UserRepository struct {
	pool *ConnectionPool
}

// UpsertUser inserts the user or replaces the account stored under its
// email. Demoting the final admin fails with ErrLastAdmin.
func (r *UserRepository) UpsertUser(ctx context.Context, user persistence.User) error {
	user.Email = normalizeEmail(user.Email)
	if user.Email == "" || strings.TrimSpace(user.Username) == "" {
		return fmt.Errorf("upsert user: %w: empty email or username", persistence.ErrConstraint)
	}
	if user.Role == "" {
		user.Role = scheduler.RoleUser
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	return r.pool.WithTransaction(ctx, func(ctx context.Context) error {
		// The admin set is locked before the target row so concurrent
		// demotions and deletes acquire row locks in the same order.
		var admins []string
		if !user.IsAdmin() {
			var err error
			if admins, err = r.adminEmails(ctx, "upsert user", true); err != nil {
				return err
			}
		}

		existing, err := r.findUser(ctx, "upsert user", squirrel.Eq{"email": user.Email}, true)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
		case err != nil:
			return err
		case existing.IsAdmin() && !user.IsAdmin() && len(admins) <= 1:
			return persistence.ErrLastAdmin
		}

		stmt := r.pool.builder.
			Insert("users").
			Columns(userColumns...).
			Values(user.Email, user.Username, user.Credential, string(user.Role),
				formatTimestamp(user.CreatedAt), formatTimestamp(user.UpdatedAt)).
			Suffix("ON CONFLICT (email) DO UPDATE SET username = excluded.username, credential = excluded.credential, role = excluded.role, updated_at = excluded.updated_at")
		_, err = r.pool.exec(ctx, "upsert user", stmt)
		return err
	})
}

// DeleteUser removes the account and, through the foreign key, its
// reservations. Deleting the final admin fails with ErrLastAdmin.
func (r *UserRepository) DeleteUser(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	return r.pool.WithTransaction(ctx, func(ctx context.Context) error {
		admins, err := r.adminEmails(ctx, "delete user", true)
		if err != nil {
			return err
		}
		existing, err := r.findUser(ctx, "delete user", squirrel.Eq{"email": email}, true)
		if err != nil {
			return err
		}
		if existing.IsAdmin() && len(admins) <= 1 {
			return persistence.ErrLastAdmin
		}

		result, err := r.pool.exec(ctx, "delete user", r.pool.builder.Delete("users").Where(squirrel.Eq{"email": email}))
		if err != nil {
			return err
		}
		return expectAffected("delete user", result)
	})
}

// FindUserByEmail looks a user up by email, case-insensitively.
func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return r.findUser(ctx, "find user by email", squirrel.Eq{"email": normalizeEmail(email)}, false)
}

// FindUserByUsername looks a user up by username.
func (r *UserRepository) FindUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	return r.findUser(ctx, "find user by username", squirrel.Eq{"username": username}, false)
}

// ListUsers returns every account in creation order.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	return r.selectUsers(ctx, "list users", r.pool.builder.
		Select(userColumns...).
		From("users").
		OrderBy("created_at ASC", "email ASC"))
}

// adminEmails lists admins in email order. With lock set, PostgreSQL keeps
// the rows locked until the transaction ends.
func (r *UserRepository) adminEmails(ctx context.Context, op string, lock bool) ([]string, error) {
	rows, err := r.pool.query(ctx, op, r.adminEmailsQuery(lock))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, persistence.NewStorageError(op, err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return emails, nil
}

// adminEmailsQuery selects rows rather than COUNT(*) because PostgreSQL
// does not allow FOR UPDATE with aggregates.
func (r *UserRepository) adminEmailsQuery(lock bool) squirrel.SelectBuilder {
	stmt := r.pool.builder.
		Select("email").
		From("users").
		Where(squirrel.Eq{"LOWER(role)": string(scheduler.RoleAdmin)}).
		OrderBy("email ASC")
	if suffix := r.pool.lockSuffix(); lock && suffix != "" {
		stmt = stmt.Suffix(suffix)
	}
	return stmt
}

func (r *UserRepository) findUser(ctx context.Context, op string, where squirrel.Eq, lock bool) (persistence.User, error) {
	stmt := r.pool.builder.Select(userColumns...).From("users").Where(where)
	if suffix := r.pool.lockSuffix(); lock && suffix != "" {
		stmt = stmt.Suffix(suffix)
	}
	users, err := r.selectUsers(ctx, op, stmt)
	if err != nil {
		return persistence.User{}, err
	}
	if len(users) == 0 {
		return persistence.User{}, persistence.ErrNotFound
	}
	return users[0], nil
}

func (r *UserRepository) selectUsers(ctx context.Context, op string, stmt squirrel.SelectBuilder) ([]persistence.User, error) {
	rows, err := r.pool.query(ctx, op, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]persistence.User, 0)
	for rows.Next() {
		var (
			user                 persistence.User
			role                 string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&user.Email, &user.Username, &user.Credential, &role, &createdAt, &updatedAt); err != nil {
			return nil, persistence.NewStorageError(op, err)
		}
		// Unrecognized roles carry no privileges.
		if user.Role, err = scheduler.ParseRole(role); err != nil {
			user.Role = scheduler.RoleUser
		}
		if user.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, persistence.NewStorageError(op, err)
		}
		if user.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
			return nil, persistence.NewStorageError(op, err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return users, nil
}

// normalizeEmail lowercases and trims an email for storage and lookup.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
