package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"account-directory/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const userColumns = `id, username, email, password_hash, is_active, roles, created_at, updated_at`

type UserRepository interface {
	PagedFind(ctx context.Context, filter models.UserFilter) (*models.UserPage, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username, excludeID string) (*models.User, error)
	FindByEmail(ctx context.Context, email, excludeID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateByID(ctx context.Context, id string, update models.UserUpdate) (*models.User, error)
	SetPassword(ctx context.Context, id, passwordHash string) (*models.User, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
}

type userRepository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewUserRepository(db *sqlx.DB, log *zap.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

// PagedFind returns one page of users matching the filter together with
// pagination metadata computed from a matching count query.
func (r *userRepository) PagedFind(ctx context.Context, filter models.UserFilter) (*models.UserPage, error) {
	where, args := buildUserFilter(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users` + where +
		` ORDER BY ` + sortClause(filter.Sort) +
		fmt.Sprintf(` LIMIT %d OFFSET %d`, filter.Limit, (filter.Page-1)*filter.Limit)

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return models.NewUserPage(users, total, filter.Limit, filter.Page), nil
}

// buildUserFilter renders the WHERE clause shared by the count and page
// queries. The role filter tests jsonb key existence.
func buildUserFilter(filter models.UserFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.Username != "" {
		args = append(args, "%"+filter.Username+"%")
		conds = append(conds, fmt.Sprintf("username ILIKE $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conds = append(conds, fmt.Sprintf("jsonb_exists(roles, $%d)", len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var sortColumns = map[string]string{
	"id":        "id",
	"username":  "username",
	"email":     "email",
	"isActive":  "is_active",
	"createdAt": "created_at",
}

// sortClause maps an api sort key ("-username" for descending) to a safe
// ORDER BY expression. Unknown keys fall back to id.
func sortClause(sort string) string {
	dir := "ASC"
	if strings.HasPrefix(sort, "-") {
		dir = "DESC"
		sort = sort[1:]
	}
	col, ok := sortColumns[sort]
	if !ok {
		col = "id"
	}
	return col + " " + dir
}

// FindByID returns (nil, nil) when no user has the id.
func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByUsername matches the exact username, skipping excludeID so an
// update does not collide with the record it is updating. Returns
// (nil, nil) when there is no match.
func (r *userRepository) FindByUsername(ctx context.Context, username, excludeID string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 AND id <> $2`
	err := r.db.GetContext(ctx, &user, query, username, excludeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return &user, nil
}

// FindByEmail matches case-insensitively, skipping excludeID. Returns
// (nil, nil) when there is no match.
func (r *userRepository) FindByEmail(ctx context.Context, email, excludeID string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) AND id <> $2`
	err := r.db.GetContext(ctx, &user, query, email, excludeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, username, email, password_hash, is_active, roles)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	err := r.db.QueryRowxContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.IsActive, user.Roles).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if conflict := conflictFor(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateByID applies the field set and returns the updated document, or
// (nil, nil) when the id does not exist.
func (r *userRepository) UpdateByID(ctx context.Context, id string, update models.UserUpdate) (*models.User, error) {
	var user models.User
	query := `UPDATE users
		SET username = $2, email = $3, is_active = COALESCE($4, is_active), updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	err := r.db.GetContext(ctx, &user, query, id, update.Username, update.Email, update.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if conflict := conflictFor(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) SetPassword(ctx context.Context, id, passwordHash string) (*models.User, error) {
	var user models.User
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1 RETURNING ` + userColumns
	err := r.db.GetContext(ctx, &user, query, id, passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("set password: %w", err)
	}
	return &user, nil
}

func (r *userRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}
	return res.RowsAffected()
}

// conflictFor maps a unique index fired by a write that lost the
// check-then-write race onto the matching conflict error. Returns nil for
// anything other than a unique violation on a known constraint.
func conflictFor(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case "users_username_key":
		return models.ErrUsernameInUse
	case "users_email_key":
		return models.ErrEmailInUse
	}
	return nil
}
