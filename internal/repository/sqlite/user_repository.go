package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"visionchat/internal/common"
	"visionchat/internal/model"
)

// UserRepository implements repository.UserRepository for SQLite.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create adds a new user record to the database.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash, fullName string) (*model.User, error) {
	r.db.Lock()
	defer r.db.Unlock()

	user := &model.User{
		Email:          email,
		HashedPassword: passwordHash,
		FullName:       fullName,
		CreatedAt:      time.Now().UTC(),
	}

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO users (email, hashed_password, full_name, created_at)
		VALUES (?, ?, ?, ?)
	`, user.Email, user.HashedPassword, user.FullName, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %s: %w", email, common.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	if user.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var u model.User
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, email, hashed_password, full_name, created_at
		FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &u.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
