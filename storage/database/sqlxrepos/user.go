package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/user"
)

type userRow struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name.String,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	query := "SELECT * FROM users WHERE (username = $1 OR email = $2)"
	args := []interface{}{username, email}
	for i, usr := range excludedUsers {
		query += fmt.Sprintf(" AND id <> $%d", i+3)
		args = append(args, usr.ID)
	}

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	for _, row := range rows {
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
		if row.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO users (id, name, username, email, is_active, roles, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		usr.ID, null.NewString(usr.Name, usr.Name != ""), null.NewString(usr.Username, usr.Username != ""),
		null.NewString(usr.Email, usr.Email != ""), usr.IsActive, pq.StringArray(usr.Roles),
		usr.PasswordHash, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC())
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM users WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "fetching user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM users WHERE username = $1 OR email = $1", username)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "fetching user by username")
	}
	return row.user(), nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	query := "SELECT * FROM users"
	var clauses []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", p))
	}
	if len(filter.Roles) > 0 {
		clauses = append(clauses, "roles && "+arg(pq.StringArray(filter.Roles)))
	}
	if filter.IsActive != nil {
		clauses = append(clauses, "is_active = "+arg(*filter.IsActive))
	}
	if !filter.CreatedFrom.IsZero() {
		clauses = append(clauses, "created_at >= "+arg(filter.CreatedFrom.UTC()))
	}
	if !filter.CreatedTo.IsZero() {
		clauses = append(clauses, "created_at <= "+arg(filter.CreatedTo.UTC()))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	if len(orderings) > 0 {
		ords := make([]string, 0, len(orderings))
		for _, ord := range orderings {
			ords = append(ords, ord.String())
		}
		query += " ORDER BY " + strings.Join(ords, ", ")
	} else {
		query += " ORDER BY created_at DESC"
	}

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	sets := []string{"updated_at = $1"}
	args := []interface{}{usr.UpdatedAt.UTC()}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if usr.Name != "" {
		sets = append(sets, "name = "+arg(usr.Name))
	}
	if usr.Username != "" {
		sets = append(sets, "username = "+arg(usr.Username))
	}
	if usr.Email != "" {
		sets = append(sets, "email = "+arg(usr.Email))
	}
	if usr.Roles != nil {
		sets = append(sets, "roles = "+arg(pq.StringArray(usr.Roles)))
	}
	if usr.PasswordHash != nil {
		sets = append(sets, "password_hash = "+arg(usr.PasswordHash))
	}
	if !usr.LastLogin.IsZero() {
		sets = append(sets, "last_login = "+arg(usr.LastLogin.UTC()))
	}
	if isActive != nil {
		sets = append(sets, "is_active = "+arg(*isActive))
	}

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = %s RETURNING *", strings.Join(sets, ", "), arg(usr.ID))
	var row userRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return row.user(), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
