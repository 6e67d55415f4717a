// internal/database/users.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	return u, err
}

type CreateUserParams struct {
	Username string
	Email    string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (username, email)
		VALUES ($1, $2)
		RETURNING id, username, email, created_at`,
		arg.Username, arg.Email)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := q.db.QueryRow(ctx, `SELECT id, username, email, created_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := q.db.QueryRow(ctx, `SELECT id, username, email, created_at FROM users WHERE email = $1`, email)
	return scanUser(row)
}
