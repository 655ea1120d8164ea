package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foodmanager/user-service/internal/domain/apperrors"
	"github.com/foodmanager/user-service/internal/domain/entity"
	"github.com/foodmanager/user-service/internal/domain/repository"
)

const userColumns = `id, name, email, login, password, address, user_type, avatar_url, last_updated`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// mapUniqueViolation translates a 23505 on one of the users unique
// indexes into the matching typed error. The indexes are the final
// authority for uniqueness; the service's pre-check only narrows the
// race window.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_email_key":
		return apperrors.ErrDuplicateEmail
	case "users_login_key":
		return apperrors.ErrDuplicateLogin
	}
	return err
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, login, password, address, user_type, avatar_url, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, u.Name, u.Email, u.Login, u.Password, u.Address, u.UserType.String(), u.AvatarURL, u.LastUpdated)

	if err := row.Scan(&u.ID); err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*entity.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE login = $1
	`, login)
	return scanUser(row)
}

func (r *UserRepository) GetAll(ctx context.Context) ([]*entity.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*entity.User, 0)
	for rows.Next() {
		u := &entity.User{}
		var userType string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Login, &u.Password,
			&u.Address, &userType, &u.AvatarURL, &u.LastUpdated); err != nil {
			return nil, err
		}
		u.UserType = entity.UserType(userType)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *UserRepository) ExistsByLogin(ctx context.Context, login string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE login = $1)`, login)
}

func (r *UserRepository) ExistsByEmailExcluding(ctx context.Context, email string, excludeID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`, email, excludeID)
}

func (r *UserRepository) ExistsByLoginExcluding(ctx context.Context, login string, excludeID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE login = $1 AND id <> $2)`, login, excludeID)
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $1, email = $2, login = $3, password = $4, address = $5,
		    user_type = $6, avatar_url = $7, last_updated = $8
		WHERE id = $9
	`, u.Name, u.Email, u.Login, u.Password, u.Address, u.UserType.String(),
		u.AvatarURL, u.LastUpdated, u.ID)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if res.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) DeleteByID(ctx context.Context, id int64) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	var userType string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Login, &u.Password,
		&u.Address, &userType, &u.AvatarURL, &u.LastUpdated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	u.UserType = entity.UserType(userType)
	return u, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
