package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/foodmanager/user-service/internal/domain/apperrors"
)

func TestMapUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{
			name: "email constraint",
			in:   &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"},
			want: apperrors.ErrDuplicateEmail,
		},
		{
			name: "login constraint",
			in:   &pgconn.PgError{Code: "23505", ConstraintName: "users_login_key"},
			want: apperrors.ErrDuplicateLogin,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := mapUniqueViolation(c.in); !errors.Is(got, c.want) {
				t.Errorf("expected %v, got %v", c.want, got)
			}
		})
	}
}

func TestMapUniqueViolation_PassThrough(t *testing.T) {
	unrelatedConstraint := &pgconn.PgError{Code: "23505", ConstraintName: "users_pkey"}
	if got := mapUniqueViolation(unrelatedConstraint); got != unrelatedConstraint {
		t.Errorf("unrelated constraint must pass through, got %v", got)
	}

	notUnique := &pgconn.PgError{Code: "23503", ConstraintName: "users_email_key"}
	if got := mapUniqueViolation(notUnique); got != notUnique {
		t.Errorf("non-23505 codes must pass through, got %v", got)
	}

	plain := errors.New("connection reset")
	if got := mapUniqueViolation(plain); got != plain {
		t.Errorf("non-postgres errors must pass through, got %v", got)
	}
}
