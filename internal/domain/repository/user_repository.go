package repository

import (
	"context"

	"github.com/foodmanager/user-service/internal/domain/entity"
)

// UserRepository is the persistence gateway for user records. It stores
// and retrieves state but enforces no business rules beyond the unique
// indexes on email and login; every other invariant lives in the
// application service.
type UserRepository interface {
	// Create inserts u and fills in the generated ID.
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByLogin(ctx context.Context, login string) (*entity.User, error)
	GetAll(ctx context.Context) ([]*entity.User, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByLogin(ctx context.Context, login string) (bool, error)
	// ExistsByEmailExcluding reports whether a user other than excludeID
	// already holds the email. ExistsByLoginExcluding is the login
	// counterpart.
	ExistsByEmailExcluding(ctx context.Context, email string, excludeID int64) (bool, error)
	ExistsByLoginExcluding(ctx context.Context, login string, excludeID int64) (bool, error)
	Update(ctx context.Context, u *entity.User) error
	DeleteByID(ctx context.Context, id int64) error
}
