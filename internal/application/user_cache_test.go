package application_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"github.com/foodmanager/user-service/internal/application"
	"github.com/foodmanager/user-service/internal/domain/entity"
)

func TestGetByID_CacheHitSkipsStore(t *testing.T) {
	existing := testUser(t, 7)
	b, err := json.Marshal(existing)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	db, mock := redismock.NewClientMock()
	mock.ExpectGet("user:profile:7").SetVal(string(b))

	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			t.Fatal("store should not be queried on a cache hit")
			return nil, nil
		},
	}
	svc := &application.Service{Repo: repo, Redis: db}

	u, err := svc.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != 7 || u.Login != existing.Login || u.Email != existing.Email {
		t.Errorf("cached record does not match: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations: %v", err)
	}
}

func TestGetByID_CacheMissFillsCache(t *testing.T) {
	existing := testUser(t, 7)

	db, mock := redismock.NewClientMock()
	mock.ExpectGet("user:profile:7").RedisNil()
	mock.Regexp().ExpectSet("user:profile:7", `.*"Login":"janedoe".*`, 10*time.Minute).SetVal("OK")

	var storeHits int
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			storeHits++
			return existing, nil
		},
	}
	svc := &application.Service{Repo: repo, Redis: db}

	u, err := svc.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != 7 {
		t.Errorf("expected user 7, got %+v", u)
	}
	if storeHits != 1 {
		t.Errorf("expected one store read, got %d", storeHits)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations: %v", err)
	}
}

func TestDeleteByID_DropsSessionAndCachedProfile(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectDel("user:session:7").SetVal(1)
	mock.ExpectDel("user:profile:7").SetVal(1)

	repo := &mockUserRepository{
		existsByIDFn: func(ctx context.Context, id int64) (bool, error) {
			return true, nil
		},
		deleteByIDFn: func(ctx context.Context, id int64) error {
			return nil
		},
	}
	svc := &application.Service{Repo: repo, Redis: db}

	if err := svc.DeleteByID(context.Background(), 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations: %v", err)
	}
}

func TestChangePassword_DropsCachedProfile(t *testing.T) {
	existing := testUser(t, 7)

	db, mock := redismock.NewClientMock()
	mock.ExpectGet("user:profile:7").RedisNil()
	mock.Regexp().ExpectSet("user:profile:7", `.*`, 10*time.Minute).SetVal("OK")
	mock.ExpectDel("user:profile:7").SetVal(1)

	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			return nil
		},
	}
	svc := &application.Service{Repo: repo, Redis: db}

	if err := svc.ChangePassword(context.Background(), 7, "oldpassword", "newsecret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations: %v", err)
	}
}
