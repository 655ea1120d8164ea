package application_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/foodmanager/user-service/internal/application"
	"github.com/foodmanager/user-service/internal/domain/apperrors"
	"github.com/foodmanager/user-service/internal/domain/entity"
	"github.com/foodmanager/user-service/pkg/helpers"
)

// --- Mocks ---

type mockUserRepository struct {
	createFn                 func(ctx context.Context, u *entity.User) error
	getByIDFn                func(ctx context.Context, id int64) (*entity.User, error)
	getByLoginFn             func(ctx context.Context, login string) (*entity.User, error)
	getAllFn                 func(ctx context.Context) ([]*entity.User, error)
	existsByIDFn             func(ctx context.Context, id int64) (bool, error)
	existsByEmailFn          func(ctx context.Context, email string) (bool, error)
	existsByLoginFn          func(ctx context.Context, login string) (bool, error)
	existsByEmailExcludingFn func(ctx context.Context, email string, excludeID int64) (bool, error)
	existsByLoginExcludingFn func(ctx context.Context, login string, excludeID int64) (bool, error)
	updateFn                 func(ctx context.Context, u *entity.User) error
	deleteByIDFn             func(ctx context.Context, id int64) error
}

func (m *mockUserRepository) Create(ctx context.Context, u *entity.User) error {
	return m.createFn(ctx, u)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockUserRepository) GetByLogin(ctx context.Context, login string) (*entity.User, error) {
	return m.getByLoginFn(ctx, login)
}

func (m *mockUserRepository) GetAll(ctx context.Context) ([]*entity.User, error) {
	return m.getAllFn(ctx)
}

func (m *mockUserRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return m.existsByIDFn(ctx, id)
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsByEmailFn == nil {
		return false, nil
	}
	return m.existsByEmailFn(ctx, email)
}

func (m *mockUserRepository) ExistsByLogin(ctx context.Context, login string) (bool, error) {
	if m.existsByLoginFn == nil {
		return false, nil
	}
	return m.existsByLoginFn(ctx, login)
}

func (m *mockUserRepository) ExistsByEmailExcluding(ctx context.Context, email string, excludeID int64) (bool, error) {
	if m.existsByEmailExcludingFn == nil {
		return false, nil
	}
	return m.existsByEmailExcludingFn(ctx, email, excludeID)
}

func (m *mockUserRepository) ExistsByLoginExcluding(ctx context.Context, login string, excludeID int64) (bool, error) {
	if m.existsByLoginExcludingFn == nil {
		return false, nil
	}
	return m.existsByLoginExcludingFn(ctx, login, excludeID)
}

func (m *mockUserRepository) Update(ctx context.Context, u *entity.User) error {
	return m.updateFn(ctx, u)
}

func (m *mockUserRepository) DeleteByID(ctx context.Context, id int64) error {
	return m.deleteByIDFn(ctx, id)
}

func newService(repo *mockUserRepository) *application.Service {
	return &application.Service{Repo: repo}
}

func testUser(t *testing.T, id int64) *entity.User {
	t.Helper()
	hash, err := helpers.HashPassword("oldpassword")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &entity.User{
		ID:          id,
		Name:        "Jane Doe",
		Email:       "jane@example.com",
		Login:       "janedoe",
		Password:    hash,
		Address:     "1 Main St",
		UserType:    entity.UserTypeCustomer,
		AvatarURL:   "https://cdn.example.com/a.png",
		LastUpdated: time.Now().UTC().Add(-time.Hour),
	}
}

// --- Create ---

func TestCreate_Success(t *testing.T) {
	var created *entity.User
	repo := &mockUserRepository{
		createFn: func(ctx context.Context, u *entity.User) error {
			u.ID = 42
			created = u
			return nil
		},
	}
	svc := newService(repo)

	before := time.Now().UTC()
	out, err := svc.Create(context.Background(), &entity.User{
		Name:     "Jane Doe",
		Email:    "jane@example.com",
		Login:    "janedoe",
		Password: "secret123",
		UserType: entity.UserTypeCustomer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ID != 42 {
		t.Errorf("expected generated ID 42, got %d", out.ID)
	}
	if created == nil {
		t.Fatal("expected Create to be called")
	}
	if created.Password == "secret123" {
		t.Error("password stored in plain text")
	}
	if !helpers.CompareHashAndPassword(created.Password, "secret123") {
		t.Error("stored hash does not verify against original password")
	}
	if created.LastUpdated.Before(before) {
		t.Errorf("LastUpdated not stamped: %v", created.LastUpdated)
	}
}

func TestCreate_NilUser(t *testing.T) {
	svc := newService(&mockUserRepository{})
	if _, err := svc.Create(context.Background(), nil); !errors.Is(err, apperrors.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo := &mockUserRepository{
		existsByEmailFn: func(ctx context.Context, email string) (bool, error) {
			return true, nil
		},
		createFn: func(ctx context.Context, u *entity.User) error {
			t.Fatal("Create should not be called on duplicate email")
			return nil
		},
	}
	svc := newService(repo)

	_, err := svc.Create(context.Background(), &entity.User{Email: "jane@example.com", Login: "janedoe", Password: "secret123"})
	if !errors.Is(err, apperrors.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestCreate_DuplicateEmailWinsOverLogin(t *testing.T) {
	repo := &mockUserRepository{
		existsByEmailFn: func(ctx context.Context, email string) (bool, error) {
			return true, nil
		},
		existsByLoginFn: func(ctx context.Context, login string) (bool, error) {
			t.Fatal("login check should not run once email conflicts")
			return true, nil
		},
	}
	svc := newService(repo)

	_, err := svc.Create(context.Background(), &entity.User{Email: "jane@example.com", Login: "janedoe", Password: "secret123"})
	if !errors.Is(err, apperrors.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestCreate_DuplicateLogin(t *testing.T) {
	repo := &mockUserRepository{
		existsByLoginFn: func(ctx context.Context, login string) (bool, error) {
			return true, nil
		},
	}
	svc := newService(repo)

	_, err := svc.Create(context.Background(), &entity.User{Email: "jane@example.com", Login: "janedoe", Password: "secret123"})
	if !errors.Is(err, apperrors.ErrDuplicateLogin) {
		t.Errorf("expected ErrDuplicateLogin, got %v", err)
	}
}

// --- GetByID ---

func TestGetByID_InvalidID(t *testing.T) {
	svc := newService(&mockUserRepository{})
	for _, id := range []int64{0, -1} {
		if _, err := svc.GetByID(context.Background(), id); !errors.Is(err, apperrors.ErrInvalidData) {
			t.Errorf("id=%d: expected ErrInvalidData, got %v", id, err)
		}
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return nil, apperrors.ErrUserNotFound
		},
	}
	svc := newService(repo)
	if _, err := svc.GetByID(context.Background(), 99); !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

// --- Update (full replacement) ---

func TestUpdate_ReplacesProfileKeepsCredentials(t *testing.T) {
	existing := testUser(t, 7)
	var updated *entity.User
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			updated = u
			return nil
		},
	}
	svc := newService(repo)

	out, err := svc.Update(context.Background(), 7, &entity.User{
		Name:     "Janet Doe",
		Email:    "janet@example.com",
		Login:    "janetdoe",
		Address:  "",
		UserType: entity.UserTypeCourier,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated == nil {
		t.Fatal("expected Update to be called")
	}
	if out.Name != "Janet Doe" || out.Email != "janet@example.com" || out.Login != "janetdoe" {
		t.Errorf("profile fields not replaced: %+v", out)
	}
	if out.Address != "" {
		t.Errorf("full update must overwrite address, got %q", out.Address)
	}
	if out.Password != existing.Password {
		t.Error("stored password hash must carry over on full update")
	}
	if out.AvatarURL != existing.AvatarURL {
		t.Error("avatar URL must carry over on full update")
	}
	if out.ID != 7 {
		t.Errorf("expected ID 7, got %d", out.ID)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return nil, apperrors.ErrUserNotFound
		},
	}
	svc := newService(repo)
	_, err := svc.Update(context.Background(), 99, &entity.User{Email: "x@example.com", Login: "x"})
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdate_LoginTakenByAnotherUser(t *testing.T) {
	existing := testUser(t, 7)
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return existing, nil
		},
		existsByLoginExcludingFn: func(ctx context.Context, login string, excludeID int64) (bool, error) {
			if excludeID != 7 {
				t.Errorf("expected uniqueness check scoped to id 7, got %d", excludeID)
			}
			return login == "takenlogin", nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			t.Fatal("Update should not be called on duplicate login")
			return nil
		},
	}
	svc := newService(repo)

	_, err := svc.Update(context.Background(), 7, &entity.User{Email: "jane@example.com", Login: "takenlogin"})
	if !errors.Is(err, apperrors.ErrDuplicateLogin) {
		t.Errorf("expected ErrDuplicateLogin, got %v", err)
	}
}

func TestUpdate_OwnValuesNeverConflict(t *testing.T) {
	existing := testUser(t, 7)
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return existing, nil
		},
		existsByEmailExcludingFn: func(ctx context.Context, email string, excludeID int64) (bool, error) {
			// scoped check skips excludeID's own row
			return false, nil
		},
		existsByLoginExcludingFn: func(ctx context.Context, login string, excludeID int64) (bool, error) {
			return false, nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			return nil
		},
	}
	svc := newService(repo)

	_, err := svc.Update(context.Background(), 7, &entity.User{Email: existing.Email, Login: existing.Login, Name: existing.Name})
	if err != nil {
		t.Fatalf("resubmitting own email/login must not conflict: %v", err)
	}
}

// --- PartialUpdate ---

func TestPartialUpdate_BlankFieldsUnchanged(t *testing.T) {
	existing := testUser(t, 7)
	origEmail, origLogin, origAddr := existing.Email, existing.Login, existing.Address
	var updated *entity.User
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			updated = u
			return nil
		},
	}
	svc := newService(repo)

	out, err := svc.PartialUpdate(context.Background(), 7, &application.PartialUpdateInput{Name: "New Name"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated == nil {
		t.Fatal("expected Update to be called")
	}
	if out.Name != "New Name" {
		t.Errorf("name not patched: %q", out.Name)
	}
	if out.Email != origEmail || out.Login != origLogin || out.Address != origAddr {
		t.Errorf("blank patch fields must leave values unchanged: %+v", out)
	}
}

func TestPartialUpdate_SameValueSkipsUniquenessCheck(t *testing.T) {
	existing := testUser(t, 7)
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return existing, nil
		},
		existsByEmailExcludingFn: func(ctx context.Context, email string, excludeID int64) (bool, error) {
			t.Fatal("email check should not run for an unchanged value")
			return false, nil
		},
		existsByLoginExcludingFn: func(ctx context.Context, login string, excludeID int64) (bool, error) {
			t.Fatal("login check should not run for an unchanged value")
			return false, nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			return nil
		},
	}
	svc := newService(repo)

	_, err := svc.PartialUpdate(context.Background(), 7, &application.PartialUpdateInput{
		Email: existing.Email,
		Login: existing.Login,
	})
	if err != nil {
		t.Fatalf("resubmitting current values must succeed: %v", err)
	}
}

func TestPartialUpdate_EmailTaken(t *testing.T) {
	existing := testUser(t, 7)
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return existing, nil
		},
		existsByEmailExcludingFn: func(ctx context.Context, email string, excludeID int64) (bool, error) {
			return true, nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			t.Fatal("Update should not be called on duplicate email")
			return nil
		},
	}
	svc := newService(repo)

	_, err := svc.PartialUpdate(context.Background(), 7, &application.PartialUpdateInput{Email: "other@example.com"})
	if !errors.Is(err, apperrors.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestPartialUpdate_NilInput(t *testing.T) {
	svc := newService(&mockUserRepository{})
	if _, err := svc.PartialUpdate(context.Background(), 7, nil); !errors.Is(err, apperrors.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}

// --- DeleteByID ---

func TestDeleteByID_Success(t *testing.T) {
	var deleted int64
	repo := &mockUserRepository{
		existsByIDFn: func(ctx context.Context, id int64) (bool, error) {
			return true, nil
		},
		deleteByIDFn: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}
	svc := newService(repo)

	if err := svc.DeleteByID(context.Background(), 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 7 {
		t.Errorf("expected delete of id 7, got %d", deleted)
	}
}

func TestDeleteByID_NotFound(t *testing.T) {
	repo := &mockUserRepository{
		existsByIDFn: func(ctx context.Context, id int64) (bool, error) {
			return false, nil
		},
		deleteByIDFn: func(ctx context.Context, id int64) error {
			t.Fatal("DeleteByID should not be called for an unknown id")
			return nil
		},
	}
	svc := newService(repo)

	if err := svc.DeleteByID(context.Background(), 99); !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDeleteByID_InvalidID(t *testing.T) {
	svc := newService(&mockUserRepository{})
	if err := svc.DeleteByID(context.Background(), 0); !errors.Is(err, apperrors.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}

// --- FindByLogin ---

func TestFindByLogin_Blank(t *testing.T) {
	svc := newService(&mockUserRepository{})
	for _, login := range []string{"", "   "} {
		if _, err := svc.FindByLogin(context.Background(), login); !errors.Is(err, apperrors.ErrInvalidData) {
			t.Errorf("login=%q: expected ErrInvalidData, got %v", login, err)
		}
	}
}

func TestFindByLogin_Absent(t *testing.T) {
	repo := &mockUserRepository{
		getByLoginFn: func(ctx context.Context, login string) (*entity.User, error) {
			return nil, apperrors.ErrUserNotFound
		},
	}
	svc := newService(repo)

	u, err := svc.FindByLogin(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("absent login must not be an error, got %v", err)
	}
	if u != nil {
		t.Errorf("expected nil user for absent login, got %+v", u)
	}
}

func TestFindByLogin_Found(t *testing.T) {
	existing := testUser(t, 7)
	repo := &mockUserRepository{
		getByLoginFn: func(ctx context.Context, login string) (*entity.User, error) {
			if login != "janedoe" {
				t.Errorf("expected lookup for janedoe, got %q", login)
			}
			return existing, nil
		},
	}
	svc := newService(repo)

	u, err := svc.FindByLogin(context.Background(), "janedoe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.ID != 7 {
		t.Errorf("expected user 7, got %+v", u)
	}
}

// --- Authenticate ---

func TestAuthenticate_BlankCredentials(t *testing.T) {
	svc := newService(&mockUserRepository{})
	cases := []struct{ login, password string }{
		{"", "secret"},
		{"janedoe", ""},
		{"", ""},
	}
	for _, c := range cases {
		if _, err := svc.Authenticate(context.Background(), c.login, c.password); !errors.Is(err, apperrors.ErrInvalidCredentials) {
			t.Errorf("login=%q password=%q: expected ErrInvalidCredentials, got %v", c.login, c.password, err)
		}
	}
}

func TestAuthenticate_UnknownLogin(t *testing.T) {
	repo := &mockUserRepository{
		getByLoginFn: func(ctx context.Context, login string) (*entity.User, error) {
			return nil, apperrors.ErrUserNotFound
		},
	}
	svc := newService(repo)
	if _, err := svc.Authenticate(context.Background(), "ghost", "secret"); !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	existing := testUser(t, 7)
	repo := &mockUserRepository{
		getByLoginFn: func(ctx context.Context, login string) (*entity.User, error) {
			return existing, nil
		},
	}
	svc := newService(repo)
	if _, err := svc.Authenticate(context.Background(), "janedoe", "wrongpass"); !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticate_Success(t *testing.T) {
	existing := testUser(t, 7)
	repo := &mockUserRepository{
		getByLoginFn: func(ctx context.Context, login string) (*entity.User, error) {
			return existing, nil
		},
	}
	svc := newService(repo)

	u, err := svc.Authenticate(context.Background(), "janedoe", "oldpassword")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != 7 {
		t.Errorf("expected user 7, got %d", u.ID)
	}
}

// --- ChangePassword ---

func TestChangePassword_Success(t *testing.T) {
	existing := testUser(t, 7)
	var updated *entity.User
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			updated = u
			return nil
		},
	}
	svc := newService(repo)

	if err := svc.ChangePassword(context.Background(), 7, "oldpassword", "newsecret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated == nil {
		t.Fatal("expected Update to be called")
	}
	if !helpers.CompareHashAndPassword(updated.Password, "newsecret") {
		t.Error("stored hash does not verify against the new password")
	}
	if helpers.CompareHashAndPassword(updated.Password, "oldpassword") {
		t.Error("old password still verifies after change")
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	existing := testUser(t, 7)
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			t.Fatal("Update should not be called with a wrong current password")
			return nil
		},
	}
	svc := newService(repo)

	err := svc.ChangePassword(context.Background(), 7, "wrongpass", "newsecret")
	if !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePassword_NewPasswordLength(t *testing.T) {
	existing := testUser(t, 7)
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			t.Fatal("Update should not be called with an invalid new password")
			return nil
		},
	}
	svc := newService(repo)

	tooLong := make([]byte, 101)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	// "пятка" is 5 runes but 10 bytes; the policy counts characters
	for _, pw := range []string{"short", string(tooLong), "пятка"} {
		err := svc.ChangePassword(context.Background(), 7, "oldpassword", pw)
		if !errors.Is(err, apperrors.ErrInvalidData) {
			t.Errorf("password %q: expected ErrInvalidData, got %v", pw, err)
		}
	}
}

func TestChangePassword_MultibyteLengthCountsRunes(t *testing.T) {
	existing := testUser(t, 7)
	var updated *entity.User
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			updated = u
			return nil
		},
	}
	svc := newService(repo)

	// 36 two-byte runes: comfortably above the 6-character minimum in
	// runes while staying under bcrypt's 72-byte input limit
	pw := strings.Repeat("ж", 36)
	if err := svc.ChangePassword(context.Background(), 7, "oldpassword", pw); err != nil {
		t.Fatalf("36-rune password must be accepted: %v", err)
	}
	if updated == nil {
		t.Fatal("expected Update to be called")
	}
}

func TestChangePassword_NotFound(t *testing.T) {
	repo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return nil, apperrors.ErrUserNotFound
		},
	}
	svc := newService(repo)

	err := svc.ChangePassword(context.Background(), 99, "oldpassword", "newsecret")
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestChangePassword_BlankArguments(t *testing.T) {
	svc := newService(&mockUserRepository{})
	cases := []struct {
		id            int64
		current, next string
	}{
		{0, "old", "newsecret"},
		{7, "", "newsecret"},
		{7, "old", ""},
	}
	for _, c := range cases {
		err := svc.ChangePassword(context.Background(), c.id, c.current, c.next)
		if !errors.Is(err, apperrors.ErrInvalidData) {
			t.Errorf("id=%d: expected ErrInvalidData, got %v", c.id, err)
		}
	}
}
