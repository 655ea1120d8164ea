package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/foodmanager/user-service/config"
	"github.com/foodmanager/user-service/internal/domain/apperrors"
	"github.com/foodmanager/user-service/internal/domain/entity"
	repo "github.com/foodmanager/user-service/internal/domain/repository"
	"github.com/foodmanager/user-service/pkg/helpers"
	"github.com/foodmanager/user-service/pkg/mailer"
	mailtpl "github.com/foodmanager/user-service/pkg/mailer/templates"
)

const (
	newPasswordMinLen = 6
	newPasswordMaxLen = 100

	profileCacheTTL = 10 * time.Minute
)

// Service implements the user lifecycle: create, read, full and partial
// update, delete, plus credential verification and password change.
// All durable state lives behind Repo; Redis, ES, GCS and the rabbit
// publisher are optional collaborators and may be nil (tests run with
// just a Repo).
type Service struct {
	Repo         repo.UserRepository
	JWT          *helpers.JWTManager
	GCS          *storage.Client
	GCSBucket    string
	Redis        *redis.Client
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	Pub          *helpers.RabbitPublisher
	Cfg          *config.Config
}

func NewService(repo repo.UserRepository, jwt *helpers.JWTManager, gcs *storage.Client, gcsBucket string, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string, pub *helpers.RabbitPublisher, cfg *config.Config) *Service {
	return &Service{
		Repo:         repo,
		JWT:          jwt,
		GCS:          gcs,
		GCSBucket:    gcsBucket,
		Redis:        rdb,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
		Pub:          pub,
		Cfg:          cfg,
	}
}

func sessionKey(userID int64) string {
	return "user:session:" + strconv.FormatInt(userID, 10)
}

func profileKey(userID int64) string {
	return "user:profile:" + strconv.FormatInt(userID, 10)
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// validateUnique rejects a candidate whose email or login is already
// taken by another record. excludeID > 0 scopes the check to records
// other than the one being updated, so a record never conflicts with
// itself. Email is always checked before login so a candidate failing
// both reports the email conflict. A blank value skips that field's
// check; format validation happens at the HTTP boundary.
func (s *Service) validateUnique(ctx context.Context, u *entity.User, excludeID int64) error {
	if u == nil {
		return apperrors.ErrInvalidData
	}
	if u.Email != "" {
		var (
			taken bool
			err   error
		)
		if excludeID > 0 {
			taken, err = s.Repo.ExistsByEmailExcluding(ctx, u.Email, excludeID)
		} else {
			taken, err = s.Repo.ExistsByEmail(ctx, u.Email)
		}
		if err != nil {
			return err
		}
		if taken {
			return apperrors.ErrDuplicateEmail
		}
	}
	if u.Login != "" {
		var (
			taken bool
			err   error
		)
		if excludeID > 0 {
			taken, err = s.Repo.ExistsByLoginExcluding(ctx, u.Login, excludeID)
		} else {
			taken, err = s.Repo.ExistsByLogin(ctx, u.Login)
		}
		if err != nil {
			return err
		}
		if taken {
			return apperrors.ErrDuplicateLogin
		}
	}
	return nil
}

// Create validates uniqueness, hashes the password, stamps LastUpdated
// and stores the record. The returned user carries the generated ID.
func (s *Service) Create(ctx context.Context, u *entity.User) (*entity.User, error) {
	if u == nil {
		return nil, apperrors.ErrInvalidData
	}
	if err := s.validateUnique(ctx, u, 0); err != nil {
		return nil, err
	}

	hash, err := helpers.HashPassword(u.Password)
	if err != nil {
		return nil, err
	}
	u.Password = hash
	u.LastUpdated = time.Now().UTC()

	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.WithField("user_id", u.ID).Info("user created")
	}
	_ = s.indexUser(ctx, u)
	if s.Pub != nil && s.Cfg != nil && s.Cfg.MailSendEnabled {
		s.enqueueEmail(ctx, mailer.EmailJob{
			To:       u.Email,
			Template: mailtpl.Welcome,
			Data:     mailtpl.NewWelcomeData(s.Cfg, u.Name, u.Email, u.Login, mailtpl.WithTime(time.Now())),
		})
	}
	return u, nil
}

// GetByID reads through the Redis profile cache when one is configured.
// Every mutating operation drops the cached entry, so a hit is at most
// profileCacheTTL stale and only for reads that raced a write.
func (s *Service) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if id <= 0 {
		return nil, apperrors.ErrInvalidData
	}
	if s.Redis != nil {
		var cached entity.User
		if ok, err := helpers.RedisGetJSON(ctx, s.Redis, profileKey(id), &cached); err == nil && ok {
			return &cached, nil
		}
	}
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Redis != nil {
		_ = helpers.RedisSetJSON(ctx, s.Redis, profileKey(id), u, profileCacheTTL)
	}
	return u, nil
}

func (s *Service) dropProfileCache(ctx context.Context, id int64) {
	if s.Redis == nil {
		return
	}
	_ = helpers.RedisDel(ctx, s.Redis, profileKey(id))
}

func (s *Service) GetAll(ctx context.Context) ([]*entity.User, error) {
	return s.Repo.GetAll(ctx)
}

// Update is a full replacement of the profile fields: name, email,
// login, address and user type are all overwritten with the incoming
// values. The stored password hash and avatar URL carry over; the
// password changes only through ChangePassword.
func (s *Service) Update(ctx context.Context, id int64, u *entity.User) (*entity.User, error) {
	if id <= 0 || u == nil {
		return nil, apperrors.ErrInvalidData
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateUnique(ctx, u, id); err != nil {
		return nil, err
	}

	u.ID = id
	u.Password = existing.Password
	u.AvatarURL = existing.AvatarURL
	u.LastUpdated = time.Now().UTC()

	if err := s.Repo.Update(ctx, u); err != nil {
		return nil, err
	}

	s.dropProfileCache(ctx, id)
	s.refreshSession(ctx, u)
	_ = s.indexUser(ctx, u)
	return u, nil
}

// PartialUpdateInput carries the patchable fields. A blank field means
// "leave unchanged"; there is no way to clear a field through a patch.
type PartialUpdateInput struct {
	Name    string
	Email   string
	Login   string
	Address string
}

// PartialUpdate merges the non-blank fields of in onto the stored
// record. Email and login go through the scoped uniqueness check only
// when the incoming value differs from the stored one; resubmitting the
// current value is never a conflict and costs no lookup.
func (s *Service) PartialUpdate(ctx context.Context, id int64, in *PartialUpdateInput) (*entity.User, error) {
	if id <= 0 || in == nil {
		return nil, apperrors.ErrInvalidData
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		u.Name = in.Name
	}
	if in.Email != "" && in.Email != u.Email {
		taken, err := s.Repo.ExistsByEmailExcluding(ctx, in.Email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperrors.ErrDuplicateEmail
		}
		u.Email = in.Email
	}
	if in.Login != "" && in.Login != u.Login {
		taken, err := s.Repo.ExistsByLoginExcluding(ctx, in.Login, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperrors.ErrDuplicateLogin
		}
		u.Login = in.Login
	}
	if in.Address != "" {
		u.Address = in.Address
	}

	u.LastUpdated = time.Now().UTC()
	if err := s.Repo.Update(ctx, u); err != nil {
		return nil, err
	}

	s.dropProfileCache(ctx, id)
	s.refreshSession(ctx, u)
	_ = s.indexUser(ctx, u)
	return u, nil
}

// DeleteByID removes the record. Deleting an unknown id is an error,
// never a silent no-op; existence is checked with a lightweight query
// rather than a full fetch.
func (s *Service) DeleteByID(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperrors.ErrInvalidData
	}
	found, err := s.Repo.ExistsByID(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.ErrUserNotFound
	}
	if err := s.Repo.DeleteByID(ctx, id); err != nil {
		return err
	}

	if s.Redis != nil {
		_ = helpers.RedisDel(ctx, s.Redis, sessionKey(id))
	}
	s.dropProfileCache(ctx, id)
	_ = s.deleteUserDoc(ctx, id)
	if s.Logger != nil {
		s.Logger.WithField("user_id", id).Info("user deleted")
	}
	return nil
}

// FindByLogin returns the matching user, or (nil, nil) when no record
// holds the login. Credential verification needs to tell "absent" apart
// from a lookup failure without an error-driven control path.
func (s *Service) FindByLogin(ctx context.Context, login string) (*entity.User, error) {
	if strings.TrimSpace(login) == "" {
		return nil, apperrors.ErrInvalidData
	}
	u, err := s.Repo.GetByLogin(ctx, login)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies a login/password pair. Unknown login and wrong
// password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*entity.User, error) {
	if login == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}
	u, err := s.FindByLogin(ctx, login)
	if err != nil && !errors.Is(err, apperrors.ErrInvalidData) {
		return nil, err
	}
	if u == nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword replaces the stored password after verifying the
// current one. Nothing about the password is ever echoed back.
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if userID <= 0 || currentPassword == "" || newPassword == "" {
		return apperrors.ErrInvalidData
	}
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !helpers.CompareHashAndPassword(u.Password, currentPassword) {
		return apperrors.ErrInvalidCredentials
	}
	// rune count, matching the boundary's min/max validation
	if n := utf8.RuneCountInString(newPassword); n < newPasswordMinLen || n > newPasswordMaxLen {
		return apperrors.ErrInvalidData
	}

	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	u.Password = hash
	u.LastUpdated = time.Now().UTC()

	if err := s.Repo.Update(ctx, u); err != nil {
		return err
	}

	s.dropProfileCache(ctx, userID)
	if s.Logger != nil {
		s.Logger.WithField("user_id", userID).Info("password changed")
	}
	if s.Pub != nil && s.Cfg != nil && s.Cfg.MailSendEnabled {
		s.enqueueEmail(ctx, mailer.EmailJob{
			To:       u.Email,
			Template: mailtpl.PasswordChanged,
			Data:     mailtpl.NewPasswordChangedData(s.Cfg, u.Name, u.Email, u.Login, mailtpl.WithTime(time.Now())),
		})
	}
	return nil
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// IssueTokens generates access/refresh tokens and records a session in Redis.
func (s *Service) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		}
		return TokenPair{}, err
	}

	if s.Redis != nil {
		fields := map[string]any{
			"user_id":    u.ID,
			"login":      u.Login,
			"email":      u.Email,
			"name":       u.Name,
			"user_type":  u.UserType.String(),
			"logged_in":  true,
			"created_at": nowRFC3339(),
		}
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, 24*time.Hour)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Refresh rotates the token pair for a valid refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, int64, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, 0, apperrors.ErrInvalidCredentials
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID)
	if err != nil || u == nil {
		return TokenPair{}, 0, apperrors.ErrInvalidCredentials
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return TokenPair{}, 0, err
	}
	return pair, u.ID, nil
}

// UploadAvatar stores a profile image in GCS and records its public URL.
func (s *Service) UploadAvatar(ctx context.Context, userID int64, r io.Reader, filename, contentType string) (string, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("gcs not configured")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", strconv.FormatInt(userID, 10), uuid.NewString()+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return "", err
	}

	u.AvatarURL = url
	u.LastUpdated = time.Now().UTC()
	if err := s.Repo.Update(ctx, u); err != nil {
		return "", err
	}
	s.dropProfileCache(ctx, userID)
	_ = s.indexUser(ctx, u)
	return url, nil
}

// refreshSession mirrors profile changes into the Redis session hash,
// preserving the remaining TTL.
func (s *Service) refreshSession(ctx context.Context, u *entity.User) {
	if s.Redis == nil {
		return
	}
	key := sessionKey(u.ID)
	pipe := s.Redis.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"login":      u.Login,
		"email":      u.Email,
		"name":       u.Name,
		"user_type":  u.UserType.String(),
		"updated_at": nowRFC3339(),
	})
	if ttl, tErr := s.Redis.TTL(ctx, key).Result(); tErr == nil && ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, pErr := pipe.Exec(ctx); pErr != nil && s.Logger != nil {
		s.Logger.WithError(pErr).WithField("key", key).Warn("redis pipeline failed")
	}
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":           u.ID,
		"name":         u.Name,
		"email":        u.Email,
		"login":        u.Login,
		"address":      u.Address,
		"user_type":    u.UserType.String(),
		"avatar_url":   u.AvatarURL,
		"last_updated": u.LastUpdated.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: strconv.FormatInt(u.ID, 10), Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

func (s *Service) deleteUserDoc(ctx context.Context, id int64) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	req := esapi.DeleteRequest{Index: s.ESUsersIndex, DocumentID: strconv.FormatInt(id, 10)}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", id).Warn("es delete failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	return nil
}

// SearchUsers performs a simple multi_match search on name, email and login.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"name^2", "email", "login"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

// enqueueEmail publishes an account email job; delivery is best-effort
// and never fails the lifecycle operation.
func (s *Service) enqueueEmail(ctx context.Context, job mailer.EmailJob) {
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("template", job.Template).Warn("email enqueue failed")
	}
}
