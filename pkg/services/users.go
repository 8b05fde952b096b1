package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"wingspan/pkg/models"
	"wingspan/pkg/store"
)

var (
	ErrNameRequired      = &FormError{"Name is required."}
	ErrInvalidEmail      = &FormError{"A valid email address is required."}
	ErrEmailTaken        = &FormError{"Email is already in use."}
	ErrUserHasArticles   = &FormError{"This user still has articles and cannot be deleted."}
	ErrCannotDeleteSelf  = &FormError{"You cannot delete your own account."}
	ErrInvalidCredential = errors.New("invalid email or password")
)

// UserInput is the add/edit user form. An empty Password keeps the current one.
type UserInput struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Password    string             `json:"password"`
	Permissions models.Permissions `json:"permissions"`
}

type UserService struct {
	store  *store.Store
	cache  Invalidator
	logger *zap.Logger
	now    func() time.Time
}

func NewUserService(st *store.Store, cache Invalidator, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		store:  st,
		cache:  cache,
		logger: logger.Named("users"),
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticate checks an email/password pair. Accounts without a password
// can only sign in through GitHub.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.store.Queries().UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.store.Queries().UserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *UserService) ByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.store.Queries().UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.store.Queries().ListUsers(ctx)
}

func validateUserInput(in *UserInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return ErrNameRequired
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// Create adds a user. Actor nil skips the permission check.
func (s *UserService) Create(ctx context.Context, actor *models.User, in UserInput) (*models.User, error) {
	if actor != nil && !actor.Permissions.CreateUsers {
		return nil, ErrForbidden
	}
	if err := validateUserInput(&in); err != nil {
		return nil, err
	}
	u := models.User{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Email:       in.Email,
		Permissions: in.Permissions,
		CreatedAt:   s.now(),
	}
	if in.Password != "" {
		hash, err := HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if err := s.store.Queries().InsertUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		s.logger.Error("create user failed", zap.String("email", u.Email), zap.Error(err))
		return nil, err
	}
	s.logger.Info("user created", zap.String("id", u.ID), zap.Strings("permissions", u.Permissions.Names()))
	return &u, nil
}

func (s *UserService) Update(ctx context.Context, actor *models.User, in UserInput) (*models.User, error) {
	if actor != nil && !actor.Permissions.EditUsers {
		return nil, ErrForbidden
	}
	if err := validateUserInput(&in); err != nil {
		return nil, err
	}
	q := s.store.Queries()
	u, err := q.UserByID(ctx, in.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Name, u.Email, u.Permissions = in.Name, in.Email, in.Permissions
	u.PasswordHash = ""
	if in.Password != "" {
		if u.PasswordHash, err = HashPassword(in.Password); err != nil {
			return nil, err
		}
	}
	if err := q.UpdateUser(ctx, *u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		s.logger.Error("update user failed", zap.String("id", u.ID), zap.Error(err))
		return nil, err
	}
	// Bylines on the front page carry the user's name.
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	s.logger.Info("user updated", zap.String("id", u.ID))
	return q.UserByID(ctx, u.ID)
}

// Delete removes a user that no longer authors any article.
func (s *UserService) Delete(ctx context.Context, actor *models.User, id string) error {
	if actor != nil {
		if !actor.Permissions.DeleteUsers {
			return ErrForbidden
		}
		if actor.ID == id {
			return ErrCannotDeleteSelf
		}
	}
	return s.store.InTx(ctx, func(q *store.Queries) error {
		n, err := q.CountArticlesByAuthor(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrUserHasArticles
		}
		if err := q.DeleteUser(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		s.logger.Info("user deleted", zap.String("id", id))
		return nil
	})
}
