package core

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryAuthService implements AuthService over a UserRepository,
// bcrypt verification and a TokenCodec.
type RepositoryAuthService struct {
	users UserRepository
	codec *TokenCodec
	now   func() time.Time
}

func NewRepositoryAuthService(users UserRepository, codec *TokenCodec) *RepositoryAuthService {
	return &RepositoryAuthService{users: users, codec: codec, now: time.Now}
}

// Login verifies credentials and issues a token carrying the principal's
// current role snapshot. Unknown user and wrong password both return
// ErrInvalidCredentials so callers cannot enumerate usernames.
func (s *RepositoryAuthService) Login(ctx context.Context, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil || u == nil {
		return "", ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	return s.codec.Issue(u.Username, u.Roles, s.now())
}

// Register creates a new principal with the default USER role and issues a
// token for it, so registration implies immediate authentication. Uniqueness
// checks precede the insert; no partial writes happen on failure.
func (s *RepositoryAuthService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	if taken, err := s.users.ExistsByUsername(ctx, req.Username); err != nil {
		return "", err
	} else if taken {
		return "", ErrDuplicateUsername
	}
	if taken, err := s.users.ExistsByEmail(ctx, req.Email); err != nil {
		return "", err
	} else if taken {
		return "", ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	u := UserRecord{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Roles:        []Role{RoleUser},
	}
	if _, err := s.users.Create(ctx, u); err != nil {
		return "", err
	}

	return s.codec.Issue(u.Username, u.Roles, s.now())
}
