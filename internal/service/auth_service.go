package service

import (
	"errors"
	"strings"

	"skillcert_backend/internal/config"
	"skillcert_backend/internal/model"
	"skillcert_backend/internal/repository"
	"skillcert_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService registers accounts and signs session tokens.
type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
	// HashCost is the bcrypt cost for new passwords.
	HashCost int
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{UserRepo: userRepo, Cfg: cfg, HashCost: bcrypt.DefaultCost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register stores user with a hashed password. Emails are unique case-insensitively.
func (s *AuthService) Register(user *model.User) error {
	user.Email = normalizeEmail(user.Email)
	switch _, err := s.UserRepo.FindByEmail(user.Email); {
	case err == nil:
		return util.ErrEmailRegistered
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), s.HashCost)
	if err != nil {
		return err
	}
	user.Password = string(hash)
	return s.UserRepo.Create(user)
}

// Login returns a signed token and the user it was issued for. Unknown emails and
// wrong passwords fail the same way.
func (s *AuthService) Login(email, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, util.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return "", nil, util.ErrInvalidCredentials
	}

	token, err := util.SignSession(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
