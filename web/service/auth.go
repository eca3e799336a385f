package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/medreport/medreport/config"
	"github.com/medreport/medreport/database"
	"github.com/medreport/medreport/database/model"
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/util/crypto"
)

// Claims is the payload of an access token.
type Claims struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies access tokens and handles self-service
// registration and login.
type AuthService struct {
	DB  *gorm.DB
	cfg config.AuthConfig
}

func NewAuthService(db *gorm.DB, cfg config.AuthConfig) *AuthService {
	return &AuthService{DB: db, cfg: cfg}
}

// TokenTTL is the lifetime of issued access tokens.
func (s *AuthService) TokenTTL() time.Duration {
	return s.cfg.AccessTokenTTL
}

// IssueToken signs an access token for u.
func (s *AuthService) IssueToken(u *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:    u.Id,
		Email: u.Email,
		Name:  u.Name,
		Role:  string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

// ParseToken verifies signature and expiry and returns the claims. Any
// failure is reported as ErrInvalidToken.
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// RegisterInput is a patient's self-registration form.
type RegisterInput struct {
	Name        string
	Email       string
	PhoneNumber string
	Password    string
	DateOfBirth string
	Gender      string
}

// Register creates a patient account and returns it with a fresh token.
// The role is always patient; doctors and admins are created elsewhere.
func (s *AuthService) Register(in RegisterInput) (*model.User, string, error) {
	email := normalizeEmail(in.Email)

	var dob *string
	if in.DateOfBirth != "" {
		if _, err := time.Parse(time.DateOnly, in.DateOfBirth); err != nil {
			return nil, "", ErrInvalidDateOfBirth
		}
		dob = &in.DateOfBirth
	}

	exists, err := emailTaken(s.DB, email)
	if err != nil {
		return nil, "", err
	}
	if exists {
		logger.Warningf("Registration failed: user with email %s already exists", email)
		return nil, "", ErrUserExists
	}

	hash, err := crypto.HashPasswordAsBcrypt(in.Password)
	if err != nil {
		return nil, "", err
	}
	u := &model.User{
		Name:        in.Name,
		Email:       email,
		PhoneNumber: in.PhoneNumber,
		Password:    hash,
		Role:        model.RolePatient,
		DateOfBirth: dob,
		Gender:      optional(in.Gender),
	}
	if err := s.DB.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", ErrUserExists
		}
		return nil, "", err
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return nil, "", err
	}
	logger.Infof("%s (%s) registered successfully", u.Name, u.Email)
	return u, token, nil
}

// Login checks the credentials and returns the user with a fresh token.
func (s *AuthService) Login(email, password string) (*model.User, string, error) {
	email = normalizeEmail(email)

	u := &model.User{}
	if err := s.DB.Where("email = ?", email).First(u).Error; err != nil {
		if database.IsNotFound(err) {
			logger.Warningf("Login failed: user with email %s not found", email)
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}
	if !crypto.CheckPasswordHash(u.Password, password) {
		logger.Warningf("Login failed: incorrect password for email %s", email)
		return nil, "", ErrIncorrectPassword
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return nil, "", err
	}
	logger.Infof("User %s logged in successfully", email)
	return u, token, nil
}

func emailTaken(db *gorm.DB, email string) (bool, error) {
	var count int64
	if err := db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
