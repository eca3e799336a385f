package service

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"gorm.io/gorm"

	"github.com/medreport/medreport/config"
	"github.com/medreport/medreport/database"
	"github.com/medreport/medreport/database/model"
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/util/crypto"
	"github.com/medreport/medreport/util/random"
	"github.com/medreport/medreport/web/cache"
)

const (
	resetTokenBytes        = 20
	generatedPasswordBytes = 6
)

// UserService covers account reads and the flows that mutate a user after
// creation: password reset and admin-created doctor accounts.
type UserService struct {
	DB         *gorm.DB
	mailer     Mailer
	resetTTL   time.Duration
	appBaseURL string
}

func NewUserService(db *gorm.DB, mailer Mailer, cfg *config.Config) *UserService {
	return &UserService{
		DB:         db,
		mailer:     mailer,
		resetTTL:   cfg.Auth.ResetTokenTTL,
		appBaseURL: cfg.AppBaseURL,
	}
}

// Profile is the dashboard view of a user. The doctor fields are only
// present for doctors.
type Profile struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	PhoneNumber string  `json:"phone_number"`
	City        *string `json:"city,omitempty"`
	Specialty   *string `json:"specialty,omitempty"`
	Designation *string `json:"designation,omitempty"`
}

// GetProfile loads the profile of user id holding role, through the cache.
func (s *UserService) GetProfile(role model.Role, id int) (*Profile, error) {
	var p Profile
	err := cache.GetOrSet(cache.ProfileKey(string(role), id), &p, cache.TTLProfile, func() (Profile, error) {
		u := model.User{}
		err := s.DB.Where("id = ? AND role = ?", id, role).First(&u).Error
		if err != nil {
			if database.IsNotFound(err) {
				return Profile{}, ErrUserNotFound
			}
			return Profile{}, err
		}
		out := Profile{Name: u.Name, Email: u.Email, PhoneNumber: u.PhoneNumber}
		if role == model.RoleDoctor {
			out.City, out.Specialty, out.Designation = u.City, u.Specialty, u.Designation
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ForgotPassword stores a fresh reset token for email and mails the link.
// Only the token's digest is persisted.
func (s *UserService) ForgotPassword(email string) error {
	email = normalizeEmail(email)
	logger.Infof("Password reset request received for: %s", email)

	u := model.User{}
	if err := s.DB.Where("email = ?", email).First(&u).Error; err != nil {
		if database.IsNotFound(err) {
			logger.Warningf("Password reset failed: user not found (%s)", email)
			return ErrUserNotFound
		}
		return err
	}

	token, err := random.Hex(resetTokenBytes)
	if err != nil {
		return err
	}
	expiry := time.Now().UTC().Add(s.resetTTL)
	err = s.DB.Model(&model.User{}).Where("id = ?", u.Id).Updates(map[string]any{
		"reset_token":        crypto.HashToken(token),
		"reset_token_expiry": expiry,
	}).Error
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.appBaseURL, url.QueryEscape(token))
	body, err := renderMail(resetMail, map[string]string{"Link": link, "Expiry": s.resetTTL.String()})
	if err != nil {
		return err
	}
	if err := s.mailer.Send(u.Email, "Password Reset Request", body); err != nil {
		return err
	}
	logger.Infof("Password reset email sent to: %s", u.Email)
	return nil
}

// ResetPassword consumes a reset token and sets the new password. The token
// is cleared in the same statement so it can be used once.
func (s *UserService) ResetPassword(token, newPassword string) (*model.User, error) {
	digest := crypto.HashToken(token)
	now := time.Now().UTC()

	u := model.User{}
	err := s.DB.Where("reset_token = ? AND reset_token_expiry > ?", digest, now).First(&u).Error
	if err != nil {
		if database.IsNotFound(err) {
			logger.Warning("Invalid or expired token used for password reset")
			return nil, ErrInvalidResetToken
		}
		return nil, err
	}

	hash, err := crypto.HashPasswordAsBcrypt(newPassword)
	if err != nil {
		return nil, err
	}
	result := s.DB.Model(&model.User{}).
		Where("id = ? AND reset_token = ? AND reset_token_expiry > ?", u.Id, digest, now).
		Updates(map[string]any{
			"password":           hash,
			"reset_token":        nil,
			"reset_token_expiry": nil,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidResetToken
	}

	logger.Infof("Password successfully reset for user ID: %d", u.Id)
	return &u, nil
}

// DoctorInput is the admin form for a new doctor account.
type DoctorInput struct {
	Name        string
	Email       string
	PhoneNumber string
	City        string
	Specialty   string
	Designation string
	Gender      string
}

// AddDoctor creates a doctor with a generated password and mails the
// credentials. The account is not kept if the mail cannot be sent.
func (s *UserService) AddDoctor(in DoctorInput) (*model.User, error) {
	password, err := random.Hex(generatedPasswordBytes)
	if err != nil {
		return nil, err
	}
	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return nil, err
	}

	doctor := &model.User{
		Name:        in.Name,
		Email:       normalizeEmail(in.Email),
		PhoneNumber: in.PhoneNumber,
		Password:    hash,
		Role:        model.RoleDoctor,
		City:        optional(in.City),
		Specialty:   optional(in.Specialty),
		Designation: optional(in.Designation),
		Gender:      optional(in.Gender),
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		exists, err := emailTaken(tx, doctor.Email)
		if err != nil {
			return err
		}
		if exists {
			return ErrUserExists
		}
		if err := tx.Create(doctor).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUserExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrUserExists) {
			logger.Errorf("Error registering doctor %s: %v", doctor.Email, err)
		}
		return nil, err
	}

	// mail is sent outside the transaction so a slow relay holds no connection
	body, err := renderMail(credentialsMail, map[string]string{
		"Name":     doctor.Name,
		"Email":    doctor.Email,
		"Password": password,
	})
	if err == nil {
		err = s.mailer.Send(doctor.Email, "Account Confirmation", body)
	}
	if err != nil {
		logger.Errorf("Error mailing credentials to doctor %s: %v", doctor.Email, err)
		if delErr := s.DB.Delete(&model.User{}, doctor.Id).Error; delErr != nil {
			logger.Errorf("Failed to remove doctor %s after mail failure: %v", doctor.Email, delErr)
		}
		return nil, err
	}

	logger.Infof("Doctor %s (%s) registered", doctor.Name, doctor.Email)
	return doctor, nil
}

// ClearExpiredResetTokens drops reset tokens whose expiry has passed.
func (s *UserService) ClearExpiredResetTokens() (int64, error) {
	result := s.DB.Model(&model.User{}).
		Where("reset_token IS NOT NULL AND reset_token_expiry <= ?", time.Now().UTC()).
		Updates(map[string]any{
			"reset_token":        nil,
			"reset_token_expiry": nil,
		})
	return result.RowsAffected, result.Error
}
