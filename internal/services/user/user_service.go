package user

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/pixvest/backend/internal/models"
	"github.com/pixvest/backend/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrUnknownReferralCode = errors.New("unknown referral code")
	ErrInvalidCredentials  = errors.New("invalid email or password")
)

// UserService handles registration, authentication and referral linking
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Register creates a user, optionally linked into the referral forest via
// the referrer's code. The referral pointer is a weak parent reference; the
// chain is only ever walked iteratively with a depth bound.
func (s *UserService) Register(email, username, password, referralCode string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var existing models.User
	err := s.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error checking email: %w", err)
	}

	var referredBy *uuid.UUID
	if referralCode != "" {
		var referrer models.User
		if err := s.db.Where("referral_code = ?", referralCode).First(&referrer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUnknownReferralCode
			}
			return nil, fmt.Errorf("error finding referrer: %w", err)
		}
		referredBy = &referrer.ID
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		ReferralCode: s.generateReferralCode(username),
		ReferredBy:   referredBy,
		TradingMode:  models.TradingModeAuto,
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// generateReferralCode builds a unique referral code from the username
func (s *UserService) generateReferralCode(username string) string {
	base := slug.Make(username)
	if base == "" {
		base = "user"
	}

	code := base
	for i := 0; ; i++ {
		if i > 0 {
			code = fmt.Sprintf("%s-%s", base, strings.ToLower(uuid.New().String()[:6]))
		}
		var count int64
		s.db.Model(&models.User{}).Where("referral_code = ?", code).Count(&count)
		if count == 0 {
			return code
		}
	}
}

// Authenticate verifies email and password and returns the user
func (s *UserService) Authenticate(email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GetUser returns a user by id
func (s *UserService) GetUser(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	return &user, nil
}
