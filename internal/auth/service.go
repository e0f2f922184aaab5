package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dailydrop/server/internal/apierr"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/repo"
)

// AuthService orchestrates authentication operations
type AuthService struct {
	jwtService *JWTService
	userRepo   repo.UserRepo
}

// NewAuthService creates a new auth service
func NewAuthService(jwtService *JWTService, userRepo repo.UserRepo) *AuthService {
	return &AuthService{
		jwtService: jwtService,
		userRepo:   userRepo,
	}
}

// Login checks password and OTP and issues a session token
func (s *AuthService) Login(ctx context.Context, email, password, otp string) (*model.User, string, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, "", errUnknownLogin
		}
		return nil, "", err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, "", errInvalidCredentials
	}
	if user.PasswordChangeCounter == 0 {
		return nil, "", errResetFirst
	}
	if !VerifyOTP(user, otp) {
		return nil, "", errInvalidOTP
	}

	token, err := s.jwtService.Issue(user.ID, user.PasswordChangeCounter)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return user, token, nil
}

// ResetPassword replaces the password after OTP verification. The counter
// bump revokes every token issued before the reset.
func (s *AuthService) ResetPassword(ctx context.Context, email, otp, password, confirmPassword string) (*model.User, string, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, "", errUnknownEmail
		}
		return nil, "", err
	}
	if password != confirmPassword {
		return nil, "", apierr.ErrBadRequest.WithMessage("Passwords do not match")
	}
	if err := ValidatePassword(password); err != nil {
		return nil, "", err
	}
	if !VerifyOTP(user, otp) {
		return nil, "", errInvalidOTP
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	counter, err := s.userRepo.UpdatePassword(ctx, user.ID, hash)
	if err != nil {
		return nil, "", err
	}
	user.PasswordHash = hash
	user.PasswordChangeCounter = counter

	token, err := s.jwtService.Issue(user.ID, counter)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return user, token, nil
}
