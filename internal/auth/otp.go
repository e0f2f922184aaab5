package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/dailydrop/server/internal/apierr"
	"github.com/dailydrop/server/internal/mail"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/repo"
)

const (
	otpMin      = 10000
	otpSpan     = 90000
	mailTimeout = 30 * time.Second
)

var (
	errInvalidCredentials = apierr.ErrBadRequest.WithMessage("Invalid email or password")
	errUnknownLogin       = apierr.ErrNotFound.WithMessage("Invalid email or password")
	errResetFirst         = apierr.ErrBadRequest.WithMessage("Reset your password before logging in with OTP")
	errUnknownEmail       = apierr.ErrNotFound.WithMessage("No user with this email was found")
	errOTPCooldown        = apierr.ErrRateLimited.WithMessage("Please wait a minute before requesting another OTP")
	errInvalidOTP         = apierr.ErrBadRequest.WithMessage("Invalid OTP")
)

// Mailer delivers OTP mails
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// OTPService issues one-time codes by mail
type OTPService struct {
	users    repo.UserRepo
	otps     repo.OtpRepo
	mailer   Mailer
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time
	generate func() (string, error)
	inflight sync.WaitGroup
}

// NewOTPService creates a new OTP service
func NewOTPService(users repo.UserRepo, otps repo.OtpRepo, mailer Mailer, cooldown time.Duration, logger *slog.Logger) *OTPService {
	return &OTPService{
		users:    users,
		otps:     otps,
		mailer:   mailer,
		cooldown: cooldown,
		logger:   logger,
		now:      time.Now,
		generate: generateOTPCode,
	}
}

// RequestLoginOTP checks the password and mails a login code. Users who
// never reset their initial password are turned away.
func (s *OTPService) RequestLoginOTP(ctx context.Context, email, password string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errUnknownLogin
		}
		return err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return errInvalidCredentials
	}
	if user.PasswordChangeCounter == 0 {
		return errResetFirst
	}

	code, err := s.issue(ctx, user)
	if err != nil {
		return err
	}
	s.dispatch(ctx, loginMail(user.Email, code))
	return nil
}

// RequestResetOTP mails a password reset code
func (s *OTPService) RequestResetOTP(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errUnknownEmail
		}
		return err
	}

	code, err := s.issue(ctx, user)
	if err != nil {
		return err
	}
	s.dispatch(ctx, resetMail(user.Email, user.FullName, code))
	return nil
}

func (s *OTPService) issue(ctx context.Context, user *model.User) (string, error) {
	now := s.now()
	if user.LastOTPSentAt != nil && now.Sub(*user.LastOTPSentAt) < s.cooldown {
		return "", errOTPCooldown
	}
	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	if err := s.otps.SetOTP(ctx, user.ID, code, now); err != nil {
		return "", err
	}
	return code, nil
}

// dispatch sends msg in the background. Failures are logged only.
func (s *OTPService) dispatch(ctx context.Context, msg mail.Message) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
		defer cancel()
		if err := s.mailer.Send(sendCtx, msg); err != nil {
			s.logger.Error("otp mail failed",
				slog.String("to", maskEmail(msg.To)),
				slog.String("subject", msg.Subject),
				slog.Any("error", err),
			)
		}
	}()
}

// Wait blocks until all pending OTP mails have been handed off
func (s *OTPService) Wait() {
	s.inflight.Wait()
}

// VerifyOTP reports whether code matches the user's outstanding OTP
func VerifyOTP(user *model.User, code string) bool {
	if user.OTP == nil || *user.OTP == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*user.OTP), []byte(code)) == 1
}

func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+otpMin), nil
}

func loginMail(to, code string) mail.Message {
	return mail.Message{
		To:      to,
		Subject: "OTP for Example Login",
		Text:    fmt.Sprintf("Please use OTP: %s to login to your Example account.\n", code),
		HTML:    fmt.Sprintf("<p>Please use OTP: <b>%s</b> to login to your Example account.</p>", code),
	}
}

func resetMail(to, fullName, code string) mail.Message {
	return mail.Message{
		To:      to,
		Subject: "Code for password reset - Example",
		Text:    fmt.Sprintf("Dear %s!\nPlease use OTP: %s to change your password on Example.", fullName, code),
		HTML:    fmt.Sprintf("<p>Dear %s!</p><p>Please use OTP: <b>%s</b> to change your password on Example.</p>", html.EscapeString(fullName), code),
	}
}

// maskEmail keeps the first character and the domain, e.g. j***@example.com
func maskEmail(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			if i <= 1 {
				return "*" + email[i:]
			}
			return email[:1] + "***" + email[i:]
		}
	}
	return "****"
}
