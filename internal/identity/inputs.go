package identity

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes
	maxPasswordLen = 72
)

var passwordRules = []validation.Rule{
	validation.Required,
	validation.Length(minPasswordLen, maxPasswordLen),
}

// SignupInput carries a password signup.
type SignupInput struct {
	Username string
	Password string
	Email    string
	FullName string
	Phone    string
}

// Validate checks field presence and shape.
func (in SignupInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.Length(3, 64)),
		validation.Field(&in.Password, passwordRules...),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.FullName, validation.Required, validation.Length(1, 128)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// normalize trims fields, lowercases the email and rewrites a present phone
// number to E.164.
func (in SignupInput) normalize(region string) (SignupInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := in.Validate(); err != nil {
		return SignupInput{}, err
	}
	if in.Phone != "" {
		phone, err := normalizePhone(in.Phone, region)
		if err != nil {
			return SignupInput{}, err
		}
		in.Phone = phone
	}
	return in, nil
}

func normalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("%w: phone: %v", ErrValidation, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: phone: not a valid number", ErrValidation)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ChangePasswordInput carries a password change for an account.
type ChangePasswordInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
}

func (in ChangePasswordInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.UserID, validation.Required),
		validation.Field(&in.CurrentPassword, validation.Required),
		validation.Field(&in.NewPassword, passwordRules...),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
