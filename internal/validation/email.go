package validation

import (
	"fmt"
	"regexp"

	"github.com/iudanet/tallysync/internal/models"
)

// EmailPattern определяет допустимый формат email.
// Упрощённая проверка: local@domain.tld, без пробелов.
var EmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	// MaxEmailLen максимальная длина email
	MaxEmailLen = 254
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 6
)

// ValidateEmail проверяет, что email соответствует требованиям
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if len(email) > MaxEmailLen {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLen)
	}

	if !EmailPattern.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}

	return nil
}

// ValidatePassword проверяет минимальные требования к паролю
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	return nil
}

// ValidateAccountClass проверяет класс аккаунта.
// Пустое значение допустимо — сервер подставит individual.
func ValidateAccountClass(class string) error {
	switch class {
	case "", models.ClassIndividual, models.ClassTeam:
		return nil
	default:
		return fmt.Errorf("account class must be %q or %q", models.ClassIndividual, models.ClassTeam)
	}
}
