package core

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail is the registration-grade email syntax check.
func IsValidEmail(text string) bool {
	return emailPattern.MatchString(strings.TrimSpace(text))
}

// looksLikeEmail is the lenient check used by login: the server decides the rest.
func looksLikeEmail(text string) bool {
	return strings.Contains(text, "@") && strings.Contains(text, ".")
}

// PasswordCheck is the outcome of a password policy evaluation.
type PasswordCheck struct {
	IsValid bool
	Message string
}

// PasswordPolicy decides whether a password is strong enough to register with.
type PasswordPolicy interface {
	Validate(password string) PasswordCheck
}

// PasswordPolicyFunc adapts a function to PasswordPolicy.
type PasswordPolicyFunc func(password string) PasswordCheck

func (f PasswordPolicyFunc) Validate(password string) PasswordCheck { return f(password) }

// DefaultPasswordPolicy requires MinLength characters with upper, lower and digit.
type DefaultPasswordPolicy struct {
	MinLength int
}

func (p DefaultPasswordPolicy) Validate(password string) PasswordCheck {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = 8
	}
	if strings.TrimSpace(password) == "" {
		return PasswordCheck{Message: "La contraseña es requerida"}
	}
	if utf8.RuneCountInString(password) < minLen {
		return PasswordCheck{Message: fmt.Sprintf("La contraseña debe tener al menos %d caracteres", minLen)}
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return PasswordCheck{Message: "La contraseña debe contener al menos una mayúscula"}
	}
	if !lower {
		return PasswordCheck{Message: "La contraseña debe contener al menos una minúscula"}
	}
	if !digit {
		return PasswordCheck{Message: "La contraseña debe contener al menos un número"}
	}
	return PasswordCheck{IsValid: true}
}
