package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/redmonkez12/bookshelf/internal/config"
)

// PasswordPolicy is the configurable shape rule for new passwords
type PasswordPolicy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPasswordPolicy is 8-20 characters with an uppercase letter, a digit
// and a special character
var DefaultPasswordPolicy = PasswordPolicy{
	MinLength:      8,
	MaxLength:      20,
	RequireUpper:   true,
	RequireDigit:   true,
	RequireSpecial: true,
}

func PolicyFromConfig(cfg config.PasswordConfig) PasswordPolicy {
	return PasswordPolicy{
		MinLength:      cfg.MinLength,
		MaxLength:      cfg.MaxLength,
		RequireUpper:   cfg.RequireUpper,
		RequireDigit:   cfg.RequireDigit,
		RequireSpecial: cfg.RequireSpecial,
	}
}

// Allows reports whether password satisfies every rule of the policy
func (p PasswordPolicy) Allows(password string) bool {
	n := utf8.RuneCountInString(password)
	if n < p.MinLength || (p.MaxLength > 0 && n > p.MaxLength) {
		return false
	}

	var hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	return (!p.RequireUpper || hasUpper) &&
		(!p.RequireDigit || hasDigit) &&
		(!p.RequireSpecial || hasSpecial)
}

// Describe renders the policy as the message shown when it is violated
func (p PasswordPolicy) Describe() string {
	var b strings.Builder
	if p.MaxLength > 0 {
		fmt.Fprintf(&b, "Password must be %d-%d characters", p.MinLength, p.MaxLength)
	} else {
		fmt.Fprintf(&b, "Password must be at least %d characters", p.MinLength)
	}

	var extras []string
	if p.RequireUpper {
		extras = append(extras, "1 uppercase")
	}
	if p.RequireDigit {
		extras = append(extras, "1 number")
	}
	if p.RequireSpecial {
		extras = append(extras, "1 special char")
	}
	if len(extras) > 0 {
		b.WriteString(" with ")
		b.WriteString(strings.Join(extras, ", "))
	}

	return b.String()
}
