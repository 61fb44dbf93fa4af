package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies a sequence of password rules.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// DefaultPasswordValidator requires minLength characters and an uppercase letter or symbol.
// A positive minStrength adds a zxcvbn score floor.
func DefaultPasswordValidator(minLength, minStrength int) *PasswordValidator {
	if minLength <= 0 {
		minLength = 8
	}
	rules := []PasswordRule{MinLengthRule(minLength), RequireUpperOrSymbolRule()}
	if minStrength > 0 {
		rules = append(rules, RequirePasswordStrengthRule(minStrength))
	}
	return NewPasswordValidator(rules...)
}

// Validate executes all rules and returns the first encountered violation.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// RequireUpperOrSymbolRule ensures the password contains an uppercase letter or a symbol.
func RequireUpperOrSymbolRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsUpper(r) || unicode.IsSymbol(r) || unicode.IsPunct(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "upper_or_symbol",
			Message: "password must include an uppercase letter or a symbol",
		}
	})
}

// RequirePasswordStrengthRule rejects passwords whose zxcvbn score is below min (0..4).
func RequirePasswordStrengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if zxcvbn.PasswordStrength(password, nil).Score < min {
			return &PasswordValidationError{
				Code:    "weak",
				Message: "password is too easy to guess",
			}
		}
		return nil
	})
}
