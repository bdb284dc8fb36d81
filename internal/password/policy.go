package password

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Rule names a single password requirement.
type Rule string

const (
	RuleRequiredLength         Rule = "required_length"
	RuleMaxLength              Rule = "max_length"
	RuleMaxBytes               Rule = "max_bytes"
	RuleRequireDigit           Rule = "require_digit"
	RuleRequireLowercase       Rule = "require_lowercase"
	RuleRequireUppercase       Rule = "require_uppercase"
	RuleRequireNonAlphanumeric Rule = "require_non_alphanumeric"
	RuleRequiredUniqueChars    Rule = "required_unique_chars"
)

// MaxBytes is the longest password bcrypt accepts, in UTF-8 bytes. It applies
// regardless of PolicyOptions.
const MaxBytes = 72

// Violation describes one failed rule.
type Violation struct {
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) Error() string {
	return v.Message
}

// PolicyOptions configures a Policy. Character classes are ASCII.
type PolicyOptions struct {
	MinLength              int
	MaxLength              int
	RequireDigit           bool
	RequireLowercase       bool
	RequireUppercase       bool
	RequireNonAlphanumeric bool
	RequiredUniqueChars    int
}

// DefaultPolicyOptions returns the stock rule set.
func DefaultPolicyOptions() PolicyOptions {
	return PolicyOptions{
		MinLength:              8,
		MaxLength:              30,
		RequireDigit:           true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireNonAlphanumeric: true,
		RequiredUniqueChars:    1,
	}
}

// Policy checks candidate passwords against PolicyOptions.
type Policy struct {
	opts PolicyOptions
}

// NewPolicy creates a policy.
func NewPolicy(opts PolicyOptions) *Policy {
	return &Policy{opts: opts}
}

// Validate returns every rule the password breaks, in rule order. A nil
// result means the password is acceptable.
func (p *Policy) Validate(password string) []Violation {
	var out []Violation
	add := func(rule Rule, format string, args ...any) {
		out = append(out, Violation{Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	length := utf8.RuneCountInString(password)
	if strings.TrimSpace(password) == "" || length < p.opts.MinLength {
		add(RuleRequiredLength, "password must be at least %d characters", p.opts.MinLength)
	}
	if p.opts.MaxLength > 0 && length > p.opts.MaxLength {
		add(RuleMaxLength, "password must be at most %d characters", p.opts.MaxLength)
	}
	if len(password) > MaxBytes {
		add(RuleMaxBytes, "password must be at most %d bytes", MaxBytes)
	}

	var hasDigit, hasLower, hasUpper, hasOther bool
	unique := make(map[rune]struct{}, length)
	for _, r := range password {
		unique[r] = struct{}{}
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		default:
			hasOther = true
		}
	}

	if p.opts.RequireNonAlphanumeric && !hasOther {
		add(RuleRequireNonAlphanumeric, "password must contain at least one non-alphanumeric character")
	}
	if p.opts.RequireDigit && !hasDigit {
		add(RuleRequireDigit, "password must contain at least one digit ('0'-'9')")
	}
	if p.opts.RequireLowercase && !hasLower {
		add(RuleRequireLowercase, "password must contain at least one lowercase letter ('a'-'z')")
	}
	if p.opts.RequireUppercase && !hasUpper {
		add(RuleRequireUppercase, "password must contain at least one uppercase letter ('A'-'Z')")
	}
	if p.opts.RequiredUniqueChars > 1 && len(unique) < p.opts.RequiredUniqueChars {
		add(RuleRequiredUniqueChars, "password must use at least %d different characters", p.opts.RequiredUniqueChars)
	}

	return out
}
