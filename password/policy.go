package password

import "unicode"

const (
	// MaxScore is the best score [Score] can return.
	MaxScore = 5
	// MaxLength is the bcrypt input limit in bytes.
	MaxLength = 72
)

// Rule names reported by [Policy.Check].
const (
	RuleMinLength = "min_length"
	RuleMaxLength = "max_length"
	RuleLowercase = "lowercase"
	RuleUppercase = "uppercase"
	RuleDigit     = "digit"
	RuleSpecial   = "special"
	RuleScore     = "score"
)

type classes struct {
	lower, upper, digit, special bool
}

func classify(password string) classes {
	var c classes
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsDigit(r):
			c.digit = true
		case unicode.IsSpace(r):
		default:
			c.special = true
		}
	}
	return c
}

// Score awards one point each for reaching eight characters and for
// containing a lower-case letter, an upper-case letter, a digit and a symbol.
func Score(password string) int {
	c := classify(password)
	score := 0
	if len([]rune(password)) >= 8 {
		score++
	}
	for _, ok := range []bool{c.lower, c.upper, c.digit, c.special} {
		if ok {
			score++
		}
	}
	return score
}

// Policy is the strength requirement for new passwords.
type Policy struct {
	MinLength         int
	MinScore          int
	RequireAllClasses bool
}

// Check returns the rules password fails, or nil when it is acceptable.
func (p Policy) Check(password string) []string {
	var failed []string
	if len([]rune(password)) < p.MinLength {
		failed = append(failed, RuleMinLength)
	}
	if len(password) > MaxLength {
		failed = append(failed, RuleMaxLength)
	}
	if p.RequireAllClasses {
		c := classify(password)
		if !c.lower {
			failed = append(failed, RuleLowercase)
		}
		if !c.upper {
			failed = append(failed, RuleUppercase)
		}
		if !c.digit {
			failed = append(failed, RuleDigit)
		}
		if !c.special {
			failed = append(failed, RuleSpecial)
		}
	}
	if Score(password) < p.MinScore {
		failed = append(failed, RuleScore)
	}
	return failed
}
