package password

import (
	"reflect"
	"testing"
)

func TestScore(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcdefgh", 2},
		{"Abcdefgh", 3},
		{"Abcdefg1", 4},
		{"Abcdef1!", 5},
		{"password", 2},
	}
	for _, tc := range cases {
		if got := Score(tc.in); got != tc.want {
			t.Fatalf("Score(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestPolicyCheck(t *testing.T) {
	p := Policy{MinLength: 8, MinScore: 3, RequireAllClasses: true}

	if failed := p.Check("Abcdef1!"); failed != nil {
		t.Fatalf("expected strong password to pass, got %v", failed)
	}

	got := p.Check("password")
	want := []string{RuleUppercase, RuleDigit, RuleSpecial, RuleScore}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Check(password) = %v, want %v", got, want)
	}

	if failed := p.Check("Ab1!"); len(failed) == 0 || failed[0] != RuleMinLength {
		t.Fatalf("expected min_length first, got %v", failed)
	}
}

func TestPolicyScoreOnly(t *testing.T) {
	p := Policy{MinLength: 8, MinScore: 3}
	if failed := p.Check("Abcdefgh"); failed != nil {
		t.Fatalf("score 3 password should pass score-only policy, got %v", failed)
	}
	if failed := p.Check("abcdefgh"); !reflect.DeepEqual(failed, []string{RuleScore}) {
		t.Fatalf("expected score failure, got %v", failed)
	}
}
