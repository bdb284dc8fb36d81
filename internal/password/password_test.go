package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// Hasher Tests
// ============================================================================

func TestNewHasher_CostBounds(t *testing.T) {
	_, err := NewHasher(bcrypt.MinCost - 1)
	assert.Error(t, err)
	_, err = NewHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)

	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestHasher_RoundTrip(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := h.Hash("Secret123!")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123!", hash)

	assert.Equal(t, VerifySuccess, h.Verify(hash, "Secret123!"))
	assert.Equal(t, VerifyFailed, h.Verify(hash, "Secret123?"))
	assert.Equal(t, VerifyFailed, h.Verify(hash, ""))
}

func TestHasher_DistinctSalts(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	a, err := h.Hash("Secret123!")
	require.NoError(t, err)
	b, err := h.Hash("Secret123!")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHasher_RehashOnCostChange(t *testing.T) {
	old, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	hash, err := old.Hash("Secret123!")
	require.NoError(t, err)

	current, err := NewHasher(bcrypt.MinCost + 1)
	require.NoError(t, err)

	assert.Equal(t, VerifySuccessRehashNeeded, current.Verify(hash, "Secret123!"))
	assert.Equal(t, VerifyFailed, current.Verify(hash, "wrong"))
}

func TestHasher_MalformedHash(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	assert.Equal(t, VerifyFailed, h.Verify("", "Secret123!"))
	assert.Equal(t, VerifyFailed, h.Verify("not-a-bcrypt-hash", "Secret123!"))
}

// ============================================================================
// Policy Tests
// ============================================================================

func rules(vs []Violation) []Rule {
	out := make([]Rule, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Rule)
	}
	return out
}

func TestPolicy_Validate(t *testing.T) {
	p := NewPolicy(DefaultPolicyOptions())

	tests := []struct {
		name     string
		password string
		want     []Rule
	}{
		{"valid", "Secret123!", nil},
		{"short but complete", "Se1!", []Rule{RuleRequiredLength}},
		{"whitespace only", "          ", []Rule{
			RuleRequiredLength, RuleRequireDigit, RuleRequireLowercase, RuleRequireUppercase,
		}},
		{"too long", "Secret123!Secret123!Secret123!x", []Rule{RuleMaxLength}},
		{"no symbol", "Secret1234", []Rule{RuleRequireNonAlphanumeric}},
		{"no digit", "Secret!!!!", []Rule{RuleRequireDigit}},
		{"no lowercase", "SECRET123!", []Rule{RuleRequireLowercase}},
		{"no uppercase", "secret123!", []Rule{RuleRequireUppercase}},
		{"non-ascii counts as symbol", "Secret123é", nil},
		{"multibyte over bcrypt limit", "Aa1!" + strings.Repeat("é", 6) + strings.Repeat("😀", 20), []Rule{RuleMaxBytes}},
		{"empty", "", []Rule{
			RuleRequiredLength, RuleRequireNonAlphanumeric, RuleRequireDigit, RuleRequireLowercase, RuleRequireUppercase,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Validate(tt.password)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, rules(got))
		})
	}
}

func TestPolicy_ViolationNamesClass(t *testing.T) {
	p := NewPolicy(DefaultPolicyOptions())

	got := p.Validate("secret123!")

	require.Len(t, got, 1)
	assert.Equal(t, RuleRequireUppercase, got[0].Rule)
	assert.Contains(t, got[0].Message, "uppercase")
	assert.Equal(t, got[0].Message, got[0].Error())
}

func TestPolicy_UniqueChars(t *testing.T) {
	opts := DefaultPolicyOptions()
	opts.RequiredUniqueChars = 6
	p := NewPolicy(opts)

	assert.Equal(t, []Rule{RuleRequiredUniqueChars}, rules(p.Validate("Aa1!Aa1!Aa1!")))
	assert.Empty(t, p.Validate("Secret123!"))
}

func TestPolicy_RelaxedOptions(t *testing.T) {
	p := NewPolicy(PolicyOptions{MinLength: 4})

	assert.Empty(t, p.Validate("abcd"))
	assert.Equal(t, []Rule{RuleRequiredLength}, rules(p.Validate("abc")))
}

func TestPolicy_ByteCapIgnoresMaxLength(t *testing.T) {
	p := NewPolicy(PolicyOptions{MinLength: 4})

	assert.Empty(t, p.Validate(strings.Repeat("a", MaxBytes)))
	assert.Equal(t, []Rule{RuleMaxBytes}, rules(p.Validate(strings.Repeat("a", MaxBytes+1))))
}
