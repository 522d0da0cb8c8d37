package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	m.Run()
}

func TestValidatePasswordStrength(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		want     Kind
	}{
		{name: "ok", password: "Str0ng!Pass"},
		{name: "too short", password: "Ab1!", want: KindTooShort},
		{name: "too long", password: "Aa1!" + strings.Repeat("x", 125), want: KindTooLong},
		{name: "no uppercase", password: "weak1!pass", want: KindNoUppercase},
		{name: "no lowercase", password: "WEAK1!PASS", want: KindNoLowercase},
		{name: "no number", password: "Weak!Pass", want: KindNoNumber},
		{name: "no special", password: "Weak1Pass", want: KindNoSpecialChar},
		{name: "short wins over classes", password: "abc", want: KindTooShort},
		{name: "space counts as special", password: "Weak1 Pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password, policy)
			if tt.want == 0 {
				assert.NoError(t, err)
				return
			}
			kind, ok := KindOf(err)
			require.True(t, ok, "expected auth error, got %v", err)
			assert.Equal(t, tt.want, kind)
			assert.True(t, kind.IsPasswordPolicy())
		})
	}
}

func TestValidatePasswordStrength_Toggles(t *testing.T) {
	policy := PasswordPolicy{MinLength: 4}
	assert.NoError(t, ValidatePasswordStrength("abcd", policy))

	policy.RequireNumber = true
	kind, _ := KindOf(ValidatePasswordStrength("abcd", policy))
	assert.Equal(t, KindNoNumber, kind)
}

func TestValidatePasswordStrength_CountsRunes(t *testing.T) {
	policy := PasswordPolicy{MinLength: 8}
	assert.Error(t, ValidatePasswordStrength("ääää", policy))
	assert.NoError(t, ValidatePasswordStrength("ääääääää", policy))
}

func TestHashPassword_RejectsWeakPassword(t *testing.T) {
	h, err := HashPassword("short", DefaultPasswordPolicy())
	assert.Empty(t, h)
	assert.True(t, errors.Is(err, &Error{Kind: KindTooShort}))
}

func TestHashAndVerify(t *testing.T) {
	const pw = "Corr3ct!Horse"
	h, err := HashPassword(pw, DefaultPasswordPolicy())
	require.NoError(t, err)
	assert.NotEqual(t, pw, h)

	ok, err := VerifyPassword(pw, h)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, other := range []string{"", "corr3ct!horse", pw + " ", "Corr3ct!Hors"} {
		ok, err := VerifyPassword(other, h)
		require.NoError(t, err)
		assert.False(t, ok, other)
	}

	h2, err := HashPassword(pw, DefaultPasswordPolicy())
	require.NoError(t, err)
	assert.NotEqual(t, h, h2, "hashes must be salted")
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	ok, err := VerifyPassword("whatever", "not-a-hash")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestDummyHash(t *testing.T) {
	h := DummyHash()
	assert.Equal(t, h, DummyHash(), "generated once")

	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	assert.Equal(t, bcryptCost, cost)

	ok, err := VerifyPassword("Str0ng!pass", h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		want     int
	}{
		{"", 0},
		{"abc", 10},
		{"abcdefgh", 25 + 10 + 10},
		{"Abcdefgh1!", 25 + 10 + 10 + 10 + 15 + 10},
		{"Abcdefghijk1!x", 35 + 10 + 10 + 10 + 15 + 10},
		{"Abcdefghijklmnop1!", 45 + 10 + 10 + 10 + 15 + 10},
		{"password", max(25+10-30, 0)},
		{"MyPassword123456!", 45 + 10 + 10 + 10 + 15 + 10 - 30},
		{"qwerty", 0},
		{"QWERTY", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PasswordStrength(tt.password), tt.password)
	}
}

func TestPasswordStrength_Bounds(t *testing.T) {
	for _, pw := range []string{"", "a", "Zz9!Zz9!Zz9!Zz9!Zz9!abcdefgh", strings.Repeat("x", 300)} {
		s := PasswordStrength(pw)
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, 100)
	}
}

func TestGenerateResetToken(t *testing.T) {
	a, err := GenerateResetToken()
	require.NoError(t, err)
	b, err := GenerateResetToken()
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
