package plate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidMercosul(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"ABC1D23", true},
		{"abc1d23", true},
		{"  ABC1D23\t", true},
		{"ABC1234", false},
		{"ABC-1D23", false},
		{"AB1D23", false},
		{"ABC1D234", false},
		{"1BC1D23", false},
		{"ABCDD23", false},
		{"", false},
		{"   ", false},
		{"ÁBC1D23", false},
	}
	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			assert.Equal(t, test.valid, IsValidMercosul(test.in))
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("lowercase", func(t *testing.T) {
		n, ok := Normalize("abc1d23")
		assert.True(t, ok)
		assert.Equal(t, "ABC1D23", n)
	})
	t.Run("whitespace", func(t *testing.T) {
		n, ok := Normalize(" rio2a18 ")
		assert.True(t, ok)
		assert.Equal(t, "RIO2A18", n)
	})
	t.Run("legacy", func(t *testing.T) {
		n, ok := Normalize("ABC1234")
		assert.False(t, ok)
		assert.Empty(t, n)
	})
	t.Run("empty", func(t *testing.T) {
		n, ok := Normalize("")
		assert.False(t, ok)
		assert.Empty(t, n)
	})
	t.Run("idempotent", func(t *testing.T) {
		for _, in := range []string{"abc1d23", "ABC1D23", "xyz9k00 ", "bad", "ABC1234"} {
			first, ok1 := Normalize(in)
			second, ok2 := Normalize(first)
			if ok1 {
				assert.True(t, ok2)
				assert.Equal(t, first, second)
				assert.Equal(t, IsValidMercosul(in), IsValidMercosul(first))
			} else {
				assert.False(t, ok2)
			}
		}
	})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("ABC1D23"))
	assert.ErrorIs(t, Validate(""), ErrRequired)
	assert.ErrorIs(t, Validate("  "), ErrRequired)
	assert.ErrorIs(t, Validate("ABC1234"), ErrInvalidFormat)
	assert.ErrorIs(t, Validate("AB"), ErrInvalidFormat)
}

func TestValidateWithMessage(t *testing.T) {
	assert.Empty(t, ValidateWithMessage("abc1d23"))
	assert.Equal(t, "plate is required", ValidateWithMessage(""))
	assert.Equal(t, ErrInvalidFormat.Error(), ValidateWithMessage("ABC1234"))
	assert.NotEqual(t, ValidateWithMessage(""), ValidateWithMessage("ABC1234"))
}

func TestClean(t *testing.T) {
	assert.Equal(t, "ABC1D23", Clean(" abc1d23 "))
	assert.Equal(t, "", Clean("   "))
}
