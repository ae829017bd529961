package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_generatePIN(t *testing.T) {
	for i := 0; i < 100; i++ {
		pin, err := generatePIN()
		require.NoError(t, err)
		assert.True(t, ValidPIN(pin), "generated %q", pin)
	}
}

func Test_hashPIN(t *testing.T) {
	h := hashPIN("secret", "123456")
	assert.Equal(t, h, hashPIN("secret", "123456"))
	assert.NotEqual(t, h, hashPIN("secret", "123457"))
	assert.NotEqual(t, h, hashPIN("other", "123456"))
	assert.NotContains(t, h, "123456")
}

func TestValidPIN(t *testing.T) {
	tests := []struct {
		pin  string
		want bool
	}{
		{pin: "000000", want: true},
		{pin: "987654", want: true},
		{pin: "12345"},
		{pin: "1234567"},
		{pin: "12a456"},
		{pin: " 123456"},
		{pin: ""},
	}
	for _, tt := range tests {
		t.Run(tt.pin, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPIN(tt.pin))
		})
	}
}
