package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	catalogdomain "github.com/paratel/numlease/internal/catalog/domain"
)

func TestExtractCode_DefaultPattern(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain code", "Your verification code is 482913", "482913"},
		{"four digits", "Code: 1234", "1234"},
		{"first match wins", "Use 5678 or 9012", "5678"},
		{"no code", "Welcome to our service!", ""},
		{"digits embedded in longer run", "order 1234567890 confirmed", ""},
		{"empty text", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.text, catalogdomain.DefaultCodePattern))
		})
	}
}

func TestExtractCode_CustomPattern(t *testing.T) {
	got := ExtractCode("G-48291 is your code", `G-\d{5}`)
	assert.Equal(t, "G-48291", got)
}

func TestExtractCode_BadPatternFallsBack(t *testing.T) {
	got := ExtractCode("your code is 4829", `([invalid`)
	assert.Equal(t, "4829", got)
}
