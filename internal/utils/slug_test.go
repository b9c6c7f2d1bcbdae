package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "two words", in: "Peixes Frescos", want: "peixes-frescos"},
		{name: "accents", in: "Camarão Rosa", want: "camarao-rosa"},
		{name: "cedilla", in: "Açaí", want: "acai"},
		{name: "symbols dropped", in: "  Lula & Polvo!! ", want: "lula-polvo"},
		{name: "outer hyphens trimmed", in: "---Ostras---", want: "ostras"},
		{name: "digits kept", in: "Filé 100%", want: "file-100"},
		{name: "empty", in: "", want: ""},
		{name: "only symbols", in: "!!!", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateSlug(tt.in))
		})
	}
}

func TestGenerateSlugIsStable(t *testing.T) {
	once := GenerateSlug("Frutos do Mar")
	assert.Equal(t, once, GenerateSlug(once))
}

func TestIsValidSlug(t *testing.T) {
	assert.True(t, IsValidSlug("peixes-frescos"))
	assert.True(t, IsValidSlug("frutos-do-mar"))
	assert.False(t, IsValidSlug(""))
	assert.False(t, IsValidSlug("Peixes"))
	assert.False(t, IsValidSlug("-peixes"))
	assert.False(t, IsValidSlug("peixes frescos"))
}
