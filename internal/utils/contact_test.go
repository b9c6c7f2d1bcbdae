package utils

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactURL(t *testing.T) {
	link := ContactURL("5511999999999", "Salmão Fresco", "PEI001")

	require.True(t, strings.HasPrefix(link, "https://wa.me/5511999999999?text="))
	assert.NotContains(t, link, "+")
	assert.Contains(t, link, "%20")

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	text := parsed.Query().Get("text")
	assert.Contains(t, text, "Nome: Salmão Fresco")
	assert.Contains(t, text, "Código: PEI001")
}

func TestNormalizeImageURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://drive.google.com/file/d/abc_123-X/view?usp=sharing", want: "https://drive.google.com/uc?export=view&id=abc_123-X"},
		{in: "https://drive.google.com/open?id=XYZ789", want: "https://drive.google.com/uc?export=view&id=XYZ789"},
		{in: "https://cdn.example.com/salmao.jpg", want: "https://cdn.example.com/salmao.jpg"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeImageURL(tt.in), tt.in)
	}
}
