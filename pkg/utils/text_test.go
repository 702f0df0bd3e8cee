package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "ao so mi", Fold("Áo Sơ Mi"))
	assert.Equal(t, "dien thoai", Fold("Điện thoại"))
	assert.Equal(t, "cafe", Fold("Café"))
}

func TestMatchesKeyword(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		fields  []string
		want    bool
	}{
		{"plain keyword matches accented title", "Ao", []string{"Áo khoác", ""}, true},
		{"accented keyword matches plain text", "áo", []string{"ao khoac"}, true},
		{"matches description", "bike", []string{"Road racer", "Carbon BIKE frame"}, true},
		{"no match", "sofa", []string{"Chair", "Wooden"}, false},
		{"empty keyword", "  ", []string{"anything"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesKeyword(tt.keyword, tt.fields...))
		})
	}
}

func TestIsListingName(t *testing.T) {
	assert.True(t, IsListingName("iPhone 13 Pro (128GB) - like new!"))
	assert.True(t, IsListingName("Áo khoác nam"))
	assert.False(t, IsListingName("12345"))
	assert.False(t, IsListingName("Bike <script>"))
	assert.False(t, IsListingName("Deal $$$"))
}

func TestLooksLikeSpam(t *testing.T) {
	assert.True(t, LooksLikeSpam("aaaaaaaaa"))
	assert.True(t, LooksLikeSpam("Great bike!!!!! call now"))
	assert.True(t, LooksLikeSpam("zz zz zz"))
	assert.False(t, LooksLikeSpam("abcdefghijklmnopqrst"))
	assert.False(t, LooksLikeSpam("Selling for 1000000 firm, pickup only"))
	assert.False(t, LooksLikeSpam("good  condition,   barely used"))
}
