package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "short content is kept",
			content: "What is 2+2?",
			want:    "What is 2+2?",
		},
		{
			name:    "exactly fifty characters is kept",
			content: strings.Repeat("a", 50),
			want:    strings.Repeat("a", 50),
		},
		{
			name:    "fifty one characters is truncated",
			content: strings.Repeat("b", 51),
			want:    strings.Repeat("b", 47) + "...",
		},
		{
			name:    "multibyte characters count as one",
			content: strings.Repeat("é", 60),
			want:    strings.Repeat("é", 47) + "...",
		},
		{
			name:    "empty content",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveTitle(tt.content)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), 50)
		})
	}
}

func TestDeriveTitleLengthIsExactlyFiftyWhenTruncated(t *testing.T) {
	for n := 51; n < 200; n += 17 {
		got := DeriveTitle(strings.Repeat("x", n))
		assert.Equal(t, 50, utf8.RuneCountInString(got), "content length %d", n)
		assert.True(t, strings.HasSuffix(got, "..."))
	}
}
