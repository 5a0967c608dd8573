package domain

const (
	maxTitleLen    = 50
	titleKeepRunes = 47
)

// DeriveTitle names a conversation after its first user message: the content itself
// when it fits in 50 characters, otherwise the first 47 characters followed by "...".
func DeriveTitle(content string) string {
	r := []rune(content)
	if len(r) <= maxTitleLen {
		return content
	}
	return string(r[:titleKeepRunes]) + "..."
}
