package utils

// Truncate returns at most n runes of text. Slicing by runes keeps
// multi-byte characters intact.
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(text) <= n {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// ErrorSnippet renders err truncated to n runes, for user-visible fallbacks.
func ErrorSnippet(err error, n int) string {
	if err == nil {
		return ""
	}
	return Truncate(err.Error(), n)
}
