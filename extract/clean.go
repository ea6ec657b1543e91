package extract

import "strings"

// Clean normalizes raw extracted text. It strips null characters and
// byte-order marks, drops bare page numbers (digit-only lines of up to
// three characters) and fragment lines shorter than three characters,
// and trims surrounding whitespace from each surviving line.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	// Remove common PDF artifacts
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\uFEFF", "")

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		// Skip lines that are just numbers (likely page numbers)
		if isDigits(line) && len(line) <= 3 {
			continue
		}
		// Skip very short lines that are likely headers/footers
		if len(line) < 3 {
			continue
		}
		cleaned = append(cleaned, line)
	}

	return strings.Join(cleaned, "\n")
}

// isDigits returns true if s is non-empty and contains only ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
