package review

import (
	"path/filepath"
	"strings"
	"unicode"
)

var extLanguages = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript/React",
	".jsx":   "JavaScript/React",
	".rs":    "Rust",
	".java":  "Java",
	".rb":    "Ruby",
	".cpp":   "C++",
	".cc":    "C++",
	".c":     "C",
	".h":     "C/C++",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".scala": "Scala",
	".sql":   "SQL",
	".sh":    "Shell",
	".yaml":  "YAML",
	".yml":   "YAML",
	".json":  "JSON",
	".tf":    "Terraform",
	".proto": "Protocol Buffers",
	".md":    "Markdown",
}

// ProgrammingLanguage maps a file path to a language name for prompt hints.
// Unknown extensions return the empty string.
func ProgrammingLanguage(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}

// DetectNaturalLanguage guesses the natural language of PR prose from its
// dominant script so findings come back in the author's language. The guess
// only has to be good enough for a prompt hint; Latin-script text is
// reported as English.
func DetectNaturalLanguage(text string) string {
	var han, kana, hangul, cyrillic, letters int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		}
	}
	if letters == 0 {
		return "English"
	}
	threshold := letters / 5
	switch {
	case kana > 0 && han+kana > threshold:
		return "Japanese"
	case hangul > threshold:
		return "Korean"
	case han > threshold:
		return "Chinese"
	case cyrillic > threshold:
		return "Russian"
	}
	return "English"
}
