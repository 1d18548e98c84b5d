package resource

import (
	"fmt"
	"strings"
)

// Language is a normalized language code naming a resource directory.
type Language string

const (
	English Language = "eng"
	Spanish Language = "spa"
	Catalan Language = "cat"
)

var aliases = map[string]Language{
	"eng": English, "en": English, "english": English,
	"spa": Spanish, "es": Spanish, "spanish": Spanish, "español": Spanish,
	"cat": Catalan, "ca": Catalan, "catalan": Catalan, "català": Catalan,
}

// Supported lists every language with resources shipped in data/.
func Supported() []Language {
	return []Language{English, Spanish, Catalan}
}

// ParseLanguage normalizes codes and names such as "EN" or "spanish".
func ParseLanguage(s string) (Language, error) {
	if l, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
}
