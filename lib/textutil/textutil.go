package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// lowercases and strips punctuation and whitespace so that
// "O'Brien,  Dennis" and "obrien dennis" key identically
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")

	out := strings.Builder{}
	for _, c := range name {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			out.WriteRune(c)
		}
	}
	return out.String()
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.Trim(email, " \n\t"))
}

// keeps the last 10 digits, dropping country codes and formatting
func NormalizePhone(phone string) string {
	digits := strings.Builder{}
	for _, c := range phone {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	d := digits.String()
	if len(d) > 10 {
		d = d[len(d)-10:]
	}
	return d
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}
