package rbac

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCaser uppercases the first letter of each word and leaves the
// rest of the word untouched.
var titleCaser = cases.Title(language.Und, cases.NoLower)

// Camelize converts a dash-separated token to its studly-caps form:
// "user-add" becomes "UserAdd". The transform is directional: the actual
// request value is canonicalized before list membership tests, expected
// values never are.
func Camelize(s string) string {
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "-") {
		return titleCaser.String(s)
	}
	return strings.ReplaceAll(titleCaser.String(s), "-", "")
}
