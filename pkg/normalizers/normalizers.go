// Package normalizers provides field normalization functions for duplicate scoring
package normalizers

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

const (
	Name     = "nname"
	Phone    = "nphone"
	Document = "ndocument"
	Email    = "nemail"
	Address  = "naddress"
)

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("digits_only", DigitsOnly)
	Register("strip_diacritics", StripDiacritics)
	Register(Name, NormalizeName)
	Register(Phone, NormalizePhone)
	Register(Document, NormalizeDocument)
	Register(Email, NormalizeEmail)
	Register(Address, NormalizeAddress)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value. Unknown names leave the value untouched.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// DigitsOnly keeps only ASCII digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// StripDiacritics decomposes s and drops combining marks ("São" -> "Sao").
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

var (
	connectives  = regexp.MustCompile(`\b(da|de|do|dos|das)\b`)
	nonAlnum     = regexp.MustCompile(`[^a-z0-9\s]`)
	multiSpace   = regexp.MustCompile(`\s+`)
	countryPhone = "55"
)

// NormalizeName folds a Brazilian personal name for comparison:
// lowercase, no diacritics, no "da/de/do/dos/das", ASCII alphanumerics only, single spaces.
func NormalizeName(s string) string {
	s = StripDiacritics(strings.ToLower(s))
	s = connectives.ReplaceAllString(s, "")
	s = nonAlnum.ReplaceAllString(s, "")
	// stripping punctuation can expose a connective ("d.a"), so remove once more
	s = connectives.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizePhone keeps digits and drops the "55" country code from 13-digit numbers.
func NormalizePhone(s string) string {
	digits := DigitsOnly(s)
	if strings.HasPrefix(digits, countryPhone) && len(digits) == 13 {
		return digits[2:]
	}
	return digits
}

// NormalizeDocument keeps the digits of a CPF/CNPJ.
func NormalizeDocument(s string) string {
	return DigitsOnly(s)
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeAddress lowercases, strips diacritics and collapses whitespace.
func NormalizeAddress(s string) string {
	s = StripDiacritics(strings.ToLower(s))
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// LastDigits returns the trailing n digits of s, or "" when s has fewer than n digits.
func LastDigits(s string, n int) string {
	digits := DigitsOnly(s)
	if len(digits) < n {
		return ""
	}
	return digits[len(digits)-n:]
}
