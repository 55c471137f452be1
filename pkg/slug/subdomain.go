package slug

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	SubdomainMinLength = 3
	SubdomainMaxLength = 30
)

var (
	ErrSubdomainTooShort = errors.New("slug: subdomain must have at least 3 characters")
	ErrSubdomainTooLong  = errors.New("slug: subdomain must have at most 30 characters")
	ErrSubdomainInvalid  = errors.New("slug: subdomain may contain only lowercase letters, digits and internal hyphens")
	ErrSubdomainReserved = errors.New("slug: subdomain is reserved")
)

// ReservedSubdomains cannot be claimed by tenants.
var ReservedSubdomains = []string{
	"www", "api", "admin", "app", "mail", "ftp", "blog",
	"support", "help", "docs", "status", "test", "dev",
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

// IsReserved reports whether s is a reserved subdomain.
func IsReserved(s string) bool {
	return slices.Contains(ReservedSubdomains, strings.ToLower(strings.TrimSpace(s)))
}

// ValidateSubdomain checks s as given, without normalizing it.
func ValidateSubdomain(s string) error {
	switch {
	case len(s) < SubdomainMinLength:
		return ErrSubdomainTooShort
	case len(s) > SubdomainMaxLength:
		return ErrSubdomainTooLong
	case !subdomainPattern.MatchString(s):
		return ErrSubdomainInvalid
	case IsReserved(s):
		return ErrSubdomainReserved
	}
	return nil
}

// Subdomain normalizes raw with Make and validates the result.
func Subdomain(raw string) (string, error) {
	s := Make(raw, MaxLength(SubdomainMaxLength))
	if err := ValidateSubdomain(s); err != nil {
		return "", err
	}
	return s, nil
}

// Humanize turns a slug back into a title-cased display name,
// "escola-azul" becoming "Escola Azul".
func Humanize(s string) string {
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' }), " ")
	return cases.Title(language.BrazilianPortuguese).String(s)
}
