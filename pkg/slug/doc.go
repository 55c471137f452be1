// Package slug turns free text into URL-safe identifiers and validates
// tenant subdomains.
//
// Make folds diacritics with golang.org/x/text ("Escola São João" becomes
// "escola-sao-joao"), collapses everything else into the separator and can
// append a random suffix. Subdomain applies the subdomain rules on top:
// lowercase ASCII letters, digits and internal hyphens, 3 to 30 characters,
// not one of the reserved names. Humanize goes the other way for default
// display names.
package slug
