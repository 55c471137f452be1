// Package sanitizer cleans user input before it is stored.
//
// Helpers are plain string functions that can be chained with Apply or
// stored as a pipeline with Compose:
//
//	cleanName := sanitizer.Compose(sanitizer.SingleLine, sanitizer.MaxLength(100))
//	name := cleanName(input.Name)
package sanitizer
