// Package validator validates request DTOs with go-playground/validator and
// reports failures as handler.ValidationError, keyed by the JSON field name.
//
// Besides the stock tags it registers:
//
//	subdomain  tenant subdomain rules from package slug
//	hexcolor6  "#" followed by six uppercase hex digits
//	objectid   24-character hex MongoDB ObjectID
//
// Use Validator.Struct directly or hand Validator.Validate to
// handler.WithValidation so Wrap validates after binding.
package validator
