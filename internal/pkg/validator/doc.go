// Package validator validates input structs using struct tags.
//
// Usecases depend on the Validator interface; V10Validator is the
// go-playground/validator implementation with English messages and the
// custom account_id and pin rules.
package validator
