package config

import (
	"strconv"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers custom validation functions
func RegisterCustomValidators(v *validator.Validate) error {
	return v.RegisterValidation("minbytes", validateMinBytes)
}

// validateMinBytes checks the byte length of a string; the built-in min counts runes.
func validateMinBytes(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) >= n
}
