// Package validation validates configuration and input structs using
// go-playground/validator struct tags.
//
//	type Config struct {
//	    Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
//	}
//	err := validation.Validate(cfg)
//
// Field names in error messages come from the mapstructure (or json) tag so
// they match the keys in config.yml.
package validation
