package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct tag validation and the cross-field rules tags cannot express.
func Validate(c *Config) error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(c)
}

func validateCustomRules(c *Config) error {
	switch c.Registry.Driver {
	case "postgres":
		if c.Registry.DSN == "" {
			return errors.New("registry.dsn: required for the postgres driver")
		}
	case "sqlite", "bolt":
		if c.Registry.Path == "" {
			return fmt.Errorf("registry.path: required for the %s driver", c.Registry.Driver)
		}
	}

	if c.Storage.Driver == "s3" {
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket: required for the s3 driver")
		}
		if c.Storage.S3.Region == "" {
			return errors.New("storage.s3.region: required for the s3 driver")
		}
		if (c.Storage.S3.AccessKey == "") != (c.Storage.S3.SecretKey == "") {
			return errors.New("storage.s3: access_key and secret_key must be set together")
		}
	}

	if sameRoot(c.Storage.NamespacesRoot, c.Storage.SharesRoot) {
		return errors.New("storage: namespaces_root and shares_root must differ")
	}
	return nil
}

func sameRoot(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

func formatValidationError(err error) error {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		e := ves[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
