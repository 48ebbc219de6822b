package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("glob", validateGlob)
}

func validateGlob(fl validator.FieldLevel) bool {
	_, err := filepath.Match(fl.Field().String(), "probe")
	return err == nil
}

// Validate checks field constraints and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	src, _ := filepath.Abs(c.Source.Path)
	dst, _ := filepath.Abs(c.Destination.Path)
	if src == dst {
		return errors.New("invalid config: backup directory must differ from the saves directory")
	}

	if c.Source.Watch.RescanSchedule != "" {
		if _, err := cron.ParseStandard(c.Source.Watch.RescanSchedule); err != nil {
			return fmt.Errorf("invalid config: rescanSchedule: %w", err)
		}
	}
	return nil
}
