// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xataio/hwbench/pkg/bench"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks c without side effects. The first problem found is
// returned as an InvalidConfigError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fromFieldError(fieldErrs[0])
		}
		return InvalidConfigError{Reason: err.Error()}
	}

	if err := checkDuration("duration", c.Duration, false); err != nil {
		return err
	}
	overrides := []struct {
		field string
		d     Duration
	}{
		{"cpu.duration", c.CPU.Duration},
		{"memory.duration", c.Memory.Duration},
		{"disk.duration", c.Disk.Duration},
	}
	for _, o := range overrides {
		if err := checkDuration(o.field, o.d, true); err != nil {
			return err
		}
	}

	fileSize := int64(c.Disk.FileSize)
	if fileSize == 0 {
		fileSize = bench.DefaultDiskFileSize
	}
	blockSize := int64(c.Disk.BlockSize)
	if blockSize == 0 {
		blockSize = bench.DefaultDiskBlockSize
	}
	if blockSize > fileSize {
		return InvalidConfigError{Field: "disk.block_size", Reason: fmt.Sprintf("must not exceed the file size (%s)", ByteSize(fileSize))}
	}

	return nil
}

func checkDuration(field string, d Duration, optional bool) error {
	if optional && d == 0 {
		return nil
	}
	if d.Std() < MinDuration || d.Std() > MaxDuration {
		return InvalidConfigError{Field: field, Reason: fmt.Sprintf("must be between %s and %s, got %s", MinDuration, MaxDuration, time.Duration(d))}
	}
	return nil
}

func fromFieldError(fe validator.FieldError) InvalidConfigError {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")

	var reason string
	switch fe.Tag() {
	case "min":
		if field == "tests" {
			reason = "at least one test must be selected"
		} else {
			reason = "must be at least " + fe.Param()
		}
	case "max":
		reason = "must be at most " + fe.Param()
	case "gt":
		reason = "must be greater than " + fe.Param()
	case "gte":
		reason = "must not be negative"
	case "oneof":
		reason = fmt.Sprintf("must be one of %s, got %v", strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "unique":
		reason = "must not contain duplicates"
	default:
		reason = "failed the " + fe.Tag() + " check"
	}
	return InvalidConfigError{Field: field, Reason: reason}
}
