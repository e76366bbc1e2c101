// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/speedup/asynchttp/pkg/types"
)

// ErrInvalidLoadOptions is the sentinel wrapped by InvalidLoadOptionsError.
var ErrInvalidLoadOptions = errors.New("invalid load options")

type (
	// LoadOptions defines explicit configuration loading inputs.
	LoadOptions struct {
		// ConfigFilePath forces loading from a specific file when set.
		ConfigFilePath types.FilesystemPath
		// ConfigDirPath overrides the config directory lookup when set.
		ConfigDirPath types.FilesystemPath
	}

	// InvalidLoadOptionsError collects every invalid LoadOptions field.
	InvalidLoadOptionsError struct {
		FieldErrors []error
	}

	// Loaded is a configuration together with the file it came from.
	// Source is empty when only defaults and environment applied.
	Loaded struct {
		Config *Config
		Source string
	}

	// Provider loads configuration from explicit options.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Loaded, error)
	}

	fileProvider struct{}
)

// NewProvider creates a Provider that reads CUE files and ASYNCHTTP_* variables.
func NewProvider() Provider {
	return &fileProvider{}
}

func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Loaded, error) {
	cfg, src, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Loaded{Config: cfg, Source: src}, nil
}

// Validate checks both paths.
func (o LoadOptions) Validate() error {
	var errs []error
	if err := o.ConfigFilePath.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config file: %w", err))
	}
	if err := o.ConfigDirPath.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config dir: %w", err))
	}
	if len(errs) > 0 {
		return &InvalidLoadOptionsError{FieldErrors: errs}
	}
	return nil
}

func (e *InvalidLoadOptionsError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInvalidLoadOptions, errors.Join(e.FieldErrors...))
}

// Unwrap exposes the sentinel and every field error to errors.Is.
func (e *InvalidLoadOptionsError) Unwrap() []error {
	return append([]error{ErrInvalidLoadOptions}, e.FieldErrors...)
}
