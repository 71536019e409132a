package fetcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helix-tools/stac-sdk-go/types"
)

// idPattern accepts STAC ids: anything without path separators or
// whitespace.
var idPattern = regexp.MustCompile(`^[^/\s]+$`)

// Options selects what a Walk visits. Empty ids select everything at that
// level; zero MaxPages and Limit take the package defaults.
type Options struct {
	CollectionID string `validate:"omitempty,stac_id"`
	ItemID       string `validate:"omitempty,stac_id"`
	AssetKey     string `validate:"omitempty,stac_id"`
	MaxPages     int    `validate:"gte=1"`
	Limit        int    `validate:"gte=1,lte=10000"`
}

// SearchOptions selects what a Search visits. Params are passed to the
// search endpoint unmodified.
type SearchOptions struct {
	CollectionID string         `validate:"omitempty,stac_id"`
	Params       map[string]any `validate:"-"`
	AssetKey     string         `validate:"omitempty,stac_id"`
	MaxPages     int            `validate:"gte=1"`
	Limit        int            `validate:"gte=1,lte=10000"`
}

func (o Options) withDefaults() Options {
	if o.MaxPages == 0 {
		o.MaxPages = types.DefaultMaxPages
	}
	if o.Limit == 0 {
		o.Limit = types.DefaultLimit
	}

	return o
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.MaxPages == 0 {
		o.MaxPages = types.DefaultMaxPages
	}
	if o.Limit == 0 {
		o.Limit = types.DefaultLimit
	}

	return o
}

// newValidator creates a validator with the stac_id rule registered.
func newValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("stac_id", func(fl validator.FieldLevel) bool {
		return idPattern.MatchString(fl.Field().String())
	})

	return v
}

// validate turns validator failures into one ErrInvalidArgument.
func validate(v *validator.Validate, opts any) error {
	err := v.Struct(opts)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", types.ErrInvalidArgument, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
	}

	return fmt.Errorf("%w: %s", types.ErrInvalidArgument, strings.Join(msgs, "; "))
}
