// Package validation checks post field sets before they reach the store.
package validation

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/klass-lk/postboard/internal/model"
)

// Errors maps a field name to its violation messages in rule order.
type Errors map[string][]string

func (e Errors) add(field, message string) {
	e[field] = append(e[field], message)
}

// Has reports whether field collected at least one violation.
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// TitleLookup answers whether a title is already held by a post other than excludeID.
type TitleLookup interface {
	ExistsByTitle(ctx context.Context, title string, excludeID int64) (bool, error)
}

type Validator struct {
	validate *validator.Validate
	titles   TitleLookup
}

func New(titles TitleLookup) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, titles: titles}
}

// Validate checks input for a create (excludeID 0) or for an update of post excludeID.
// It returns nil when input is valid. The error is set only when the uniqueness lookup fails.
func (v *Validator) Validate(ctx context.Context, input model.PostInput, excludeID int64) (Errors, error) {
	errs := Errors{}

	if err := v.validate.StructCtx(ctx, input); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, err
		}
		for _, fe := range fieldErrs {
			errs.add(fe.Field(), message(fe))
		}
	}

	// an empty title already failed "required" and is not looked up
	if input.Title != "" {
		taken, err := v.titles.ExistsByTitle(ctx, input.Title, excludeID)
		if err != nil {
			return nil, fmt.Errorf("check title uniqueness: %w", err)
		}
		if taken {
			errs.add("title", TitleTakenMessage)
		}
	}

	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

// TitleTakenMessage is reported when another post already holds the title.
const TitleTakenMessage = "The title has already been taken."

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", fe.Field())
	case "max":
		return fmt.Sprintf("The %s may not be greater than %s characters.", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("The %s is invalid.", fe.Field())
	}
}
