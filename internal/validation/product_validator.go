// Package validation checks candidate products against the catalogue's field
// constraints. The rules live as struct tags on the models; this package owns
// the validator instance and turns its errors into models.ValidationError.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"productapi/internal/models"
)

// ProductValidator validates products and product requests.
// It is safe for concurrent use.
type ProductValidator struct {
	validate *validator.Validate
}

// NewProductValidator creates a validator that reports json field names and
// understands the "notblank" rule.
func NewProductValidator() *ProductValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("validation: register notblank: %v", err))
	}
	return &ProductValidator{validate: v}
}

// ValidateProduct checks a complete product record.
func (v *ProductValidator) ValidateProduct(p models.Product) error {
	return v.check(p, "")
}

// ValidateRequest checks a create or full-update body.
func (v *ProductValidator) ValidateRequest(r models.ProductRequest) error {
	return v.check(r, "")
}

// ValidateBatch checks every item of a bulk body and reports all violations,
// prefixing each field with the item's index.
func (v *ProductValidator) ValidateBatch(items []models.ProductRequest) error {
	return validateEach(v, items)
}

// ValidateProducts is ValidateBatch for product records.
func (v *ProductValidator) ValidateProducts(items []models.Product) error {
	return validateEach(v, items)
}

func validateEach[T any](v *ProductValidator, items []T) error {
	combined := &models.ValidationError{}
	for i, item := range items {
		err := v.check(item, fmt.Sprintf("[%d].", i))
		if err == nil {
			continue
		}
		var ve *models.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		combined.Fields = append(combined.Fields, ve.Fields...)
	}
	if len(combined.Fields) > 0 {
		return combined
	}
	return nil
}

func (v *ProductValidator) check(s interface{}, prefix string) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate product: %w", err)
	}

	ve := &models.ValidationError{Fields: make([]models.FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		ve.Fields = append(ve.Fields, models.FieldError{
			Field:   prefix + fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return ve
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s must not be null", field)
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be positive", field)
	default:
		return fmt.Sprintf("Field '%s' failed on the '%s' tag", field, fe.Tag())
	}
}
