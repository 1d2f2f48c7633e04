package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// newValidator returns a validator with the struct-level rules for request
// bodies that carry decimals.
func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(addLineItemValidation, AddLineItemRequest{})
	v.RegisterStructValidation(releaseStockValidation, ReleaseStockRequest{})
	return v
}

func addLineItemValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(AddLineItemRequest)
	if !req.Qty.IsPositive() {
		sl.ReportError(req.Qty, "qty", "Qty", "positive", "")
	}
}

func releaseStockValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(ReleaseStockRequest)
	if !req.Qty.IsPositive() {
		sl.ReportError(req.Qty, "qty", "Qty", "positive", "")
	}
}

// errInvalidBody marks a body that could not be decoded or failed validation.
var errInvalidBody = errors.New("invalid request body")

// decodeAndValidate decodes the JSON body into out and validates it. On
// failure it writes the 400 response itself and returns an error for the
// handler to short-circuit on.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if err := h.validate.Struct(out); err != nil {
		writeErrorDetails(w, http.StatusBadRequest, "Validation failed", validationErrorsToMap(err))
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = fmt.Sprintf("failed on %q", fe.Tag())
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
