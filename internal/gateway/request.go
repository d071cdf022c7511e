// ABOUTME: Decodes and validates completion request bodies
// ABOUTME: Uses go-playground/validator with custom notblank and maxbytes rules

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxMessageBytes caps a single user message when the config leaves it unset.
const DefaultMaxMessageBytes = 32 << 10

// CompletionRequest is the JSON body for POST /api/completion.
type CompletionRequest struct {
	Message string `json:"message" validate:"required,notblank,maxbytes"`
}

type requestValidator struct {
	validate *validator.Validate
	maxBytes int
}

func newRequestValidator(maxBytes int) *requestValidator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMessageBytes
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxBytes
	})
	return &requestValidator{validate: v, maxBytes: maxBytes}
}

// parse reads and validates a completion request. The body is capped well
// above maxBytes to leave room for JSON escaping.
func (rv *requestValidator) parse(w http.ResponseWriter, r *http.Request) (*CompletionRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(rv.maxBytes)*6+4096)

	var req CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("message exceeds %d bytes", rv.maxBytes)
		}
		return nil, fmt.Errorf("invalid JSON body")
	}

	if err := rv.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return nil, fmt.Errorf("invalid request")
		}
		switch verrs[0].Tag() {
		case "required", "notblank":
			return nil, fmt.Errorf("message is required")
		case "maxbytes":
			return nil, fmt.Errorf("message exceeds %d bytes", rv.maxBytes)
		default:
			return nil, fmt.Errorf("invalid message")
		}
	}
	return &req, nil
}
