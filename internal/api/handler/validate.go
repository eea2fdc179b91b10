package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Rrens/support-chat/internal/api/response"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// decodeJSON reads and validates a request body, writing a 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			response.BadRequest(w, fieldErrors(validationErrors))
			return false
		}
		response.BadRequest(w, err.Error())
		return false
	}

	return true
}

func fieldErrors(validationErrors validator.ValidationErrors) map[string]string {
	errors := make(map[string]string)
	for _, e := range validationErrors {
		field := e.Field()
		tag := e.Tag()
		switch tag {
		case "required":
			errors[field] = "field is required"
		case "email":
			errors[field] = "invalid email format"
		case "min":
			errors[field] = "must be at least " + e.Param() + " characters"
		case "max":
			errors[field] = "must be at most " + e.Param() + " characters"
		default:
			errors[field] = "validation failed on " + tag
		}
	}
	return errors
}
