package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sjperalta/fintera-matching-api/internal/models"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator.
// Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		// Use JSON tag names in error messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("leg", func(fl validator.FieldLevel) bool {
			return models.Leg(fl.Field().String()).IsBinary()
		})
		_ = v.RegisterValidation("income_status", func(fl validator.FieldLevel) bool {
			_, ok := models.ParseIncomeStatus(fl.Field().String())
			return ok
		})
	})
}

// validationErrors turns binding failures into a field -> message map
func validationErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "This field is required"
		case "email":
			fields[fe.Field()] = "Invalid email format"
		case "min":
			fields[fe.Field()] = "Must be at least " + fe.Param()
		case "leg":
			fields[fe.Field()] = "Must be left or right"
		case "income_status":
			fields[fe.Field()] = "Unknown income status"
		default:
			fields[fe.Field()] = "Invalid value"
		}
	}
	return fields
}

// respondBindError writes a 400 for a request body that failed to bind
func respondBindError(c *gin.Context, err error) {
	body := gin.H{"success": false, "message": "Invalid request body"}
	if fields := validationErrors(err); fields != nil {
		body["errors"] = fields
	}
	c.JSON(http.StatusBadRequest, body)
}
