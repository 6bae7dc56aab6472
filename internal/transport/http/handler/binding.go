package handler

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// field errors are reported under their JSON names
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonName)
	}
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

// bindJSON binds from gin's cached copy of the body, which the throttle
// middleware may already have read.
func bindJSON(c *gin.Context, obj any) error {
	return c.ShouldBindBodyWith(obj, binding.JSON)
}
