package server

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/turnos/internal/shifthours"
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("shift_type", func(fl validator.FieldLevel) bool {
		_, err := shifthours.ParseShiftType(fl.Field().String())
		return err == nil
	})
	return v
}

// bindJSON decodes the body into req and checks its validate tags.
func (s *Server) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		AbortWithError(c, invalidRequestError())
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		AbortWithError(c, fromValidator(err))
		return false
	}
	return true
}
