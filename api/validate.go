package api

import (
	"github.com/go-playground/validator/v10"

	"kanban-api/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("taskstatus", func(fl validator.FieldLevel) bool {
		return domain.Status(fl.Field().String()).Valid()
	})
	if err != nil {
		panic(err)
	}
	return v
}

// POST /api/tasks request body. The max tag matches domain.MaxTitleLen.
type createTaskRequest struct {
	Title  string `json:"title" validate:"required,max=200"`
	Status string `json:"status" validate:"omitempty,taskstatus"`
}

// PATCH /api/tasks/:id request body.
type updateStatusRequest struct {
	Status string `json:"status" validate:"required,taskstatus"`
}
