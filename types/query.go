package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

// AskParams is the request body for the answer endpoint.
type AskParams struct {
	Prompt  string `json:"prompt" validate:"required"`
	Subject string `json:"subject"`
	UserID  string `json:"user_id"`
}

// MessageParams is the request body for the chat message endpoint.
type MessageParams struct {
	UserID string `json:"user_id" validate:"required"`
	Text   string `json:"text" validate:"required"`
}

// SubjectParams is the request body for subject create/update.
type SubjectParams struct {
	Name          string   `json:"subject_name" validate:"required"`
	Description   string   `json:"subject_description"`
	UseDatasource bool     `json:"use_datasource"`
	Tags          []string `json:"tags"`
}

// PipelineParams switches a user's active pipeline.
type PipelineParams struct {
	UserID   string `json:"user_id" validate:"required"`
	Pipeline string `json:"pipeline" validate:"required"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func validateStruct(s any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func (params *AskParams) Validate() map[string]string      { return validateStruct(params) }
func (params *MessageParams) Validate() map[string]string  { return validateStruct(params) }
func (params *SubjectParams) Validate() map[string]string  { return validateStruct(params) }
func (params *PipelineParams) Validate() map[string]string { return validateStruct(params) }
