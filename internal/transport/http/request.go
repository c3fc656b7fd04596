package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"safety-stories-service/internal/domain"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type registerUserRequest struct {
	ID        string `json:"id" validate:"required,max=128"`
	Username  string `json:"username" validate:"max=64"`
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"firstName" validate:"max=64"`
	LastName  string `json:"lastName" validate:"max=64"`
	ImageURL  string `json:"imageUrl" validate:"omitempty,url"`
}

type completeStoryRequest struct {
	StoryID     string `json:"storyId" validate:"required"`
	StarsEarned *int   `json:"starsEarned" validate:"omitempty,min=0,max=100"`
}

type submitScoreRequest struct {
	UserID  string `json:"userId" validate:"required"`
	StoryID string `json:"story" validate:"required"`
	TopicID string `json:"topic" validate:"required"`
	LevelID string `json:"level" validate:"required"`
	Score   *int   `json:"score" validate:"required,min=0"`
}

type quizAnswerRequest struct {
	QuizID         string `json:"quizId" validate:"required"`
	SelectedAnswer string `json:"selectedAnswer"`
}

type submitQuizRequest struct {
	UserID  string              `json:"user" validate:"required"`
	StoryID string              `json:"story" validate:"required"`
	Answers []quizAnswerRequest `json:"answers" validate:"required,min=1,dive"`
}

// decodeJSON strictly decodes the body into dst and validates it. Unknown
// fields, trailing data and schema violations are validation errors.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return domain.Validationf("request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Validationf("invalid JSON body: %v", err)
	}
	if dec.More() {
		return domain.Validationf("request body must be a single JSON object")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return validationError(verrs)
		}
		return domain.Validationf("%v", err)
	}
	return nil
}

func validationError(errs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", e.Namespace(), e.Tag(), e.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
	}
	return domain.Validationf("%s", strings.Join(msgs, "; "))
}
