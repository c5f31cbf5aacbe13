package dto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/webramesh/email-marketing-sub000/internal/config"
)

var validate = validator.New()

// ValidationError carries per-field failures from the validator.
type ValidationError struct {
	Message string
	Fields  map[string]any
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Fields)
}

func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return &ValidationError{Message: "validation failed", Fields: FormatValidationErrors(err)}
	}
	return nil
}

func FormatValidationErrors(err error) map[string]any {
	fields := map[string]any{}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["_"] = err.Error()
		return fields
	}

	for _, e := range verrs {
		fields[e.Namespace()] = "failed " + e.Tag()
	}
	return fields
}

// Decode unmarshals raw JSON into T and validates it.
func Decode[T any](raw []byte) (T, error) {
	var payload T

	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, &ValidationError{Message: "invalid payload format: " + err.Error()}
	}

	if err := Validate(&payload); err != nil {
		return payload, err
	}

	return payload, nil
}

// ValidateJobPayload checks raw against the payload type of jobType.
func ValidateJobPayload(jobType string, raw json.RawMessage) error {
	var err error

	switch jobType {
	case config.JobTypeSendEmail:
		_, err = Decode[EmailJobPayload](raw)
	case config.JobTypeProcessCampaign:
		_, err = Decode[CampaignJobPayload](raw)
	case config.JobTypeRunAutomation:
		_, err = Decode[AutomationJobPayload](raw)
	case config.JobTypeRecordEvent:
		_, err = Decode[AnalyticsJobPayload](raw)
	default:
		err = &ValidationError{Message: "unknown job type " + jobType}
	}

	return err
}
