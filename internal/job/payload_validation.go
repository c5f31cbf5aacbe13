package job

import (
	"encoding/json"
	"net/http"

	"github.com/webramesh/email-marketing-sub000/common"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
)

func validatePayload(jobType string, raw json.RawMessage) error {
	if err := dto.ValidateJobPayload(jobType, raw); err != nil {
		apiErr := common.FromError(err, "payload validation failed")
		apiErr.Status = http.StatusBadRequest
		return apiErr
	}
	return nil
}
