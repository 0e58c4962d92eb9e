package httpapi

import (
	"net/http"

	"voiceagent/core"
	"voiceagent/orchestrator"
)

// StatusForKind maps a failed turn onto the HTTP status returned to clients.
func StatusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindRecordingTooShort:
		return http.StatusBadRequest
	case core.KindUnsupportedAudio:
		return http.StatusUnsupportedMediaType
	case core.KindEmptyInput:
		return http.StatusUnprocessableEntity
	case core.KindRateLimited:
		return http.StatusTooManyRequests
	case core.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case core.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// StatusForResult is 200 for success, 206 for a text-only reply and the
// kind's status otherwise.
func StatusForResult(res *orchestrator.Result) int {
	switch res.Status {
	case orchestrator.StatusSuccess:
		return http.StatusOK
	case orchestrator.StatusPartial:
		return http.StatusPartialContent
	}
	return StatusForKind(res.Kind())
}
