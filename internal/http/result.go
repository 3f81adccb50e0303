package httpapi

import "fmt"

// Result is the JSON envelope of every /api/v1 response. Type is one of
// "success", "warning" or "error"; warning marks a batch that was only
// partly applied.
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultPartial = 2070
	ResultError   = -1
)

const (
	resultTypeSuccess = "success"
	resultTypeWarning = "warning"
	resultTypeError   = "error"
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: resultTypeSuccess, Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: resultTypeError, Message: message}
}

// batchResult wraps per-event ingest outcomes: success when all were
// applied, warning when some were, error when none were.
func batchResult(results []IngestResult, accepted int) Result[[]IngestResult] {
	r := Result[[]IngestResult]{Result: results}
	switch {
	case accepted == len(results):
		r.Code, r.Type, r.Message = ResultSuccess, resultTypeSuccess, "ok"
	case accepted == 0:
		r.Code, r.Type, r.Message = ResultError, resultTypeError, "no events accepted"
	default:
		r.Code, r.Type = ResultPartial, resultTypeWarning
		r.Message = fmt.Sprintf("%d of %d events accepted", accepted, len(results))
	}
	return r
}
