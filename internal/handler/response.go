package handler

// Response is the envelope every JSON endpoint returns. Webhook callers
// only ever see the status string; Data carries pages, broadcasts, and
// backfill deltas for the API consumers.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

// NewErrorResponse carries only the message; internal error chains stay in
// the logs.
func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}
