package response

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`         // "success" or "error"
	StatusCode int         `json:"status_code"`    // HTTP status code
	Code       string      `json:"code,omitempty"` // ledger error code, e.g. CONFLICT
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// CodedError is Error with a machine-readable code
func CodedError(statusCode int, code, err string) Response {
	resp := Error(statusCode, err)
	resp.Code = code
	return resp
}
