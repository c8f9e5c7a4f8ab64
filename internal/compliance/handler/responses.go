package handler

// CheckResponse is the HTTP response for both check endpoints.
type CheckResponse struct {
	CheckResult bool `json:"check_result"`
}
