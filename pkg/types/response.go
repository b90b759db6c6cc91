package types

// APIError is the public error body. Details only carries fields the error code allows.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// OKResponse is returned by endpoints that have nothing else to report.
type OKResponse struct {
	OK bool `json:"ok"`
}
