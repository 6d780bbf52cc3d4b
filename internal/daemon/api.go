package daemon

import "time"

// APIVersion prefixes every control route.
const APIVersion = "v1"

// Control routes.
const (
	RouteHealthz    = "/" + APIVersion + "/healthz"
	RouteStatus     = "/" + APIVersion + "/status"
	RouteActivate   = "/" + APIVersion + "/activate"
	RouteDeactivate = "/" + APIVersion + "/deactivate"
	RouteMetrics    = "/metrics"
)

// ActivateRequest is the body of POST /v1/activate.
type ActivateRequest struct {
	Mode         string `json:"mode"`
	BlockNetwork bool   `json:"block_network"`
	Monitor      bool   `json:"monitor"`
}

// APIError is the body of every non-2xx response.
type APIError struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func newAPIError(msg string) APIError {
	return APIError{Error: msg, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}
