package api

import (
	"encoding/json"
	"net/http"
)

// Problem is the RFC7807 error body used on every rejected request, admin
// and webhook alike. Successful webhook responses are plain text (the
// trigger ID, or the fixed test-event acknowledgement).
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"` // request path
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProblem emits a Problem with the given title and optional detail.
// instance is the request path the failure occurred on.
func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}
