package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes bounds API request bodies.
const maxBodyBytes = 1 << 10

// relayStatusResponse is returned by GET /api/raspberrypi/status.
type relayStatusResponse struct {
	Status string `json:"status"`
}

// startRequest is the body of POST /api/raspberrypi/startcoffee. A null or
// absent time means midnight, which is what the web client sends when no
// time was picked.
type startRequest struct {
	Time *string `json:"time"`
}

// timeOfDay returns the requested time, defaulting to "00:00".
func (req startRequest) timeOfDay() string {
	if req.Time == nil {
		return "00:00"
	}
	return *req.Time
}

// startResponse is returned when a start is accepted.
type startResponse struct {
	ScheduledFor string `json:"scheduled_for"`
	Message      string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func decodeStartRequest(r *http.Request) (startRequest, error) {
	var req startRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
