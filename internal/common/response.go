package common

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Message string `json:"message"`
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Message: message})
}

// RespondWithErr writes err using its mapped status. Internal failures get a
// generic message so driver details never reach the client.
func RespondWithErr(w http.ResponseWriter, err error) {
	code := HTTPStatusFromError(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = ErrInternalServer.Error()
	}
	RespondWithError(w, code, msg)
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
