package playground

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Envelope is the body shape of every demo API answer. The client pipeline
// wraps blob payloads in the same shape and unwraps it before transform.
type Envelope struct {
	Code    int    `json:"code"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Error().
			Err(err).
			Int("status_code", status).
			Msg("failed to encode envelope")
	}
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, Envelope{Code: http.StatusOK, Data: data, Message: "success"})
}
