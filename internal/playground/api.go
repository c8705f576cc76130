package playground

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// User is the demo API resource.
type User struct {
	ID   int      `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
}

// API is the demo backend the playground client talks to.
type API struct {
	cfg     Config
	logger  zerolog.Logger
	metrics *Metrics

	// calls counts /user/throw-error hits; every FailTimes+1-th one succeeds.
	calls atomic.Int64
}

// NewAPI creates the demo API.
func NewAPI(cfg Config, logger zerolog.Logger, m *Metrics) *API {
	return &API{cfg: cfg, logger: logger, metrics: m}
}

// Routes mounts the demo API under cfg.APIPrefix and /metrics at the root.
//
//	GET  {prefix}/user              one user, ?id= selects it
//	POST {prefix}/user              echoes the JSON body back as a user
//	GET  {prefix}/user/throw-error  500 for FailTimes calls, then a user
//	GET  {prefix}/user/warn         200 with a non-200 envelope code
//	GET  {prefix}/user/slow         answers after SlowDelay
//	GET  {prefix}/file              BlobSize raw bytes
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recovery(a.logger), requestID())

	r.Handle("/metrics", a.metrics.Handler())

	r.Route(a.cfg.APIPrefix, func(r chi.Router) {
		r.Use(instrument(a.logger, a.metrics))

		r.Get("/user", a.getUser)
		r.Post("/user", a.createUser)
		r.Get("/user/throw-error", a.throwError)
		r.Get("/user/warn", a.warnUser)
		r.Get("/user/slow", a.slowUser)
		r.Get("/file", a.file)
	})
	return r
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	id := 1
	if raw := r.URL.Query().Get("id"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, Envelope{
				Code:    http.StatusBadRequest,
				Message: "id must be an integer",
			})
			return
		}
		id = n
	}
	writeSuccess(w, User{ID: id, Name: "user-" + strconv.Itoa(id), Tags: []string{"demo"}})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var u User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeEnvelope(w, http.StatusBadRequest, Envelope{
			Code:    http.StatusBadRequest,
			Message: "invalid user payload",
		})
		return
	}
	writeSuccess(w, u)
}

func (a *API) throwError(w http.ResponseWriter, _ *http.Request) {
	n := a.calls.Add(1)
	if a.cfg.FailTimes > 0 && (n-1)%int64(a.cfg.FailTimes+1) < int64(a.cfg.FailTimes) {
		writeEnvelope(w, http.StatusInternalServerError, Envelope{
			Code:    http.StatusInternalServerError,
			Message: "flaky backend, try again",
		})
		return
	}
	writeSuccess(w, User{ID: 2, Name: "survivor"})
}

func (a *API) warnUser(w http.ResponseWriter, _ *http.Request) {
	writeEnvelope(w, http.StatusOK, Envelope{
		Code:    http.StatusForbidden,
		Data:    User{ID: 3, Name: "disabled"},
		Message: "user is disabled",
	})
}

func (a *API) slowUser(w http.ResponseWriter, r *http.Request) {
	select {
	case <-time.After(a.cfg.SlowDelay):
		writeSuccess(w, User{ID: 4, Name: "sloth"})
	case <-r.Context().Done():
	}
}

// file streams the blob in chunks so the client sees download progress.
func (a *API) file(w http.ResponseWriter, _ *http.Request) {
	const chunk = 32 * 1024

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(a.cfg.BlobSize))
	w.WriteHeader(http.StatusOK)

	buf := make([]byte, chunk)
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	flusher, _ := w.(http.Flusher)
	for left := a.cfg.BlobSize; left > 0; left -= chunk {
		n := min(left, chunk)
		if _, err := w.Write(buf[:n]); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
