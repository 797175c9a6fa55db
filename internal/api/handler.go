package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maiiam/maiiam/internal/remote"
	"github.com/maiiam/maiiam/internal/research"
	"github.com/maiiam/maiiam/internal/session"
	"github.com/maiiam/maiiam/internal/snapshot"
	"github.com/maiiam/maiiam/internal/state"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds the collaborators the HTTP surface exposes.
type Deps struct {
	Session  *session.Session
	Research *research.Runner
	Calls    *remote.CallLog
	Objects  *remote.Registry
	Deleter  remote.ObjectDeleter
	Token    string
}

// NewHandler builds the localhost API. Everything except /health requires
// the local bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/state", handleGetState(deps))
		r.Post("/messages", handleSendMessage(deps))
		r.Get("/transcript", handleGetTranscript(deps))
		r.Post("/journal", handleAddJournal(deps))
		r.Get("/journal", handleListJournal(deps))
		r.Post("/research", handleStartResearch(deps))
		r.Get("/research", handleListResearch(deps))
		r.Get("/export", handleExportJSON(deps))
		r.Get("/export.csv", handleExportCSV(deps))
		r.Get("/calls", handleListCalls(deps))
		r.Delete("/objects", handleDeleteObjects(deps))
	})

	return r
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

// stateView is the wire shape for the current estimate plus display metadata.
type stateView struct {
	State     state.Vector    `json:"state"`
	Dominant  state.Dimension `json:"dominant"`
	Score     float64         `json:"score"`
	Meta      state.Meta      `json:"meta"`
	Exchanges int             `json:"exchanges"`
}

func currentState(deps Deps) stateView {
	v := deps.Session.Vector()
	dom, score := v.Dominant()
	return stateView{
		State:     v,
		Dominant:  dom,
		Score:     score,
		Meta:      state.MetaFor(dom),
		Exchanges: deps.Session.ExchangeCount(),
	}
}

func handleGetState(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, currentState(deps))
	}
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Reply string    `json:"reply"`
	State stateView `json:"state"`
}

func handleSendMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		// The agent bootstrap is retried lazily so a transient remote
		// failure at startup does not wedge the session.
		if !deps.Session.HasAgent() {
			if err := deps.Session.EnsureAgent(r.Context()); err != nil {
				httpError(w, http.StatusServiceUnavailable, "api_error", "agent unavailable: %v", err)
				return
			}
		}

		reply, err := deps.Session.SendMessage(r.Context(), req.Message)
		if err != nil {
			writeSessionError(w, err)
			return
		}

		writeJSON(w, messageResponse{Reply: reply, State: currentState(deps)})
	}
}

func handleGetTranscript(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		turns := deps.Session.Transcript()
		if turns == nil {
			turns = []session.Turn{}
		}
		writeJSON(w, turns)
	}
}

type journalRequest struct {
	Text string `json:"text"`
}

func handleAddJournal(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req journalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		entry, err := deps.Session.AddJournalEntry(r.Context(), req.Text)
		if err != nil {
			writeSessionError(w, err)
			return
		}

		writeJSON(w, entry)
	}
}

func handleListJournal(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := deps.Session.Journal()
		if entries == nil {
			entries = []session.JournalEntry{}
		}
		writeJSON(w, entries)
	}
}

type researchRequest struct {
	Topic string `json:"topic"`
}

func handleStartResearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req researchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		// The continuation outlives this request.
		task, err := deps.Research.Research(context.WithoutCancel(r.Context()), req.Topic)
		if err != nil {
			var terr *remote.TransportError
			switch {
			case errors.As(err, &terr):
				httpError(w, http.StatusBadGateway, "api_error", "research failed: %v", err)
			default:
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"topic":  task.Topic,
			"status": "started",
		})
	}
}

func handleListResearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := deps.Session.ResearchResults()
		if results == nil {
			results = map[string]string{}
		}
		writeJSON(w, results)
	}
}

func handleExportJSON(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		export := snapshot.Build(deps.Session, time.Now().UTC())
		data, err := snapshot.JSON(export)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "building export: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

func handleExportCSV(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		export := snapshot.Build(deps.Session, time.Now().UTC())
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, snapshot.CSV(export))
	}
}

func handleListCalls(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := deps.Calls.Entries()
		if entries == nil {
			entries = []remote.CallEntry{}
		}
		writeJSON(w, entries)
	}
}

type cleanupResponse struct {
	Released int      `json:"released"`
	Errors   []string `json:"errors,omitempty"`
}

func handleDeleteObjects(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracked := deps.Objects.Len()
		errs := deps.Objects.ReleaseAll(r.Context(), deps.Deleter)

		resp := cleanupResponse{Released: tracked - len(errs)}
		for _, err := range errs {
			resp.Errors = append(resp.Errors, err.Error())
		}
		writeJSON(w, resp)
	}
}

// writeSessionError maps session sentinels and transport failures to
// status codes.
func writeSessionError(w http.ResponseWriter, err error) {
	var terr *remote.TransportError
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, session.ErrBusy):
		httpError(w, http.StatusTooManyRequests, "rate_limit_error", "%v", err)
	case errors.Is(err, session.ErrNoAgent):
		httpError(w, http.StatusServiceUnavailable, "api_error", "%v", err)
	case errors.As(err, &terr):
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
