package uiapi

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/awaistahir/cheapest-period/internal/card"
	"github.com/awaistahir/cheapest-period/internal/store"
)

const version = "1.0.0"

// HistoryStore provides past evaluations of a card
type HistoryStore interface {
	History(card string, limit int) ([]*store.Evaluation, error)
}

type Server struct {
	cards   []*card.Card
	byName  map[string]*card.Card
	history HistoryStore
	logger  *zap.Logger
	started time.Time
}

// NewServer serves the given cards. history may be nil, in which case the
// history endpoint reports it as unavailable.
func NewServer(cards []*card.Card, history HistoryStore, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cards:   cards,
		byName:  make(map[string]*card.Card, len(cards)),
		history: history,
		logger:  logger,
		started: time.Now(),
	}
	for _, c := range cards {
		if _, dup := s.byName[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate card name %q", c.Name())
		}
		s.byName[c.Name()] = c
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS so dashboards on other origins can embed the fragments
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", s.serveUI)
	r.Get("/cards/{name}", s.serveCard)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/cards", s.handleGetCards)
		r.Get("/cards/{name}", s.handleGetCard)
		r.Post("/cards/{name}/refresh", s.handleRefreshCard)
		r.Get("/cards/{name}/history", s.handleGetHistory)
	})

	return r
}

// cardState is the JSON view of a card
type cardState struct {
	Name   string       `json:"name"`
	Size   int          `json:"size"`
	Config card.Config  `json:"config"`
	Result *card.Result `json:"result,omitempty"`
}

func stateOf(c *card.Card) cardState {
	st := cardState{Name: c.Name(), Size: c.Size(), Config: c.Config()}
	if r, ok := c.Last(); ok {
		st.Result = &r
	}
	return st
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*card.Card, bool) {
	name := chi.URLParam(r, "name")
	c, ok := s.byName[name]
	if !ok {
		respondError(w, http.StatusNotFound, "card not found: "+name)
	}
	return c, ok
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version,
		"cards":   len(s.cards),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleGetCards(w http.ResponseWriter, r *http.Request) {
	states := make([]cardState, 0, len(s.cards))
	for _, c := range s.cards {
		states = append(states, stateOf(c))
	}
	respondJSON(w, http.StatusOK, states)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, stateOf(c))
}

func (s *Server) handleRefreshCard(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	result := c.Refresh(r.Context())
	s.logger.Info("card refreshed on request",
		zap.String("card", c.Name()),
		zap.String("outcome", string(result.Outcome)))
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		respondError(w, http.StatusServiceUnavailable, "history is not enabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	evaluations, err := s.history.History(c.Name(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, evaluations)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Cheapest Period</title>
</head>
<body>
{{range .}}{{.}}
{{end}}</body>
</html>
`))

func (s *Server) serveUI(w http.ResponseWriter, r *http.Request) {
	fragments := make([]template.HTML, 0, len(s.cards))
	for _, c := range s.cards {
		html, err := c.HTML()
		if err != nil {
			s.logger.Error("rendering card", zap.String("card", c.Name()), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "rendering card failed")
			return
		}
		fragments = append(fragments, html)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if err := pageTemplate.Execute(w, fragments); err != nil {
		s.logger.Error("writing page", zap.Error(err))
	}
}

func (s *Server) serveCard(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if err := c.Render(w); err != nil {
		s.logger.Error("rendering card", zap.String("card", c.Name()), zap.Error(err))
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
