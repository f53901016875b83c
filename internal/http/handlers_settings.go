package http

import (
	"encoding/json"
	"io"
	"net/http"

	"moneymanager/internal/log"
	"moneymanager/internal/settings"
)

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.rates.Current()).Write(w)
}

// handleRefreshRates forces a fetch. On failure the last known table is
// still returned alongside the error.
func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	table, err := s.rates.Refresh(r.Context())
	if err != nil {
		ErrorResponse(http.StatusBadGateway, "exchange rate refresh failed").Data(table).Write(w)
		return
	}
	NewJSONResponse().Message("exchange rates refreshed").Data(table).Write(w)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.prefs.Load(r.Context())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(prefs).Write(w)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var u settings.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&u); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	prefs, err := s.prefs.Apply(r.Context(), u)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(prefs).Write(w)
}

func (s *Server) handlePasswordStatus(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.password.Enabled(r.Context())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Set("enabled", enabled).Write(w)
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	if err := s.password.Set(r.Context(), p.Get("password"), p.Get("confirm")); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Message("password set").Set("enabled", true).Write(w)
}

func (s *Server) handleClearPassword(w http.ResponseWriter, r *http.Request) {
	if err := s.password.Clear(r.Context()); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message("password removed").Set("enabled", false).Write(w)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	if err := s.password.Unlock(r.Context(), p.Get("password")); err != nil {
		s.fail(w, r, log.OpValidate, err)
		return
	}
	NewJSONResponse().Message("unlocked").Write(w)
}
