package http

import (
	"net/http"

	"moneymanager/internal/core"
	"moneymanager/internal/log"
)

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	key, err := monthParam(r)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	tx, err := ParseTransaction(p)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	saved, err := s.ledger.AddTransaction(r.Context(), key, tx)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(saved).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	key, err := monthParam(r)
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	id := sanitizeInput(r.PathValue("id"))
	if err := s.ledger.DeleteTransaction(r.Context(), key, id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message("transaction deleted").Write(w)
}

func (s *Server) handleUpdateBalances(w http.ResponseWriter, r *http.Request) {
	key, err := monthParam(r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	balances, err := ParseBalances(p)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	if err := s.ledger.UpdateBalances(r.Context(), key, balances); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(balances).Write(w)
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	key, bucket, err := monthAndBucket(r)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	note, err := ParseNote(p)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	saved, err := s.ledger.AddNote(r.Context(), key, bucket, note)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Set("bucket", bucket).Data(saved).Write(w)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	key, bucket, err := monthAndBucket(r)
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteNote(r.Context(), key, bucket, sanitizeInput(r.PathValue("id"))); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message("note deleted").Write(w)
}

func monthAndBucket(r *http.Request) (core.MonthKey, core.Bucket, error) {
	key, err := monthParam(r)
	if err != nil {
		return "", "", err
	}
	bucket, err := core.ParseBucket(r.PathValue("bucket"))
	if err != nil {
		return "", "", err
	}
	return key, bucket, nil
}
