package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"moneymanager/internal/core"
	"moneymanager/internal/log"
	"moneymanager/internal/services"
	"moneymanager/internal/sheets"
)

func credentialsFrom(p *RequestBodyParser) sheets.Credentials {
	return sheets.Credentials{
		AccessToken:   p.Get("accessToken"),
		SpreadsheetID: p.Get("spreadsheetId"),
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.backupLimit)
	defer cancel()

	stats, err := s.ledger.Export(ctx, credentialsFrom(p))
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	NewJSONResponse().
		Message("Data exported successfully").
		Set("transactionsCount", stats.TransactionsCount).
		Set("monthsCount", stats.MonthsCount).
		Write(w)
}

// handleImport merges the backup into the ledger. Without an "overwrite"
// field any conflicting month aborts the import with 409 so the client can
// ask the user; with it, listed months are replaced and the rest skipped.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	req := services.ImportRequest{Credentials: credentialsFrom(p)}
	if raw, present := p.Strings("overwrite"); present {
		req.Decided = true
		for _, v := range raw {
			key, err := core.ParseMonthKey(v)
			if err != nil {
				s.fail(w, r, log.OpImport, fmt.Errorf("overwrite: %w", err))
				return
			}
			req.Overwrite = append(req.Overwrite, key)
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.backupLimit)
	defer cancel()

	out, err := s.ledger.Import(ctx, req)
	if errors.Is(err, services.ErrUnconfirmedConflicts) {
		ErrorResponse(http.StatusConflict, "some months already exist; confirm which to overwrite").
			Set("conflicts", out.Conflicts).
			Write(w)
		return
	}
	if err != nil {
		s.fail(w, r, log.OpImport, err)
		return
	}

	txCount := 0
	for _, rec := range out.Incoming {
		txCount += len(rec.Transactions)
	}
	NewJSONResponse().
		Message("Data imported successfully").
		Set("transactionsCount", txCount).
		Set("monthsCount", len(out.Incoming)).
		Set("inserted", nonNil(out.Result.Inserted)).
		Set("overwritten", nonNil(out.Result.Overwritten)).
		Set("skipped", nonNil(out.Result.Skipped)).
		Write(w)
}

func nonNil(keys []core.MonthKey) []core.MonthKey {
	if keys == nil {
		return []core.MonthKey{}
	}
	return keys
}
