package http

import (
	"net/http"
	"strconv"
	"strings"

	"moneymanager/internal/core"
	"moneymanager/internal/currency"
	"moneymanager/internal/log"
)

type monthsView struct {
	Months  []core.MonthKey `json:"months"`
	Latest  core.MonthKey   `json:"latest,omitempty"`
	Current core.MonthKey   `json:"current"`
}

type monthView struct {
	Month      core.MonthKey    `json:"month"`
	Historical bool             `json:"historical"`
	Record     core.MonthRecord `json:"record"`
}

// formattedTotals are the headline figures rounded for display.
type formattedTotals struct {
	Income   string `json:"income"`
	Expense  string `json:"expense"`
	Net      string `json:"net"`
	NetWorth string `json:"netWorth"`
}

func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	keys := s.ledger.Manager().Months()
	if keys == nil {
		keys = []core.MonthKey{}
	}
	view := monthsView{
		Months:  keys,
		Current: core.MonthKeyOf(s.now()),
	}
	if len(keys) > 0 {
		view.Latest = keys[len(keys)-1]
	}
	NewJSONResponse().Data(view).Write(w)
}

func (s *Server) handleCreateMonth(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	raw := p.Get("month")
	if raw == "" {
		raw = string(core.MonthKeyOf(s.now()))
	}
	key, err := core.ParseMonthKey(raw)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	record, created, err := s.ledger.CreateMonth(r.Context(), key)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	NewJSONResponse().
		Status(status).
		Set("created", created).
		Data(monthView{Month: key, Historical: s.ledger.Manager().IsHistorical(key), Record: record}).
		Write(w)
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	key, err := monthParam(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	record, ok := s.ledger.Manager().Month(key)
	if !ok {
		NotFoundError("month " + string(key) + " not found").Write(w)
		return
	}
	NewJSONResponse().
		Data(monthView{Month: key, Historical: s.ledger.Manager().IsHistorical(key), Record: record}).
		Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	key, err := monthParam(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	display, err := displayParam(r, s.defaultDisplay(r), s.secondary)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}

	// One rates table serves both the key and the computation. The entry is
	// stored under the version the month was actually read at, so a write
	// racing this request can never leave a stale summary behind a fresh key.
	rates := s.rates.Current()
	version := s.ledger.Manager().Version()
	summary, hit := s.summaryCache.Get(summaryCacheKey(string(key), string(display), rates.FetchedAt, version))
	if !hit {
		var readAt uint64
		summary, readAt, err = s.ledger.Summary(key, display, rates)
		if err != nil {
			s.fail(w, r, log.OpRead, err)
			return
		}
		s.summaryCache.Set(summaryCacheKey(string(key), string(display), rates.FetchedAt, readAt), summary)
	}

	f := currency.NewFormatter(string(display))
	cacheState := "MISS"
	if hit {
		cacheState = "HIT"
	}
	NewJSONResponse().
		Header("X-Cache", cacheState).
		Data(summary).
		Set("formatted", formattedTotals{
			Income:   f.Format(summary.Totals.Income),
			Expense:  f.Format(summary.Totals.Expense),
			Net:      f.Format(summary.Totals.Net),
			NetWorth: f.Format(summary.NetWorth),
		}).
		Write(w)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	key, err := monthParam(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	step := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("step")); raw != "" {
		step, err = strconv.Atoi(raw)
		if err != nil {
			BadRequestError("step must be an integer").Write(w)
			return
		}
	}
	next := s.ledger.Manager().Navigate(key, step)
	NewJSONResponse().
		Data(map[string]any{
			"month":      next,
			"historical": s.ledger.Manager().IsHistorical(next),
		}).
		Write(w)
}

// defaultDisplay is the stored display preference, or USD when unavailable.
func (s *Server) defaultDisplay(r *http.Request) currency.Display {
	if s.prefs == nil {
		return currency.DisplayUSD
	}
	p, err := s.prefs.Load(r.Context())
	if err != nil || p.DisplayCurrency == "" {
		return currency.DisplayUSD
	}
	return p.DisplayCurrency
}
