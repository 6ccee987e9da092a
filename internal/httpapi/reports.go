package httpapi

import (
	"encoding/csv"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"kasapos/backend/internal/domain"
	"kasapos/backend/internal/money"
)

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFromContext(r.Context())
	report := a.service.SessionReport(session.TerminalID)
	a.writeReport(w, r, report)
}

func (a *API) handleRemoteReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	branch := strings.TrimSpace(query.Get("branch"))
	if branch == "" {
		session, _ := sessionFromContext(r.Context())
		branch = session.Branch
	}
	if strings.EqualFold(branch, "all") {
		branch = ""
	}

	report, err := a.service.RemoteDailyReport(r.Context(), branch, strings.TrimSpace(query.Get("date")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeReport(w, r, report)
}

func (a *API) writeReport(w http.ResponseWriter, r *http.Request, report domain.DailyReport) {
	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="daily-report-`+report.Date+`.csv"`)
		w.WriteHeader(http.StatusOK)
		if err := writeReportCSV(w, report, a.service.Money()); err != nil {
			a.logger.Warn("write csv report", zap.Error(err))
		}
		return
	}

	fmtr := a.service.Money()
	s := report.Summary
	writeJSON(w, http.StatusOK, map[string]any{
		"report": report,
		"display": map[string]string{
			"cash_total":         fmtr.Format(s.CashTotal),
			"card_total":         fmtr.Format(s.CardTotal),
			"meal_card_total":    fmtr.Format(s.MealCardTotal),
			"store_credit_total": fmtr.Format(s.StoreCreditTotal),
			"refund_total":       fmtr.Format(s.RefundTotal),
			"net_total":          fmtr.Format(s.NetTotal),
		},
	})
}

func writeReportCSV(w io.Writer, report domain.DailyReport, fmtr *money.Formatter) error {
	s := report.Summary
	rows := [][]string{
		{"section", "key", "value", "display"},
		{"report", "date", report.Date, ""},
		{"report", "branch", report.Branch, ""},
		{"report", "source", report.Source, ""},
		{"summary", "count", strconv.Itoa(s.Count), ""},
		{"summary", "cash_total", s.CashTotal.StringFixed(domain.MoneyPlaces), fmtr.Format(s.CashTotal)},
		{"summary", "card_total", s.CardTotal.StringFixed(domain.MoneyPlaces), fmtr.Format(s.CardTotal)},
		{"summary", "meal_card_total", s.MealCardTotal.StringFixed(domain.MoneyPlaces), fmtr.Format(s.MealCardTotal)},
		{"summary", "store_credit_total", s.StoreCreditTotal.StringFixed(domain.MoneyPlaces), fmtr.Format(s.StoreCreditTotal)},
		{"summary", "refund_total", s.RefundTotal.StringFixed(domain.MoneyPlaces), fmtr.Format(s.RefundTotal)},
		{"summary", "net_total", s.NetTotal.StringFixed(domain.MoneyPlaces), fmtr.Format(s.NetTotal)},
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
