package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/playgrid/fieldbook/analytics"
	"github.com/playgrid/fieldbook/utils"
)

type ReportHandler struct {
	reporter *analytics.Reporter
}

func CreateReportHandler(reporter *analytics.Reporter) *ReportHandler {
	return &ReportHandler{reporter: reporter}
}

func (h *ReportHandler) HandleRevenueReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, to := query.Get("from"), query.Get("to")

	if err := utils.ValidateDate(from, "from"); err != nil {
		writeError(w, utils.ValidationErrors{*err})
		return
	}
	if err := utils.ValidateDate(to, "to"); err != nil {
		writeError(w, utils.ValidationErrors{*err})
		return
	}

	report, err := h.reporter.GetRevenueReport(r.Context(), query.Get("field_id"), from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *ReportHandler) HandleUtilization(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	date := r.URL.Query().Get("date")

	if err := utils.ValidateDate(date, "date"); err != nil {
		writeError(w, utils.ValidationErrors{*err})
		return
	}

	report, err := h.reporter.GetUtilization(r.Context(), vars["fieldID"], date)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *ReportHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/reports/revenue", h.HandleRevenueReport).Methods("GET")
	router.HandleFunc("/fields/{fieldID}/utilization", h.HandleUtilization).Methods("GET")
}
