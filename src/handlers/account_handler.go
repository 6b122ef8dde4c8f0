package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/models"
	"github.com/username/kncbank/web/src/services"
	"github.com/username/kncbank/web/src/session"
	"github.com/username/kncbank/web/src/utils"
)

const defaultJournalLimit = 20

// AccountHandler serves the read-only account pages.
type AccountHandler struct {
	accounts services.AccountService
	guard    *session.Guard
}

func NewAccountHandler(accounts services.AccountService, guard *session.Guard) *AccountHandler {
	return &AccountHandler{accounts: accounts, guard: guard}
}

func (h *AccountHandler) HandleGetDashboard(w http.ResponseWriter, r *http.Request, sess session.Session) {
	d, err := h.accounts.Dashboard(r.Context(), sess.Identity)
	if err != nil {
		sendSnapshotError(w, r, h.guard, err)
		return
	}
	utils.SendJSON(w, d, http.StatusOK)
}

type historyResponse struct {
	Filter  string                `json:"filter"`
	Search  string                `json:"search"`
	Filters []historyFilter       `json:"filters"`
	Records []services.RecordView `json:"records"`
}

type historyFilter struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var historyFilters = []historyFilter{
	{"all", "All"},
	{string(models.KindDeposit), models.KindDeposit.Label()},
	{string(models.KindWithdraw), models.KindWithdraw.Label()},
	{string(models.KindSendMoney), models.KindSendMoney.Label()},
	{string(models.KindReceiveMoney), models.KindReceiveMoney.Label()},
	{string(models.KindPayBills), models.KindPayBills.Label()},
}

// HandleGetHistory takes ?type= (one of the filter values, default all) and
// ?q= for a case-insensitive search.
func (h *AccountHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request, sess session.Session) {
	filter := strings.TrimSpace(r.URL.Query().Get("type"))
	search := r.URL.Query().Get("q")

	var kind models.TransactionKind
	if filter != "" && filter != "all" {
		k, err := models.ParseKind(filter)
		if err != nil {
			utils.SendJSONError(w, "Unknown transaction type", http.StatusBadRequest)
			return
		}
		kind = k
	}

	records, err := h.accounts.History(r.Context(), sess.Identity, kind, search)
	if err != nil {
		logger.FromContext(r.Context()).Warn("History unavailable", "error", err)
		utils.SendJSON(w, map[string]interface{}{"detail": services.UserMessage(err), "retry": true}, http.StatusServiceUnavailable)
		return
	}
	if filter == "" {
		filter = "all"
	}
	utils.SendJSON(w, historyResponse{
		Filter:  filter,
		Search:  search,
		Filters: historyFilters,
		Records: records,
	}, http.StatusOK)
}

func (h *AccountHandler) HandleGetCompanies(w http.ResponseWriter, r *http.Request, _ session.Session) {
	companies, err := h.accounts.Companies(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}
	utils.SendJSON(w, companies, http.StatusOK)
}

// HandleGetJournal lists this front-end's own record of submissions,
// including the ones the account service refused.
func (h *AccountHandler) HandleGetJournal(w http.ResponseWriter, r *http.Request, sess session.Session) {
	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			utils.SendJSONError(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := h.accounts.Journal(r.Context(), sess.Identity, limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to read journal", "error", err)
		utils.SendJSONError(w, "Failed to read submission history", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, entries, http.StatusOK)
}
