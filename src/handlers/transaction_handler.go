package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/username/kncbank/web/src/bankapi"
	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/models"
	"github.com/username/kncbank/web/src/recipient"
	"github.com/username/kncbank/web/src/services"
	"github.com/username/kncbank/web/src/session"
	"github.com/username/kncbank/web/src/submitter"
	"github.com/username/kncbank/web/src/utils"
)

// Balances is the snapshot cache as the form pages use it.
type Balances interface {
	Refresh(ctx context.Context, identity models.Identity) (models.AccountSnapshot, error)
}

// TransactionHandler serves the withdraw, deposit, send-money and pay-bills
// forms of each session's workspace.
type TransactionHandler struct {
	workspaces *submitter.Registry
	balances   Balances
	accounts   services.AccountService
	guard      *session.Guard
	currency   string
}

func NewTransactionHandler(workspaces *submitter.Registry, balances Balances, accounts services.AccountService, guard *session.Guard, currency string) *TransactionHandler {
	return &TransactionHandler{
		workspaces: workspaces,
		balances:   balances,
		accounts:   accounts,
		guard:      guard,
		currency:   currency,
	}
}

type fieldsView struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient,omitempty"`
	Company   string `json:"company,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

func toFieldsView(in submitter.Input) fieldsView {
	return fieldsView{Amount: in.Amount, Recipient: in.Recipient, Company: in.Company, Notes: in.Notes}
}

type formView struct {
	Kind           models.TransactionKind `json:"kind"`
	Title          string                 `json:"title"`
	State          string                 `json:"state"`
	SubmitDisabled bool                   `json:"submit_disabled"`
	Fields         fieldsView             `json:"fields"`
	Balance        string                 `json:"balance,omitempty"`
	BalanceDisplay string                 `json:"balance_display,omitempty"`
	Recipient      *recipient.Indicator   `json:"recipient,omitempty"`
	Companies      []models.Company       `json:"companies,omitempty"`
	CompaniesError string                 `json:"companies_error,omitempty"`
}

// kindFromSlug maps "send-money" style path segments onto submittable kinds.
func kindFromSlug(slug string) (models.TransactionKind, bool) {
	k, err := models.ParseKind(strings.ReplaceAll(slug, "-", "_"))
	if err != nil || k == models.KindReceiveMoney {
		return "", false
	}
	return k, true
}

func (h *TransactionHandler) form(w http.ResponseWriter, r *http.Request, sess session.Session) (*submitter.Workspace, *submitter.Form, bool) {
	kind, ok := kindFromSlug(chi.URLParam(r, "kind"))
	if !ok {
		utils.SendJSONError(w, "Unknown form", http.StatusNotFound)
		return nil, nil, false
	}
	ws := h.workspaces.Get(sess.ID, sess.Identity)
	return ws, ws.Form(kind), true
}

// submitDisabled is true while the form is busy and, for send-money, until
// the recipient field holds a positively resolved username.
func submitDisabled(ws *submitter.Workspace, f *submitter.Form) bool {
	if f.State().Busy() {
		return true
	}
	if f.Kind() == models.KindSendMoney {
		return !ws.Recipient.Resolved(f.Fields().Recipient)
	}
	return false
}

func (h *TransactionHandler) view(ws *submitter.Workspace, f *submitter.Form) formView {
	v := formView{
		Kind:           f.Kind(),
		Title:          f.Kind().Label(),
		State:          f.State().String(),
		SubmitDisabled: submitDisabled(ws, f),
		Fields:         toFieldsView(f.Fields()),
	}
	if f.Kind() == models.KindSendMoney {
		ind := ws.Recipient.Current()
		v.Recipient = &ind
	}
	return v
}

// HandleGetForm is page entry: a finished form is left, the balance is
// re-read and pay-bills gets its company list.
func (h *TransactionHandler) HandleGetForm(w http.ResponseWriter, r *http.Request, sess session.Session) {
	ws, f, ok := h.form(w, r, sess)
	if !ok {
		return
	}
	f.Leave()

	snap, err := h.balances.Refresh(r.Context(), sess.Identity)
	if err != nil {
		sendSnapshotError(w, r, h.guard, err)
		return
	}
	v := h.view(ws, f)
	v.Balance = snap.Balance.StringFixed(2)
	v.BalanceDisplay = utils.FormatMoney(h.currency, snap.Balance)

	if f.Kind() == models.KindPayBills {
		companies, err := h.accounts.Companies(r.Context())
		if err != nil {
			logger.FromContext(r.Context()).Warn("Company list unavailable", "error", err)
			v.CompaniesError = services.UserMessage(err)
		} else {
			v.Companies = companies
		}
	}
	utils.SendJSON(w, v, http.StatusOK)
}

type formRequest struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
	Company   string `json:"company"`
	Notes     string `json:"notes"`
}

func (fr formRequest) input() submitter.Input {
	return submitter.Input{Amount: fr.Amount, Recipient: fr.Recipient, Company: fr.Company, Notes: fr.Notes}
}

// HandleEditForm records the fields as typed. A rejected amount keystroke
// is reported and the previous amount kept.
func (h *TransactionHandler) HandleEditForm(w http.ResponseWriter, r *http.Request, sess session.Session) {
	ws, f, ok := h.form(w, r, sess)
	if !ok {
		return
	}
	var req formRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	_, accepted := f.Edit(req.input())
	utils.SendJSON(w, struct {
		Accepted bool `json:"accepted"`
		formView
	}{accepted, h.view(ws, f)}, http.StatusOK)
}

type submitResponse struct {
	Message        string `json:"message"`
	NewBalance     string `json:"new_balance"`
	BalanceDisplay string `json:"balance_display"`
	TransactionID  string `json:"transaction_id,omitempty"`
	State          string `json:"state"`
	Navigation
}

type submitError struct {
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
	State  string `json:"state"`
	Retry  bool   `json:"retry,omitempty"`
}

func (h *TransactionHandler) HandleSubmitForm(w http.ResponseWriter, r *http.Request, sess session.Session) {
	_, f, ok := h.form(w, r, sess)
	if !ok {
		return
	}
	var req formRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := f.Submit(r.Context(), req.input())
	if err != nil {
		resp := submitError{Detail: submitter.UserMessage(err), State: f.State().String()}
		var ve *submitter.ValidationError
		status := http.StatusBadGateway
		switch {
		case errors.As(err, &ve):
			resp.Field = ve.Field
			status = http.StatusUnprocessableEntity
		case errors.Is(err, submitter.ErrSubmissionInFlight):
			status = http.StatusConflict
		case bankapi.IsTransport(err):
			resp.Retry = true
		default:
			if rej, ok := bankapi.AsRejection(err); ok && rej.Status >= 400 && rej.Status < 500 {
				status = rej.Status
			}
		}
		utils.SendJSON(w, resp, status)
		return
	}

	utils.SendJSON(w, submitResponse{
		Message:        out.Message,
		NewBalance:     out.NewBalance.StringFixed(2),
		BalanceDisplay: utils.FormatMoney(h.currency, out.NewBalance),
		TransactionID:  out.TransactionID,
		State:          f.State().String(),
		Navigation:     navigate(out.Redirect, out.Delay),
	}, http.StatusOK)
}

type recipientResponse struct {
	recipient.Indicator
	Superseded     bool `json:"superseded,omitempty"`
	SubmitDisabled bool `json:"submit_disabled"`
}

// HandleValidateRecipient is called on every change of the recipient field.
// It waits out the quiet period; a request overtaken by newer input answers
// with superseded set and the indicator as it currently stands.
func (h *TransactionHandler) HandleValidateRecipient(w http.ResponseWriter, r *http.Request, sess session.Session) {
	var req struct {
		Recipient string `json:"recipient"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ws := h.workspaces.Get(sess.ID, sess.Identity)
	f := ws.Form(models.KindSendMoney)

	fields := f.Fields()
	fields.Recipient = req.Recipient
	f.Edit(fields)

	ind, err := ws.Recipient.Trigger(r.Context(), req.Recipient)
	switch {
	case errors.Is(err, recipient.ErrSuperseded):
		utils.SendJSON(w, recipientResponse{Indicator: ws.Recipient.Current(), Superseded: true, SubmitDisabled: submitDisabled(ws, f)}, http.StatusOK)
	case err != nil:
		// The browser went away; nobody is left to answer.
		logger.FromContext(r.Context()).Debug("Recipient check abandoned", "error", err)
	default:
		utils.SendJSON(w, recipientResponse{Indicator: ind, SubmitDisabled: submitDisabled(ws, f)}, http.StatusOK)
	}
}

func (h *TransactionHandler) HandleGetRecipient(w http.ResponseWriter, r *http.Request, sess session.Session) {
	ws := h.workspaces.Get(sess.ID, sess.Identity)
	utils.SendJSON(w, recipientResponse{
		Indicator:      ws.Recipient.Current(),
		SubmitDisabled: submitDisabled(ws, ws.Form(models.KindSendMoney)),
	}, http.StatusOK)
}
