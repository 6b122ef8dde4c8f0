// Package submitter runs the withdraw, deposit, send-money and pay-bills
// forms: local validation against the cached balance, exactly one mutating
// call to the account service, and reconciliation with the balance it
// confirms.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/username/kncbank/web/src/amount"
	"github.com/username/kncbank/web/src/bankapi"
	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/model"
	"github.com/username/kncbank/web/src/models"
	"github.com/username/kncbank/web/src/security/validation"
	"github.com/username/kncbank/web/src/utils"
)

const (
	MsgNetworkError       = "Network error. Please try again."
	MsgInvalidAmount      = "Please enter a valid amount"
	MsgNonPositiveAmount  = "Amount must be greater than zero"
	MsgInsufficientFunds  = "Insufficient funds"
	MsgRecipientRequired  = "Please enter a recipient username"
	MsgRecipientInvalid   = "Please enter a valid recipient username"
	MsgRecipientSelf      = "Cannot send money to yourself"
	MsgCompanyRequired    = "Please select a company to pay"
	MsgBalanceUnavailable = "Unable to load your balance. Please try again."
)

// DashboardPath is where a successful form navigates.
const DashboardPath = "/dashboard"

// ValidationError is a local, correctable problem found before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// FailureError is a submission that reached (or tried to reach) the account
// service and did not succeed. Message is what the form shows.
type FailureError struct {
	Message string
	Err     error
}

func (e *FailureError) Error() string { return e.Message + ": " + e.Err.Error() }
func (e *FailureError) Unwrap() error { return e.Err }

// UserMessage returns the text a form shows for err.
func UserMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe.Message
	}
	if errors.Is(err, ErrSubmissionInFlight) {
		return "Your transaction is still being processed."
	}
	return MsgNetworkError
}

// Gateway performs the single mutating call.
type Gateway interface {
	Submit(ctx context.Context, req models.TransactionRequest) (models.Confirmation, error)
}

// Balances is the snapshot cache as seen by the submitter.
type Balances interface {
	Current(id models.Identity) (models.AccountSnapshot, bool)
	Load(ctx context.Context, id models.Identity) (models.AccountSnapshot, error)
	ApplyConfirmed(id models.Identity, newBalance decimal.Decimal) models.AccountSnapshot
	Invalidate(id models.Identity)
}

// Journal records finished submissions. Failures are logged, never surfaced.
type Journal interface {
	Record(ctx context.Context, entry *model.SubmissionEntry) error
}

// Notifier is told about every confirmed transaction, e.g. to send a receipt.
type Notifier interface {
	TransactionConfirmed(ctx context.Context, req models.TransactionRequest, out Outcome) error
}

// RecipientCheck is the send-money form's view of the recipient validator.
type RecipientCheck interface {
	Resolved(input string) bool
	Reset()
}

// Input holds the raw form fields as the browser posted them.
type Input struct {
	Amount    string
	Recipient string
	Company   string
	Notes     string
}

// Outcome is a confirmed submission.
type Outcome struct {
	CorrelationID string
	Kind          models.TransactionKind
	Amount        decimal.Decimal
	Message       string
	NewBalance    decimal.Decimal
	TransactionID string
	Redirect      string
	Delay         time.Duration
}

type kindSpec struct {
	failure string
	delay   time.Duration
	success func(currency string, req models.TransactionRequest) string
}

var kinds = map[models.TransactionKind]kindSpec{
	models.KindWithdraw: {
		failure: "Withdrawal failed",
		delay:   2 * time.Second,
		success: func(cur string, r models.TransactionRequest) string {
			return "Successfully withdrew " + utils.FormatPlain(cur, r.Amount)
		},
	},
	models.KindDeposit: {
		failure: "Deposit failed",
		delay:   2 * time.Second,
		success: func(cur string, r models.TransactionRequest) string {
			return "Successfully deposited " + utils.FormatPlain(cur, r.Amount)
		},
	},
	models.KindSendMoney: {
		failure: "Transfer failed",
		delay:   3 * time.Second,
		success: func(cur string, r models.TransactionRequest) string {
			return fmt.Sprintf("Successfully sent %s to %s", utils.FormatPlain(cur, r.Amount), r.Recipient)
		},
	},
	models.KindPayBills: {
		failure: "Payment failed",
		delay:   3 * time.Second,
		success: func(cur string, r models.TransactionRequest) string {
			return fmt.Sprintf("Successfully paid %s to %s", utils.FormatPlain(cur, r.Amount), r.Company)
		},
	},
}

// Submitter holds what every form shares.
type Submitter struct {
	gateway  Gateway
	balances Balances
	journal  Journal
	notifier Notifier
	currency string
	delays   map[models.TransactionKind]time.Duration
}

type Option func(*Submitter)

func WithJournal(j Journal) Option   { return func(s *Submitter) { s.journal = j } }
func WithNotifier(n Notifier) Option { return func(s *Submitter) { s.notifier = n } }
func WithCurrency(c string) Option   { return func(s *Submitter) { s.currency = c } }

// WithDelay overrides how long the success message stays before navigating.
func WithDelay(kind models.TransactionKind, d time.Duration) Option {
	return func(s *Submitter) { s.delays[kind] = d }
}

func New(gateway Gateway, balances Balances, opts ...Option) *Submitter {
	s := &Submitter{
		gateway:  gateway,
		balances: balances,
		currency: "PHP",
		delays:   make(map[models.TransactionKind]time.Duration, len(kinds)),
	}
	for k, spec := range kinds {
		s.delays[k] = spec.delay
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewForm returns the form for one kind and actor. recipients is required
// for KindSendMoney and ignored otherwise.
func (s *Submitter) NewForm(kind models.TransactionKind, actor models.Identity, recipients RecipientCheck) (*Form, error) {
	if _, ok := kinds[kind]; !ok {
		return nil, fmt.Errorf("kind %q cannot be submitted", kind)
	}
	if kind == models.KindSendMoney && recipients == nil {
		return nil, errors.New("send money form needs a recipient check")
	}
	return &Form{
		s:          s,
		kind:       kind,
		actor:      actor,
		recipients: recipients,
		state:      newGate(),
	}, nil
}

// Form is one transaction form of one session.
type Form struct {
	s          *Submitter
	kind       models.TransactionKind
	actor      models.Identity
	recipients RecipientCheck
	state      gate

	mu     sync.Mutex
	fields Input
}

func (f *Form) Kind() models.TransactionKind { return f.kind }
func (f *Form) State() State                 { return f.state.Load() }

// Fields returns the values the form should display.
func (f *Form) Fields() Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// Leave marks navigation away from a finished form.
func (f *Form) Leave() {
	f.state.transition(StateSucceeded, StateIdle)
}

// Edit records a change made while the user is typing. A failed form goes
// back to Idle. It reports whether the amount keystroke was accepted and
// returns the fields the form now shows.
func (f *Form) Edit(in Input) (Input, bool) {
	ok := f.record(in)
	f.state.transition(StateFailed, StateIdle)
	return f.Fields(), ok
}

// record stores the posted fields. An amount that is not a partial decimal
// is refused and the previous value kept.
func (f *Form) record(in Input) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ok := amount.Valid(strings.TrimSpace(in.Amount))
	f.fields.Amount = amount.Accept(f.fields.Amount, strings.TrimSpace(in.Amount))
	f.fields.Recipient = in.Recipient
	f.fields.Company = in.Company
	f.fields.Notes = in.Notes
	return ok
}

func (f *Form) clear() {
	f.mu.Lock()
	f.fields = Input{}
	f.mu.Unlock()
}

// Submit validates in and, if it passes, issues exactly one mutating call.
// A second Submit while one is running fails with ErrSubmissionInFlight
// without touching the network.
func (f *Form) Submit(ctx context.Context, in Input) (Outcome, error) {
	if err := f.state.begin(); err != nil {
		return Outcome{}, err
	}

	req, err := f.validate(ctx, in)
	if err != nil {
		f.state.set(StateIdle)
		return Outcome{}, err
	}
	if !f.state.transition(StateValidating, StateSubmitting) {
		return Outcome{}, ErrSubmissionInFlight
	}

	correlationID := uuid.NewString()
	log := logger.FromContext(ctx).With("correlationID", correlationID, "kind", string(f.kind), "identity", f.actor.String())
	log.Info("Submitting transaction", "amount", req.Amount.StringFixed(2))

	conf, err := f.s.gateway.Submit(ctx, req)
	if err != nil {
		return Outcome{}, f.fail(ctx, log, correlationID, req, err)
	}

	f.s.balances.ApplyConfirmed(f.actor, conf.NewBalance)
	f.clear()
	if f.recipients != nil {
		f.recipients.Reset()
	}
	out := Outcome{
		CorrelationID: correlationID,
		Kind:          f.kind,
		Amount:        req.Amount,
		Message:       kinds[f.kind].success(f.s.currency, req),
		NewBalance:    conf.NewBalance,
		TransactionID: conf.TransactionID,
		Redirect:      DashboardPath,
		Delay:         f.s.delays[f.kind],
	}
	f.state.set(StateSucceeded)
	log.Info("Transaction confirmed", "reference", conf.TransactionID, "newBalance", conf.NewBalance.StringFixed(2))

	f.journal(ctx, log, &model.SubmissionEntry{
		CorrelationID:   correlationID,
		Outcome:         model.OutcomeSucceeded,
		ReferenceNumber: conf.TransactionID,
		NewBalance:      conf.NewBalance.StringFixed(2),
		Message:         out.Message,
	}, req)
	if f.s.notifier != nil {
		go func(ctx context.Context) {
			if err := f.s.notifier.TransactionConfirmed(ctx, req, out); err != nil {
				log.Warn("Failed to send transaction receipt", "error", err)
			}
		}(context.WithoutCancel(ctx))
	}
	return out, nil
}

func (f *Form) fail(ctx context.Context, log *slog.Logger, correlationID string, req models.TransactionRequest, err error) error {
	entry := &model.SubmissionEntry{CorrelationID: correlationID}
	var failure *FailureError
	if rej, ok := bankapi.AsRejection(err); ok {
		failure = &FailureError{Message: rej.MessageOr(kinds[f.kind].failure), Err: err}
		entry.Outcome = model.OutcomeRejected
		f.state.set(StateFailed)
		log.Warn("Transaction rejected", "status", rej.Status, "detail", rej.Detail)
	} else {
		// The call may or may not have landed; the next page must refetch.
		f.s.balances.Invalidate(f.actor)
		failure = &FailureError{Message: MsgNetworkError, Err: err}
		entry.Outcome = model.OutcomeTransport
		f.state.set(StateIdle)
		log.Error("Transaction did not complete", "error", err)
	}
	entry.Message = failure.Message
	f.journal(ctx, log, entry, req)
	return failure
}

func (f *Form) journal(ctx context.Context, log *slog.Logger, e *model.SubmissionEntry, req models.TransactionRequest) {
	if f.s.journal == nil {
		return
	}
	e.Username = f.actor.String()
	e.Kind = string(f.kind)
	e.Amount = req.Amount.StringFixed(2)
	switch f.kind {
	case models.KindSendMoney:
		e.Counterparty = req.Recipient.String()
	case models.KindPayBills:
		e.Counterparty = req.Company
	}
	if err := f.s.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		log.Warn("Failed to journal submission", "error", err)
	}
}

// validate runs the ladder. The first failing rule wins.
func (f *Form) validate(ctx context.Context, in Input) (models.TransactionRequest, error) {
	amountOK := f.record(in)
	req := models.TransactionRequest{Kind: f.kind, Actor: f.actor}

	// Required fields.
	raw := strings.TrimSpace(in.Amount)
	switch f.kind {
	case models.KindSendMoney:
		req.Recipient = models.Identity(validation.SanitizeUsername(in.Recipient))
		if req.Recipient.IsZero() {
			return req, &ValidationError{Field: "recipient", Message: MsgRecipientRequired}
		}
	case models.KindPayBills:
		req.Company = strings.TrimSpace(in.Company)
		if req.Company == "" {
			return req, &ValidationError{Field: "company", Message: MsgCompanyRequired}
		}
	}
	if raw == "" {
		return req, &ValidationError{Field: "amount", Message: MsgInvalidAmount}
	}

	// Recipient resolved, never self.
	if f.kind == models.KindSendMoney {
		if req.Recipient == f.actor {
			return req, &ValidationError{Field: "recipient", Message: MsgRecipientSelf}
		}
		if !f.recipients.Resolved(req.Recipient.String()) {
			return req, &ValidationError{Field: "recipient", Message: MsgRecipientInvalid}
		}
	}

	// Well-formed, then positive.
	if !amountOK {
		return req, &ValidationError{Field: "amount", Message: MsgInvalidAmount}
	}
	value, err := amount.Parse(raw)
	switch {
	case errors.Is(err, amount.ErrNotPositive):
		return req, &ValidationError{Field: "amount", Message: MsgNonPositiveAmount}
	case err != nil:
		return req, &ValidationError{Field: "amount", Message: MsgInvalidAmount}
	}
	req.Amount = value

	// Bounded by the cached balance.
	if f.kind.DebitsBalance() {
		snap, ok := f.s.balances.Current(f.actor)
		if !ok {
			if snap, err = f.s.balances.Load(ctx, f.actor); err != nil {
				logger.FromContext(ctx).Warn("Balance unavailable for validation", "identity", f.actor.String(), "error", err)
				return req, &ValidationError{Field: "amount", Message: MsgBalanceUnavailable}
			}
		}
		if req.Amount.GreaterThan(snap.Balance) {
			return req, &ValidationError{Field: "amount", Message: MsgInsufficientFunds}
		}
	}

	if f.kind == models.KindSendMoney || f.kind == models.KindPayBills {
		req.Notes = validation.SanitizeNotes(in.Notes)
	}
	return req, nil
}
