package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/kncbank/web/src/bankapi"
	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/model"
	"github.com/username/kncbank/web/src/models"
	"github.com/username/kncbank/web/src/security/validation"
	"github.com/username/kncbank/web/src/utils"
)

const (
	MsgFillAllFields    = "Please fill in all fields"
	MsgPINMismatch      = "PINs do not match!"
	MsgPINTooShort      = "PIN must be at least 4 characters"
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgConnectionFailed = "Failed to connect to server. Please try again."
	MsgSomethingWrong   = "Something went wrong"
	MsgProfileFailed    = "Failed to update profile"
	MsgProfileLoad      = "Failed to load profile"
	MsgCompaniesFailed  = "Failed to load companies"
	MsgHistoryFailed    = "Failed to load transactions"

	minPINLength = 4

	ckCompanies = "companies"

	DefaultCompaniesTTL = time.Hour
)

// InputError is a form problem caught before the account service is called.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return e.Message }

// CallError is a failed account service call together with the text the
// page shows for it.
type CallError struct {
	Message string
	Err     error
}

func (e *CallError) Error() string { return e.Message + ": " + e.Err.Error() }
func (e *CallError) Unwrap() error { return e.Err }

// UserMessage returns the text a page shows for err.
func UserMessage(err error) string {
	var ie *InputError
	if errors.As(err, &ie) {
		return ie.Message
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return MsgSomethingWrong
}

// describe picks the service's own reason, the connectivity message, or fallback.
func describe(err error, fallback string) string {
	if rej, ok := bankapi.AsRejection(err); ok {
		return rej.MessageOr(fallback)
	}
	if bankapi.IsTransport(err) {
		return MsgConnectionFailed
	}
	return fallback
}

// Snapshots is the balance and history cache as the pages see it.
type Snapshots interface {
	Refresh(ctx context.Context, identity models.Identity) (models.AccountSnapshot, error)
	Transactions(ctx context.Context, identity models.Identity, limit int) ([]models.TransactionRecord, error)
	Invalidate(identity models.Identity)
}

type AccountServiceConfig struct {
	Currency       string
	DashboardLimit int
	HistoryLimit   int
	CompaniesTTL   time.Duration
}

type accountServiceImpl struct {
	api       AccountAPI
	snapshots Snapshots
	db        *sql.DB
	cfg       AccountServiceConfig
	companies *cache.Cache
}

// NewAccountService wires the pages to the account service. db holds the
// submission journal and may be nil.
func NewAccountService(api AccountAPI, snapshots Snapshots, db *sql.DB, cfg AccountServiceConfig) AccountService {
	if cfg.Currency == "" {
		cfg.Currency = "PHP"
	}
	if cfg.CompaniesTTL <= 0 {
		cfg.CompaniesTTL = DefaultCompaniesTTL
	}
	return &accountServiceImpl{
		api:       api,
		snapshots: snapshots,
		db:        db,
		cfg:       cfg,
		companies: cache.New(cfg.CompaniesTTL, 2*cfg.CompaniesTTL),
	}
}

func (s *accountServiceImpl) Login(ctx context.Context, creds models.Credentials) (models.Identity, error) {
	creds.Username = validation.SanitizeUsername(creds.Username)
	if creds.Username == "" || creds.PIN == "" {
		return "", &InputError{Field: "username", Message: MsgFillAllFields}
	}
	identity, err := s.api.Login(ctx, creds)
	if err != nil {
		logger.FromContext(ctx).Info("Login rejected", "username", creds.Username, "error", err)
		return "", &CallError{Message: describe(err, MsgSomethingWrong), Err: err}
	}
	// A new session never trusts a balance cached by an earlier one.
	s.snapshots.Invalidate(identity)
	return identity, nil
}

func (s *accountServiceImpl) Signup(ctx context.Context, su models.Signup, confirmPIN string) error {
	su.FirstName = strings.TrimSpace(su.FirstName)
	su.LastName = strings.TrimSpace(su.LastName)
	su.Email = strings.TrimSpace(su.Email)
	su.Username = validation.SanitizeUsername(su.Username)
	if su.FirstName == "" || su.LastName == "" || su.Email == "" || su.Username == "" || su.PIN == "" || confirmPIN == "" {
		return &InputError{Message: MsgFillAllFields}
	}
	if su.PIN != confirmPIN {
		return &InputError{Field: "confirm_pin", Message: MsgPINMismatch}
	}
	if len(su.PIN) < minPINLength {
		return &InputError{Field: "pin", Message: MsgPINTooShort}
	}
	if err := s.api.Signup(ctx, su); err != nil {
		return &CallError{Message: describe(err, MsgSomethingWrong), Err: err}
	}
	logger.FromContext(ctx).Info("Account created", "username", su.Username)
	return nil
}

// Dashboard reads the balance and the latest records in parallel. A failed
// balance read fails the page; failed records only blank the list.
func (s *accountServiceImpl) Dashboard(ctx context.Context, identity models.Identity) (*Dashboard, error) {
	var (
		wg      sync.WaitGroup
		snap    models.AccountSnapshot
		snapErr error
		records []models.TransactionRecord
		recErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		snap, snapErr = s.snapshots.Refresh(ctx, identity)
	}()
	go func() {
		defer wg.Done()
		records, recErr = s.snapshots.Transactions(ctx, identity, s.cfg.DashboardLimit)
	}()
	wg.Wait()

	if snapErr != nil {
		return nil, fmt.Errorf("dashboard balance: %w", snapErr)
	}
	d := &Dashboard{
		Username:       identity.String(),
		Balance:        snap.Balance.StringFixed(2),
		BalanceDisplay: utils.FormatMoney(s.cfg.Currency, snap.Balance),
		AsOf:           snap.AsOf,
		Recent:         []RecordView{},
	}
	if recErr != nil {
		logger.FromContext(ctx).Warn("Dashboard transactions unavailable", "error", recErr)
		d.RecentError = MsgHistoryFailed
		return d, nil
	}
	if s.cfg.DashboardLimit > 0 && len(records) > s.cfg.DashboardLimit {
		records = records[:s.cfg.DashboardLimit]
	}
	d.Recent = s.views(records)
	return d, nil
}

func (s *accountServiceImpl) History(ctx context.Context, identity models.Identity, kind models.TransactionKind, term string) ([]RecordView, error) {
	records, err := s.snapshots.Transactions(ctx, identity, s.cfg.HistoryLimit)
	if err != nil {
		return nil, &CallError{Message: MsgHistoryFailed, Err: err}
	}
	return s.views(models.FilterRecords(records, kind, term)), nil
}

func (s *accountServiceImpl) Companies(ctx context.Context) ([]models.Company, error) {
	if v, found := s.companies.Get(ckCompanies); found {
		return v.([]models.Company), nil
	}
	companies, err := s.api.ListCompanies(ctx)
	if err != nil {
		return nil, &CallError{Message: describe(err, MsgCompaniesFailed), Err: err}
	}
	s.companies.SetDefault(ckCompanies, companies)
	return companies, nil
}

func (s *accountServiceImpl) Profile(ctx context.Context, identity models.Identity) (models.Profile, error) {
	p, err := s.api.GetProfile(ctx, identity)
	if err != nil {
		return models.Profile{}, &CallError{Message: describe(err, MsgProfileLoad), Err: err}
	}
	return p, nil
}

func (s *accountServiceImpl) UpdateProfile(ctx context.Context, identity models.Identity, upd models.ProfileUpdate) (models.Profile, error) {
	upd.FirstName = strings.TrimSpace(upd.FirstName)
	upd.LastName = strings.TrimSpace(upd.LastName)
	upd.Email = strings.TrimSpace(upd.Email)
	if upd.FirstName == "" || upd.LastName == "" || upd.Email == "" {
		return models.Profile{}, &InputError{Message: MsgFillAllFields}
	}
	if !validation.IsEmail(upd.Email) {
		return models.Profile{}, &InputError{Field: "email", Message: MsgInvalidEmail}
	}
	p, err := s.api.UpdateProfile(ctx, identity, upd)
	if err != nil {
		return models.Profile{}, &CallError{Message: describe(err, MsgProfileFailed), Err: err}
	}
	logger.FromContext(ctx).Info("Profile updated", "identity", identity.String())
	return p, nil
}

func (s *accountServiceImpl) Journal(ctx context.Context, identity models.Identity, limit int) ([]model.SubmissionEntry, error) {
	if s.db == nil {
		return []model.SubmissionEntry{}, nil
	}
	entries, err := model.ListSubmissions(s.db, identity.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read submission journal: %w", err)
	}
	if entries == nil {
		entries = []model.SubmissionEntry{}
	}
	return entries, nil
}

func (s *accountServiceImpl) Forget(identity models.Identity) {
	s.snapshots.Invalidate(identity)
}

func (s *accountServiceImpl) views(records []models.TransactionRecord) []RecordView {
	out := make([]RecordView, 0, len(records))
	for _, r := range records {
		out = append(out, NewRecordView(s.cfg.Currency, r))
	}
	return out
}

// NewRecordView formats r for the history list: credits are signed "+",
// everything else "-".
func NewRecordView(currency string, r models.TransactionRecord) RecordView {
	v := RecordView{
		ReferenceNumber: r.ReferenceNumber,
		Type:            r.Type,
		Title:           r.DisplayName(),
		Amount:          utils.FormatMoney(currency, r.Amount),
		Credit:          r.Type.IsCredit(),
		Description:     r.Description,
		Date:            r.Date,
		Time:            r.Time,
		Notes:           r.Notes,
	}
	if v.Credit {
		v.SignedAmount = "+" + v.Amount
	} else {
		v.SignedAmount = "-" + v.Amount
	}
	if !r.Timestamp.IsZero() {
		ts := r.Timestamp
		v.Timestamp = &ts
	}
	switch r.Type {
	case models.KindSendMoney:
		v.Counterparty = r.Recipient
	case models.KindReceiveMoney:
		v.Counterparty = r.Sender
	case models.KindPayBills:
		v.Counterparty = r.Company
	}
	return v
}
