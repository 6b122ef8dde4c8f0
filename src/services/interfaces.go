package services

import (
	"context"
	"time"

	"github.com/username/kncbank/web/src/model"
	"github.com/username/kncbank/web/src/models"
)

// AccountAPI is the slice of the account service the pages call directly.
// Balance and history reads go through the snapshot cache instead.
type AccountAPI interface {
	Login(ctx context.Context, creds models.Credentials) (models.Identity, error)
	Signup(ctx context.Context, s models.Signup) error
	ListCompanies(ctx context.Context) ([]models.Company, error)
	GetProfile(ctx context.Context, identity models.Identity) (models.Profile, error)
	UpdateProfile(ctx context.Context, identity models.Identity, upd models.ProfileUpdate) (models.Profile, error)
}

// RecordView is a history entry prepared for display.
type RecordView struct {
	ReferenceNumber string                 `json:"reference_number"`
	Type            models.TransactionKind `json:"type"`
	Title           string                 `json:"title"`
	Amount          string                 `json:"amount"`
	SignedAmount    string                 `json:"signed_amount"`
	Credit          bool                   `json:"credit"`
	Description     string                 `json:"description"`
	Date            string                 `json:"date"`
	Time            string                 `json:"time"`
	Timestamp       *time.Time             `json:"timestamp,omitempty"`
	Counterparty    string                 `json:"counterparty,omitempty"`
	Notes           string                 `json:"notes,omitempty"`
}

// Dashboard is the landing page: balance plus the most recent records.
// RecentError is set when the balance loaded but the records did not.
type Dashboard struct {
	Username       string       `json:"username"`
	Balance        string       `json:"balance"`
	BalanceDisplay string       `json:"balance_display"`
	AsOf           time.Time    `json:"as_of"`
	Recent         []RecordView `json:"recent"`
	RecentError    string       `json:"recent_error,omitempty"`
}

// AccountService defines what the account pages need.
type AccountService interface {
	Login(ctx context.Context, creds models.Credentials) (models.Identity, error)
	Signup(ctx context.Context, s models.Signup, confirmPIN string) error
	Dashboard(ctx context.Context, identity models.Identity) (*Dashboard, error)
	History(ctx context.Context, identity models.Identity, kind models.TransactionKind, term string) ([]RecordView, error)
	Companies(ctx context.Context) ([]models.Company, error)
	Profile(ctx context.Context, identity models.Identity) (models.Profile, error)
	UpdateProfile(ctx context.Context, identity models.Identity, upd models.ProfileUpdate) (models.Profile, error)
	Journal(ctx context.Context, identity models.Identity, limit int) ([]model.SubmissionEntry, error)
	// Forget drops everything cached for identity, e.g. on login or logout.
	Forget(identity models.Identity)
}
