package services

import (
	"context"
	"fmt"
	"time"

	"github.com/username/kncbank/web/src/models"
	"github.com/username/kncbank/web/src/submitter"
	"github.com/username/kncbank/web/src/utils"
)

// ProfileSource finds where a receipt goes.
type ProfileSource interface {
	GetProfile(ctx context.Context, identity models.Identity) (models.Profile, error)
}

// ReceiptNotifier e-mails a receipt for every confirmed transaction.
type ReceiptNotifier struct {
	profiles ProfileSource
	email    EmailService
	currency string
	now      func() time.Time
}

func NewReceiptNotifier(profiles ProfileSource, email EmailService, currency string) *ReceiptNotifier {
	return &ReceiptNotifier{profiles: profiles, email: email, currency: currency, now: time.Now}
}

var _ submitter.Notifier = (*ReceiptNotifier)(nil)

func (n *ReceiptNotifier) TransactionConfirmed(ctx context.Context, req models.TransactionRequest, out submitter.Outcome) error {
	profile, err := n.profiles.GetProfile(ctx, req.Actor)
	if err != nil {
		return fmt.Errorf("failed to look up receipt address: %w", err)
	}
	if profile.Email == "" {
		return nil
	}
	name := profile.FullName()
	if name == "" {
		name = req.Actor.String()
	}
	r := Receipt{
		Kind:       req.Kind,
		Amount:     utils.FormatMoney(n.currency, out.Amount),
		NewBalance: utils.FormatMoney(n.currency, out.NewBalance),
		Reference:  out.TransactionID,
		Notes:      req.Notes,
		Message:    out.Message,
		When:       n.now(),
	}
	switch req.Kind {
	case models.KindSendMoney:
		r.Counterparty = req.Recipient.String()
	case models.KindPayBills:
		r.Counterparty = req.Company
	}
	return n.email.SendTransactionReceipt(profile.Email, name, r)
}
