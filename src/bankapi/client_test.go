package bankapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/username/kncbank/web/src/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSubmitWithdrawSendsAmountAsNumber(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/withdraw" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad body %q: %v", body, err)
		}
		io.WriteString(w, `{"message":"Successfully withdrew PHP 250.00","new_balance":749.5,"transaction_id":"2025100001"}`)
	})

	conf, err := c.Submit(context.Background(), models.TransactionRequest{
		Kind:   models.KindWithdraw,
		Actor:  "alice",
		Amount: decimal.RequireFromString("250"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !conf.NewBalance.Equal(decimal.RequireFromString("749.5")) {
		t.Fatalf("NewBalance = %s", conf.NewBalance)
	}
	if conf.TransactionID != "2025100001" {
		t.Fatalf("TransactionID = %q", conf.TransactionID)
	}
	if got["username"] != "alice" {
		t.Fatalf("username = %v", got["username"])
	}
	if amt, ok := got["amount"].(float64); !ok || amt != 250 {
		t.Fatalf("amount = %#v, want number 250", got["amount"])
	}
}

func TestSubmitSendMoneyNotesNullWhenEmpty(t *testing.T) {
	var raw string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		io.WriteString(w, `{"message":"ok","new_balance":10,"transaction_id":"x"}`)
	})
	_, err := c.Submit(context.Background(), models.TransactionRequest{
		Kind:      models.KindSendMoney,
		Actor:     "alice",
		Recipient: "bob",
		Amount:    decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for _, want := range []string{`"sender_username":"alice"`, `"recipient_username":"bob"`, `"notes":null`} {
		if !strings.Contains(raw, want) {
			t.Fatalf("body %s missing %s", raw, want)
		}
	}
}

func TestRejectionCarriesDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail":"Insufficient funds"}`)
	})
	_, err := c.Submit(context.Background(), models.TransactionRequest{Kind: models.KindPayBills, Actor: "alice", Company: "Meralco", Amount: decimal.NewFromInt(1)})
	rej, ok := AsRejection(err)
	if !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
	if rej.Status != http.StatusBadRequest || rej.MessageOr("Payment failed") != "Insufficient funds" {
		t.Fatalf("rejection = %+v", rej)
	}
	if IsTransport(err) {
		t.Fatal("rejection must not be a transport failure")
	}
}

func TestValidationErrorDetailFallsBack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"detail":[{"loc":["body","amount"],"msg":"field required"}]}`)
	})
	_, err := c.Submit(context.Background(), models.TransactionRequest{Kind: models.KindDeposit, Actor: "alice", Amount: decimal.NewFromInt(1)})
	rej, ok := AsRejection(err)
	if !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
	if got := rej.MessageOr("Deposit failed"); got != "Deposit failed" {
		t.Fatalf("MessageOr = %q", got)
	}
}

func TestMalformedSuccessIsTransportFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok"}`)
	})
	_, err := c.Submit(context.Background(), models.TransactionRequest{Kind: models.KindWithdraw, Actor: "alice", Amount: decimal.NewFromInt(1)})
	if !IsTransport(err) || !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed transport failure, got %v", err)
	}
}

func TestTransportFailureWhenServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	c, err := NewClient(Options{BaseURL: url})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.GetBalance(context.Background(), "alice")
	if !IsTransport(err) {
		t.Fatalf("expected transport failure, got %v", err)
	}
}

func TestRecipientExists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/balance/bob":
			io.WriteString(w, `{"balance":1,"username":"bob"}`)
		case "/auth/balance/ghost":
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"detail":"User not found"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	ctx := context.Background()
	if ok, err := c.RecipientExists(ctx, "bob"); !ok || err != nil {
		t.Fatalf("bob: %v %v", ok, err)
	}
	if ok, err := c.RecipientExists(ctx, "ghost"); ok || err != nil {
		t.Fatalf("ghost: %v %v", ok, err)
	}
	if _, err := c.RecipientExists(ctx, "boom"); err == nil {
		t.Fatal("expected error for 500")
	}
}

func TestGetTransactionsDecodesRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("limit = %q", r.URL.Query().Get("limit"))
		}
		io.WriteString(w, `[{"reference_number":"2025100001","type":"pay_bills","amount":120.5,
			"description":"Bill payment to Meralco - PHP 120.50","timestamp":"10/14/2025 03:04 PM",
			"date":"10/14/2025","time":"03:04 PM","recipient":null,"sender":null,"company":"Meralco","notes":null}]`)
	})
	recs, err := c.GetTransactions(context.Background(), "alice", 5)
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	r := recs[0]
	if r.Type != models.KindPayBills || r.Company != "Meralco" || r.Recipient != "" {
		t.Fatalf("record = %+v", r)
	}
	if r.Timestamp.IsZero() || r.Timestamp.Hour() != 15 {
		t.Fatalf("timestamp = %v", r.Timestamp)
	}
}

func TestGetTransactionsOmitsNonPositiveLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		io.WriteString(w, `[]`)
	})
	if _, err := c.GetTransactions(context.Background(), "alice", 0); err != nil {
		t.Fatal(err)
	}
}

func TestGetProfileAcceptsNaiveTimestamp(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"first_name":"Alice","last_name":"Reyes","email":"a@example.com","username":"alice","balance":10,"created_at":"2025-01-02T10:30:00.123456"}`)
	})
	p, err := c.GetProfile(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.FullName() != "Alice Reyes" || p.CreatedAt.Year() != 2025 || p.CreatedAt.Hour() != 10 {
		t.Fatalf("profile = %+v", p)
	}
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"User not found"}`)
	})
	_, err := c.GetBalance(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
