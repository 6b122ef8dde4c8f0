package bankapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/models"
	"github.com/username/kncbank/web/src/utils"
)

var wire = jsoniter.ConfigCompatibleWithStandardLibrary

const maxResponseBytes = 1 << 20

// Options configures a Client. Zero RateLimit disables outbound throttling.
// ClientID, ClientSecret and TokenURL enable an OAuth2 client-credentials
// transport in front of the account service.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	RateLimit    int
	ClientID     string
	ClientSecret string
	TokenURL     string
	HTTPClient   *http.Client
}

// Client talks to the account service's /auth routes.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid account service URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Jar: jar, Timeout: timeout}
	}

	if opts.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
		}
		baseTransport := httpClient.Transport
		if baseTransport == nil {
			baseTransport = http.DefaultTransport
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: baseTransport, Timeout: httpClient.Timeout})
		wrapped := *httpClient
		wrapped.Transport = &oauth2.Transport{Source: cc.TokenSource(tokenCtx), Base: baseTransport}
		httpClient = &wrapped
		logger.L.Info("Account service client using OAuth2 client credentials", "tokenURL", opts.TokenURL)
	}

	c := &Client{baseURL: base, http: httpClient}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}
	return c, nil
}

// errorBody is FastAPI's error envelope. Detail is a string for
// HTTPException and a list of objects for request validation errors.
type errorBody struct {
	Detail jsoniter.RawMessage `json:"detail"`
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportFailure{Op: op, Err: err}
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := wire.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.FromContext(ctx).Warn("Account service call failed", "op", op, "error", err)
		return &TransportFailure{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportFailure{Op: op, Err: err}
	}
	logger.FromContext(ctx).Debug("Account service call", "op", op, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServiceRejection{Op: op, Status: resp.StatusCode, Detail: parseDetail(raw)}
	}
	if out == nil {
		return nil
	}
	if err := wire.Unmarshal(raw, out); err != nil {
		return &TransportFailure{Op: op, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return nil
}

// parseDetail only surfaces string details. Structured validation errors are
// not user-facing text, so they yield "".
func parseDetail(raw []byte) string {
	var eb errorBody
	if err := wire.Unmarshal(raw, &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}
	var s string
	if err := wire.Unmarshal(eb.Detail, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func malformed(op, format string, args ...interface{}) error {
	return &TransportFailure{Op: op, Err: fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))}
}

func userPath(prefix string, identity models.Identity) string {
	return prefix + url.PathEscape(identity.String())
}

// Signup creates an account. The service returns only a message.
func (c *Client) Signup(ctx context.Context, s models.Signup) error {
	return c.do(ctx, "signup", http.MethodPost, "/auth/signup", nil, s, nil)
}

// Login checks credentials and returns the canonical username.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (models.Identity, error) {
	var out struct {
		Username string `json:"username"`
	}
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", nil, creds, &out); err != nil {
		return "", err
	}
	if out.Username == "" {
		return models.Identity(creds.Username), nil
	}
	return models.Identity(out.Username), nil
}

func (c *Client) GetBalance(ctx context.Context, identity models.Identity) (decimal.Decimal, error) {
	var out struct {
		Balance *decimal.Decimal `json:"balance"`
	}
	if err := c.do(ctx, "balance", http.MethodGet, userPath("/auth/balance/", identity), nil, nil, &out); err != nil {
		return decimal.Decimal{}, err
	}
	if out.Balance == nil {
		return decimal.Decimal{}, malformed("balance", "missing balance")
	}
	return *out.Balance, nil
}

// RecipientExists resolves a username through the balance route. A 404 is a
// definite "no"; every other failure is returned as an error.
func (c *Client) RecipientExists(ctx context.Context, identity models.Identity) (bool, error) {
	err := c.do(ctx, "recipient", http.MethodGet, userPath("/auth/balance/", identity), nil, nil, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

type recordWire struct {
	ReferenceNumber string          `json:"reference_number"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Timestamp       string          `json:"timestamp"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	Recipient       *string         `json:"recipient"`
	Sender          *string         `json:"sender"`
	Company         *string         `json:"company"`
	Notes           *string         `json:"notes"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetTransactions returns the newest records first. limit <= 0 leaves the
// page size to the service.
func (c *Client) GetTransactions(ctx context.Context, identity models.Identity, limit int) ([]models.TransactionRecord, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": []string{strconv.Itoa(limit)}}
	}
	var rows []recordWire
	if err := c.do(ctx, "transactions", http.MethodGet, userPath("/auth/transactions/", identity), query, nil, &rows); err != nil {
		return nil, err
	}
	records := make([]models.TransactionRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, models.TransactionRecord{
			ReferenceNumber: r.ReferenceNumber,
			Type:            models.TransactionKind(r.Type),
			Amount:          r.Amount,
			Description:     r.Description,
			Timestamp:       utils.ParseRecordTimestamp(r.Timestamp, r.Date, r.Time),
			Date:            r.Date,
			Time:            r.Time,
			Recipient:       deref(r.Recipient),
			Sender:          deref(r.Sender),
			Company:         deref(r.Company),
			Notes:           deref(r.Notes),
		})
	}
	return records, nil
}

func (c *Client) ListCompanies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	if err := c.do(ctx, "companies", http.MethodGet, "/auth/companies", nil, nil, &companies); err != nil {
		return nil, err
	}
	return companies, nil
}

type profileWire struct {
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     string          `json:"email"`
	Username  string          `json:"username"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt string          `json:"created_at"`
}

func (p profileWire) toModel() models.Profile {
	created, _ := utils.ParseServerTime(p.CreatedAt)
	return models.Profile{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Username:  p.Username,
		Balance:   p.Balance,
		CreatedAt: created,
	}
}

func (c *Client) GetProfile(ctx context.Context, identity models.Identity) (models.Profile, error) {
	var out profileWire
	if err := c.do(ctx, "profile", http.MethodGet, userPath("/auth/profile/", identity), nil, nil, &out); err != nil {
		return models.Profile{}, err
	}
	return out.toModel(), nil
}

// UpdateProfile returns the profile as stored after the update.
func (c *Client) UpdateProfile(ctx context.Context, identity models.Identity, upd models.ProfileUpdate) (models.Profile, error) {
	var out profileWire
	if err := c.do(ctx, "update_profile", http.MethodPut, userPath("/auth/profile/", identity), nil, upd, &out); err != nil {
		return models.Profile{}, err
	}
	return out.toModel(), nil
}

type confirmationWire struct {
	Message       string           `json:"message"`
	NewBalance    *decimal.Decimal `json:"new_balance"`
	TransactionID string           `json:"transaction_id"`
}

func wireAmount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Submit issues the single mutating call for req. The returned confirmation
// always carries the service's new_balance.
func (c *Client) Submit(ctx context.Context, req models.TransactionRequest) (models.Confirmation, error) {
	var (
		op, path string
		payload  interface{}
	)
	switch req.Kind {
	case models.KindDeposit:
		op, path = "deposit", "/auth/deposit"
		payload = struct {
			Username string      `json:"username"`
			Amount   json.Number `json:"amount"`
		}{req.Actor.String(), wireAmount(req.Amount)}
	case models.KindWithdraw:
		op, path = "withdraw", "/auth/withdraw"
		payload = struct {
			Username string      `json:"username"`
			Amount   json.Number `json:"amount"`
		}{req.Actor.String(), wireAmount(req.Amount)}
	case models.KindSendMoney:
		op, path = "send_money", "/auth/send-money"
		payload = struct {
			SenderUsername    string      `json:"sender_username"`
			RecipientUsername string      `json:"recipient_username"`
			Amount            json.Number `json:"amount"`
			Notes             *string     `json:"notes"`
		}{req.Actor.String(), req.Recipient.String(), wireAmount(req.Amount), optional(req.Notes)}
	case models.KindPayBills:
		op, path = "pay_bills", "/auth/pay-bills"
		payload = struct {
			Username    string      `json:"username"`
			CompanyName string      `json:"company_name"`
			Amount      json.Number `json:"amount"`
			Notes       *string     `json:"notes"`
		}{req.Actor.String(), req.Company, wireAmount(req.Amount), optional(req.Notes)}
	default:
		return models.Confirmation{}, fmt.Errorf("unsupported transaction kind %q", req.Kind)
	}

	var out confirmationWire
	if err := c.do(ctx, op, http.MethodPost, path, nil, payload, &out); err != nil {
		return models.Confirmation{}, err
	}
	if out.NewBalance == nil {
		return models.Confirmation{}, malformed(op, "missing new_balance")
	}
	return models.Confirmation{
		Message:       out.Message,
		NewBalance:    *out.NewBalance,
		TransactionID: out.TransactionID,
	}, nil
}
