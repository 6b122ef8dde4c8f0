package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultSessionSecret = "change-me-this-is-a-development-only-session-secret"

type AppConfig struct {
	Port         string
	LogLevel     string
	LogFormat    string
	DatabasePath string

	APIBaseURL        string
	APITimeout        time.Duration
	APIRateLimit      int
	APIClientID       string
	APIClientSecret   string
	APITokenURL       string
	AllowedOrigin     string
	SecureCookies     bool
	SessionSecret     string
	SessionExpiry     time.Duration
	CurrencyCode      string
	RecipientDebounce time.Duration
	SnapshotTTL       time.Duration
	DashboardLimit    int
	HistoryLimit      int

	// Delay before a successful form navigates back to the dashboard.
	WithdrawRedirectDelay  time.Duration
	DepositRedirectDelay   time.Duration
	SendMoneyRedirectDelay time.Duration
	PayBillsRedirectDelay  time.Duration
	LoginRedirectDelay     time.Duration
	SignupRedirectDelay    time.Duration

	EmailServiceProvider string

	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	MailgunDomain        string
	MailgunPrivateAPIKey string

	SenderEmail string
	SenderName  string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	sessionSecret := getEnv("SESSION_SECRET", defaultSessionSecret)
	if sessionSecret == defaultSessionSecret {
		log.Println("WARNING: Using default insecure SESSION_SECRET. Set SESSION_SECRET environment variable for production.")
	}

	Cfg = &AppConfig{
		Port:         getEnv("PORT", "3000"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "auto"),
		DatabasePath: getEnv("DATABASE_PATH", "./kncbank-web.db"),

		APIBaseURL:        strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000"), "/"),
		APITimeout:        getEnvAsDuration("API_TIMEOUT", 15*time.Second),
		APIRateLimit:      getEnvAsInt("API_RATE_LIMIT_PER_SEC", 20),
		APIClientID:       getEnv("API_CLIENT_ID", ""),
		APIClientSecret:   getEnv("API_CLIENT_SECRET", ""),
		APITokenURL:       getEnv("API_TOKEN_URL", ""),
		AllowedOrigin:     getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		SecureCookies:     getEnvAsBool("SECURE_COOKIES", false),
		SessionSecret:     sessionSecret,
		SessionExpiry:     getEnvAsDuration("SESSION_EXPIRY", 12*time.Hour),
		CurrencyCode:      getEnv("CURRENCY_CODE", "PHP"),
		RecipientDebounce: getEnvAsDuration("RECIPIENT_DEBOUNCE", 500*time.Millisecond),
		SnapshotTTL:       getEnvAsDuration("SNAPSHOT_TTL", 10*time.Minute),
		DashboardLimit:    getEnvAsInt("DASHBOARD_HISTORY_LIMIT", 5),
		HistoryLimit:      getEnvAsInt("HISTORY_LIMIT", 100),

		WithdrawRedirectDelay:  getEnvAsDuration("WITHDRAW_REDIRECT_DELAY", 2*time.Second),
		DepositRedirectDelay:   getEnvAsDuration("DEPOSIT_REDIRECT_DELAY", 2*time.Second),
		SendMoneyRedirectDelay: getEnvAsDuration("SEND_MONEY_REDIRECT_DELAY", 3*time.Second),
		PayBillsRedirectDelay:  getEnvAsDuration("PAY_BILLS_REDIRECT_DELAY", 3*time.Second),
		LoginRedirectDelay:     getEnvAsDuration("LOGIN_REDIRECT_DELAY", 1*time.Second),
		SignupRedirectDelay:    getEnvAsDuration("SIGNUP_REDIRECT_DELAY", 1200*time.Millisecond),

		EmailServiceProvider: strings.ToLower(getEnv("EMAIL_SERVICE_PROVIDER", "mock")),

		SMTPServer:   getEnv("SMTP_SERVER", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		MailgunDomain:        getEnv("MAILGUN_DOMAIN", ""),
		MailgunPrivateAPIKey: getEnv("MAILGUN_PRIVATE_API_KEY", ""),

		SenderEmail: getEnv("SENDER_EMAIL", "noreply@example.com"),
		SenderName:  getEnv("SENDER_NAME", "KNC Bank"),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, API=%s, EmailProvider=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.APIBaseURL, Cfg.EmailServiceProvider)
}

// Validate reports the first configuration problem that would make the
// server unusable.
func (c *AppConfig) Validate() error {
	if c == nil {
		return errors.New("configuration not loaded")
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes long, got %d", len(c.SessionSecret))
	}
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", c.APIBaseURL)
	}
	if c.RecipientDebounce <= 0 {
		return errors.New("RECIPIENT_DEBOUNCE must be positive")
	}
	if c.DashboardLimit <= 0 {
		return errors.New("DASHBOARD_HISTORY_LIMIT must be positive")
	}
	if (c.APIClientID == "") != (c.APIClientSecret == "") {
		return errors.New("API_CLIENT_ID and API_CLIENT_SECRET must be set together")
	}
	if c.APIClientID != "" && c.APITokenURL == "" {
		return errors.New("API_TOKEN_URL is required when API client credentials are set")
	}
	switch c.EmailServiceProvider {
	case "mock", "smtp":
	case "mailgun":
		if c.MailgunDomain == "" || c.MailgunPrivateAPIKey == "" {
			return errors.New("MAILGUN_DOMAIN and MAILGUN_PRIVATE_API_KEY are required when EMAIL_SERVICE_PROVIDER is 'mailgun'")
		}
	default:
		return fmt.Errorf("unknown EMAIL_SERVICE_PROVIDER %q", c.EmailServiceProvider)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
