package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "PHP 0.00"},
		{"1000", "PHP 1,000.00"},
		{"1234567.5", "PHP 1,234,567.50"},
		{"750.005", "PHP 750.01"},
	}
	for _, c := range cases {
		if got := FormatMoney("PHP", decimal.RequireFromString(c.in)); got != c.want {
			t.Fatalf("FormatMoney(%s) = %q, want %q", c.in, got, c.want)
		}
	}
	if got := FormatPlain("PHP", decimal.RequireFromString("250")); got != "PHP 250.00" {
		t.Fatalf("FormatPlain = %q", got)
	}
}

func TestParseRecordTimestamp(t *testing.T) {
	want := time.Date(2025, 10, 14, 15, 4, 0, 0, time.UTC)
	if got := ParseRecordTimestamp("10/14/2025 03:04 PM", "", ""); !got.Equal(want) {
		t.Fatalf("timestamp parse = %s", got)
	}
	if got := ParseRecordTimestamp("", "10/14/2025", "03:04 PM"); !got.Equal(want) {
		t.Fatalf("date+time fallback = %s", got)
	}
	if got := ParseRecordTimestamp("garbage", "10/14/2025", ""); got.Day() != 14 {
		t.Fatalf("date-only fallback = %s", got)
	}
	if got := ParseRecordTimestamp("garbage", "", ""); !got.IsZero() {
		t.Fatalf("expected zero time, got %s", got)
	}
}

func TestSendJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	SendJSONError(rec, "Insufficient funds", http.StatusBadRequest)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["detail"] != "Insufficient funds" {
		t.Fatalf("body = %v", body)
	}
}
