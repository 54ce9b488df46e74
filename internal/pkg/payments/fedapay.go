package payments

import (
	"strings"
	"time"

	"github.com/agricapital/agricapital/app/models"
	"github.com/agricapital/agricapital/internal/pkg/env"
)

// NewFedaPayVerifier builds the FedaPay adapter.
func NewFedaPayVerifier(verifyURL, apiKey string, timeout time.Duration) *HTTPVerifier {
	return newHTTPVerifier(models.PaymentProviderFedaPay, verifyURL, apiKey, timeout, classifyFedaPay)
}

// NewFedaPayVerifierFromEnv reads FEDAPAY_VERIFY_URL and PAYMENT_VERIFY_API_KEY.
func NewFedaPayVerifierFromEnv(cfg Config) *HTTPVerifier {
	return NewFedaPayVerifier(
		env.GetEnv("FEDAPAY_VERIFY_URL", ""),
		env.GetEnv("PAYMENT_VERIFY_API_KEY", ""),
		cfg.VerifyTimeout,
	)
}

// FedaPay reports either status or state; "approved" is the paid state.
func classifyFedaPay(t verifyTransaction) (Outcome, string) {
	status := strings.ToLower(strings.TrimSpace(t.Status))
	if status == "" {
		status = strings.ToLower(strings.TrimSpace(t.State))
	}
	switch {
	case status == "approved" || status == "success":
		return OutcomeApproved, status
	case isDeclinedStatus(status):
		return OutcomeDeclined, status
	default:
		return OutcomeIndeterminate, status
	}
}
