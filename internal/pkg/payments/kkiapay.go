package payments

import (
	"strings"
	"time"

	"github.com/agricapital/agricapital/app/models"
	"github.com/agricapital/agricapital/internal/pkg/env"
)

// NewKKiaPayVerifier builds the KKiaPay adapter.
func NewKKiaPayVerifier(verifyURL, apiKey string, timeout time.Duration) *HTTPVerifier {
	return newHTTPVerifier(models.PaymentProviderKKiaPay, verifyURL, apiKey, timeout, classifyKKiaPay)
}

// NewKKiaPayVerifierFromEnv reads KKIAPAY_VERIFY_URL and PAYMENT_VERIFY_API_KEY.
func NewKKiaPayVerifierFromEnv(cfg Config) *HTTPVerifier {
	return NewKKiaPayVerifier(
		env.GetEnv("KKIAPAY_VERIFY_URL", ""),
		env.GetEnv("PAYMENT_VERIFY_API_KEY", ""),
		cfg.VerifyTimeout,
	)
}

func classifyKKiaPay(t verifyTransaction) (Outcome, string) {
	status := strings.ToLower(strings.TrimSpace(t.Status))
	switch {
	case t.IsPaymentSuccessful != nil && *t.IsPaymentSuccessful:
		return OutcomeApproved, status
	case status == "success" || status == "approved":
		return OutcomeApproved, status
	case isDeclinedStatus(status):
		return OutcomeDeclined, status
	default:
		return OutcomeIndeterminate, status
	}
}
