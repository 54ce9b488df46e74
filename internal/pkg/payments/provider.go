package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
)

// ProviderAuto asks the return flow to try every configured provider.
const ProviderAuto = "auto"

// Verifier asks one provider for the state of a transaction.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, transactionID string) (*Verification, error)
}

type verifyTransaction struct {
	Status              string           `json:"status"`
	State               string           `json:"state"`
	Amount              *decimal.Decimal `json:"amount"`
	IsPaymentSuccessful *bool            `json:"isPaymentSuccessful"`
}

type verifyResponse struct {
	Success     bool               `json:"success"`
	Error       string             `json:"error"`
	Transaction *verifyTransaction `json:"transaction"`
}

// HTTPVerifier calls a provider verify endpoint with {"transactionId": "..."}.
type HTTPVerifier struct {
	Provider  string
	VerifyURL string
	APIKey    string

	HTTPClient *http.Client

	classify func(t verifyTransaction) (Outcome, string)
}

func newHTTPVerifier(provider, verifyURL, apiKey string, timeout time.Duration, classify func(verifyTransaction) (Outcome, string)) *HTTPVerifier {
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	return &HTTPVerifier{
		Provider:   provider,
		VerifyURL:  strings.TrimSpace(verifyURL),
		APIKey:     strings.TrimSpace(apiKey),
		HTTPClient: &http.Client{Timeout: timeout},
		classify:   classify,
	}
}

func (v *HTTPVerifier) Name() string { return v.Provider }

// Verify returns an error for transport failures, non-2xx answers and
// success=false bodies. Callers treat all of them as indeterminate.
func (v *HTTPVerifier) Verify(ctx context.Context, transactionID string) (*Verification, error) {
	txID := strings.TrimSpace(transactionID)
	if txID == "" {
		return nil, errors.New("transaction id is required")
	}
	if v.VerifyURL == "" {
		return nil, fmt.Errorf("%s verify url is not configured", v.Provider)
	}

	body, err := json.Marshal(map[string]string{"transactionId": txID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if v.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.APIKey)
	}

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s verify failed: status=%d body=%s", v.Provider, resp.StatusCode, string(raw))
	}

	var out verifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s verify returned invalid json: %w", v.Provider, err)
	}
	if !out.Success {
		if out.Error != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrVerifyUnsuccessful, v.Provider, out.Error)
		}
		return nil, fmt.Errorf("%w: %s", ErrVerifyUnsuccessful, v.Provider)
	}

	res := &Verification{Provider: v.Provider, Outcome: OutcomeIndeterminate}
	if out.Transaction != nil {
		res.Outcome, res.RawStatus = v.classify(*out.Transaction)
		res.Amount = out.Transaction.Amount
	}
	return res, nil
}

func isDeclinedStatus(status string) bool {
	switch status {
	case "failed", "declined", "canceled", "cancelled", "refused":
		return true
	default:
		return false
	}
}

// Verifiers holds the configured adapters in their automatic precedence order.
type Verifiers struct {
	order  []Verifier
	byName map[string]Verifier
}

// NewVerifiers keeps vs in the given order for automatic resolution.
func NewVerifiers(vs ...Verifier) *Verifiers {
	out := &Verifiers{byName: make(map[string]Verifier, len(vs))}
	for _, v := range vs {
		if v == nil {
			continue
		}
		out.order = append(out.order, v)
		out.byName[v.Name()] = v
	}
	return out
}

// Candidates returns the adapters to try. A recorded provider wins over the
// URL hint; anything unknown falls back to every adapter in order.
func (vs *Verifiers) Candidates(recorded, hint string) []Verifier {
	for _, name := range []string{recorded, hint} {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || name == ProviderAuto {
			continue
		}
		if v, ok := vs.byName[name]; ok {
			return []Verifier{v}
		}
	}
	return vs.order
}

// Resolve asks each candidate in turn and returns the first answer with
// success=true. Failed calls are logged and skipped.
func (vs *Verifiers) Resolve(ctx context.Context, recorded, hint, transactionID string) (*Verification, error) {
	candidates := vs.Candidates(recorded, hint)
	if len(candidates) == 0 {
		return nil, ErrUnknownProvider
	}

	var lastErr error
	for _, v := range candidates {
		res, err := v.Verify(ctx, transactionID)
		if err != nil {
			log.Warnf("[ReturnFlow] %s verify for %s: %v", v.Name(), transactionID, err)
			lastErr = err
			continue
		}
		return res, nil
	}
	return nil, lastErr
}
