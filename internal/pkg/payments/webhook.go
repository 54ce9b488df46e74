package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/agricapital/agricapital/app/models"
)

// ErrAuditWrite is returned when the webhook audit row cannot be stored. It is
// the only webhook failure the provider is expected to retry.
var ErrAuditWrite = errors.New("webhook audit write failed")

// Event types stored for deliveries without a usable event name.
const (
	EventTypeUnparsed = "unparsed"
	EventTypeUnknown  = "unknown"
)

// WebhookResult summarizes how one delivery was handled.
type WebhookResult struct {
	EventID   uint
	Class     EventClass
	Matched   bool
	Applied   bool
	PaymentID string
}

// IsSupportedProvider reports whether provider has a webhook endpoint.
func IsSupportedProvider(provider string) bool {
	switch provider {
	case models.PaymentProviderFedaPay, models.PaymentProviderKKiaPay:
		return true
	default:
		return false
	}
}

// HandleWebhook authenticates, audits and applies one provider delivery.
//
// Errors are limited to ErrUnknownProvider, ErrMissingSignature,
// ErrInvalidSignature and ErrAuditWrite. Once the audit row exists every other
// failure is logged and recorded on the row.
func (s *Service) HandleWebhook(ctx context.Context, provider string, payload []byte, signature string) (*WebhookResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !IsSupportedProvider(provider) {
		return nil, ErrUnknownProvider
	}

	signatureValid := false
	if secret := s.cfg.SecretFor(provider); secret != "" {
		if strings.TrimSpace(signature) == "" {
			log.Warnf("[Webhook] %s delivery without signature rejected", provider)
			return nil, ErrMissingSignature
		}
		if !VerifySignature(payload, signature, secret) {
			log.Warnf("[Webhook] %s delivery with invalid signature rejected", provider)
			return nil, ErrInvalidSignature
		}
		signatureValid = true
	}

	env, parseErr := ParseEnvelope(payload)
	event := s.buildEvent(provider, env, parseErr, payload, signatureValid)
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		log.Errorf("[Webhook] failed to store %s event: %v", provider, err)
		return nil, fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}

	result := &WebhookResult{EventID: event.ID, Class: EventOther}
	if parseErr != nil {
		log.Warnf("[Webhook] %s event %d has an unparsable body: %v", provider, event.ID, parseErr)
		s.incr(ctx, fmt.Sprintf("webhook:%s:%s", provider, EventTypeUnparsed))
		return result, nil
	}

	result.Class = env.Class()
	s.incr(ctx, fmt.Sprintf("webhook:%s:%s", provider, result.Class))
	log.Infof("[Webhook] %s event %s (%s) ref=%s tx=%s", provider, event.EventID, event.EventType, env.Reference, env.TransactionID)

	if result.Class == EventOther {
		return result, nil
	}

	// Webhooks match on reference only.
	if env.Reference == "" {
		log.Infof("[Webhook] %s event %d has no reference, ignoring", provider, event.ID)
		return result, nil
	}
	payment, err := s.repo.FindPaymentByReference(ctx, env.Reference)
	if errors.Is(err, ErrPaymentNotFound) {
		log.Infof("[Webhook] no payment for ref=%s tx=%s, ignoring", env.Reference, env.TransactionID)
		return result, nil
	}
	if err != nil {
		log.Errorf("[Webhook] payment lookup for event %d failed: %v", event.ID, err)
		s.markEvent(ctx, event.ID, nil, err)
		return result, nil
	}

	result.Matched = true
	result.PaymentID = payment.ID

	settled, err := s.Settle(ctx, SettleInput{
		PaymentID:     payment.ID,
		Outcome:       result.Class.Outcome(),
		TransactionID: env.TransactionID,
		AmountPaid:    env.Amount,
		Source:        SourceWebhook,
	})
	if err != nil {
		log.Errorf("[Webhook] settling payment %s from event %d failed: %v", payment.Reference, event.ID, err)
		s.markEvent(ctx, event.ID, &payment.ID, err)
		return result, nil
	}
	result.Applied = settled.Applied
	if !settled.Applied {
		log.Infof("[Webhook] payment %s already %s, event %d is a duplicate", payment.Reference, settled.Payment.Status, event.ID)
	}

	s.markEvent(ctx, event.ID, &payment.ID, nil)
	return result, nil
}

func (s *Service) buildEvent(provider string, env *Envelope, parseErr error, payload []byte, signatureValid bool) *models.PaymentEvent {
	event := &models.PaymentEvent{
		Provider:       provider,
		RawPayload:     string(payload),
		SignatureValid: signatureValid,
	}

	if parseErr != nil || env == nil {
		event.EventType = EventTypeUnparsed
		if parseErr != nil {
			event.ProcessingError = parseErr.Error()
		}
	} else {
		event.EventID = env.EventID
		event.EventType = env.EventType
		event.TransactionID = env.TransactionID
		event.TransactionReference = env.Reference
		event.Status = env.Status
		event.Amount = env.Amount
		event.CustomerEmail = env.CustomerEmail
		event.CustomerPhone = env.CustomerPhone
	}

	if event.EventType == "" {
		event.EventType = EventTypeUnknown
	}
	if event.EventID == "" {
		event.EventID = fmt.Sprintf("evt_%d", s.now().UnixMilli())
	}
	return event
}

func (s *Service) markEvent(ctx context.Context, id uint, paymentID *string, procErr error) {
	msg := ""
	if procErr != nil {
		msg = procErr.Error()
	}
	// The request context may already be gone once the provider has its answer.
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.repo.MarkEventProcessed(mctx, id, paymentID, msg); err != nil {
		log.Errorf("[Webhook] failed to mark event %d processed: %v", id, err)
	}
}
