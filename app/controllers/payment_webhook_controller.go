package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/agricapital/agricapital/app/models"
	"github.com/agricapital/agricapital/internal/pkg/payments"
)

const webhookAllowHeaders = "authorization, x-client-info, apikey, content-type, x-fedapay-signature, x-kkiapay-signature"

// PaymentWebhookController receives provider webhooks.
type PaymentWebhookController struct {
	svc *payments.Service
}

func NewPaymentWebhookController(svc *payments.Service) *PaymentWebhookController {
	return &PaymentWebhookController{svc: svc}
}

// HandleWebhook answers 200 once the delivery is authenticated and audited.
func (pc *PaymentWebhookController) HandleWebhook(c *fiber.Ctx) error {
	setWebhookCORS(c)

	provider := strings.ToLower(strings.TrimSpace(c.Params("provider")))
	if !payments.IsSupportedProvider(provider) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_provider"})
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get(signatureHeader(provider))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := pc.svc.HandleWebhook(ctx, provider, rawBody, signature)
	switch {
	case err == nil:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
	case errors.Is(err, payments.ErrMissingSignature):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing_signature"})
	case errors.Is(err, payments.ErrInvalidSignature):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	case errors.Is(err, payments.ErrUnknownProvider):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_provider"})
	default:
		log.Errorf("[Webhook] %s delivery failed: %v", provider, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
	}
}

// HandleWebhookPreflight answers CORS preflights with an empty 200.
func (pc *PaymentWebhookController) HandleWebhookPreflight(c *fiber.Ctx) error {
	setWebhookCORS(c)
	c.Status(fiber.StatusOK)
	return nil
}

func setWebhookCORS(c *fiber.Ctx) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowHeaders, webhookAllowHeaders)
	c.Set(fiber.HeaderAccessControlAllowMethods, "POST, OPTIONS")
}

func signatureHeader(provider string) string {
	if provider == models.PaymentProviderKKiaPay {
		return "X-KKiaPay-Signature"
	}
	return "X-FedaPay-Signature"
}
