package constants

// Route constants
const (
	PublicRoute        = "/"
	WebhooksRoute      = "/webhooks"
	PaymentReturnRoute = "/paiement/retour"
	APIRoute           = "/api"
	DocsRoute          = "/docs/api/"
	HealthRoute        = "/health"
)
