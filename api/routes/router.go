package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/closetrack-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/closetrack-backend/api/controllers/webhooks"
	"github.com/angelmondragon/closetrack-backend/api/middleware"
	"github.com/angelmondragon/closetrack-backend/pkg/config"
	"github.com/angelmondragon/closetrack-backend/pkg/db"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
	"github.com/angelmondragon/closetrack-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	dispatcher webhookcontrollers.Dispatcher,
	pcnService controllers.PCNSubmitter,
	paymentsService controllers.PaymentMatcher,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Webhook channels authenticate per delivery and run their own dedupe
	// inside the dispatcher, so they skip the Idempotency-Key middleware.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/ghl", webhookcontrollers.CRMWebhook(dispatcher, logg))
		r.Post("/payments/{processor}", webhookcontrollers.PaymentWebhook(dispatcher, logg))
		r.Post("/survey", webhookcontrollers.SurveyWebhook(dispatcher, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/pcn", func(r chi.Router) {
			r.Post("/submit", controllers.PCNSubmit(pcnService, logg))
			r.Post("/review", controllers.PCNReview(pcnService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/manual-match", controllers.ManualMatch(paymentsService, logg))
			r.Get("/unmatched", controllers.ListUnmatched(paymentsService, logg))
		})
	})

	return r
}
