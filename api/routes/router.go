package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/kirana-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/kirana-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/kirana-backend/api/controllers/orders"
	"github.com/angelmondragon/kirana-backend/api/middleware"
	"github.com/angelmondragon/kirana-backend/internal/address"
	"github.com/angelmondragon/kirana-backend/internal/auth"
	"github.com/angelmondragon/kirana-backend/internal/cart"
	"github.com/angelmondragon/kirana-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/kirana-backend/internal/checkout"
	"github.com/angelmondragon/kirana-backend/internal/orders"
	"github.com/angelmondragon/kirana-backend/pkg/auth/session"
	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/db"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

// RedisStore is the slice of the redis client the HTTP layer uses for
// readiness, replay of idempotent requests and OTP throttling.
type RedisStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Services bundles the domain services mounted on the router.
type Services struct {
	Auth     auth.Service
	Cart     cart.Service
	Checkout checkoutsvc.Service
	Orders   orders.Service
	Address  address.Service
	Catalog  catalog.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	revocations session.Checker,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Locale(),
	)

	otpPolicy := middleware.NewAuthRateLimitPolicy(
		"otp",
		cfg.RateLimit.OTPWindow,
		cfg.RateLimit.OTPIPLimit,
		cfg.RateLimit.OTPPhoneLimit,
	)
	idempotent := middleware.Idempotency(redisStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisStore))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth/otp", func(r chi.Router) {
		r.Use(middleware.AuthRateLimit(otpPolicy, redisStore, logg))
		r.Post("/request", controllers.AuthRequestOTP(svc.Auth, logg))
		r.Post("/verify", controllers.AuthVerifyOTP(svc.Auth, logg))
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/products", controllers.CatalogProducts(svc.Catalog, logg))
		r.Get("/products/{productId}", controllers.CatalogProduct(svc.Catalog, logg))
		r.Get("/products/sku/{sku}", controllers.CatalogProductBySKU(svc.Catalog, logg))
		r.Get("/search", controllers.CatalogSearch(svc.Catalog, logg))
		r.Get("/categories", controllers.CatalogCategories(svc.Catalog, logg))
		r.Get("/banners", controllers.CatalogBanners(svc.Catalog, logg))
		r.Get("/banners/{bannerId}/products", controllers.CatalogBannerProducts(svc.Catalog, logg))
		r.Get("/daily-offers", controllers.CatalogDailyOffers(svc.Catalog, logg))
		r.Get("/cart-rules", controllers.CatalogCartRules(svc.Catalog, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, revocations, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleCustomer))

		r.Post("/auth/logout", controllers.AuthLogout(svc.Auth, logg))
		r.Route("/me", func(r chi.Router) {
			r.Get("/", controllers.Me(svc.Auth, logg))
			r.Put("/locale", controllers.UpdateLocale(svc.Auth, logg))
			r.Patch("/profile", controllers.UpdateProfile(svc.Auth, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(svc.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(svc.Cart, logg))
			r.With(idempotent).Post("/items", cartcontrollers.CartAddItem(svc.Cart, svc.Catalog, logg))
			r.With(idempotent).Post("/items/{sku}/increment", cartcontrollers.CartIncrementItem(svc.Cart, logg))
			r.With(idempotent).Post("/items/{sku}/decrement", cartcontrollers.CartDecrementItem(svc.Cart, logg))
			r.Delete("/items/{sku}", cartcontrollers.CartRemoveItem(svc.Cart, logg))
		})

		r.Post("/checkout", controllers.Checkout(svc.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(svc.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(svc.Address, logg))
			r.With(idempotent).Post("/", controllers.AddressCreate(svc.Address, logg))
			r.Put("/{addressId}", controllers.AddressUpdate(svc.Address, logg))
			r.Delete("/{addressId}", controllers.AddressDelete(svc.Address, logg))
			r.Post("/{addressId}/default", controllers.AddressSetDefault(svc.Address, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.JWT, revocations, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.With(idempotent).Post("/products/import", controllers.AdminImportProducts(svc.Catalog, logg))
	})

	return r
}
