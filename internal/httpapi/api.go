package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"pitaka.app/internal/auth"
	"pitaka.app/internal/bank"
	"pitaka.app/internal/idem"
	"pitaka.app/internal/obs"
	"pitaka.app/internal/stream"
)

const serviceName = "pitaka-api"

// Pinger is satisfied by the bank service and by stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks dependencies for /readyz and the gRPC health service.
type ReadyProbe struct {
	Deps []Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	for _, d := range rp.Deps {
		if d == nil {
			continue
		}
		if err := d.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// API is the HTTP surface over the bank service.
type API struct {
	bank        *bank.Service
	issuer      *auth.Issuer
	stream      *stream.Stream
	idem        idem.Store
	readyProbe  ReadyProbe
	version     string
	isAdmin     func(email string) bool
	corsOrigins []string
	rateBurst   int
	ratePerSec  float64
	log         *zap.Logger
}

// Option configures the API.
type Option func(*API)

func WithStream(s *stream.Stream) Option { return func(a *API) { a.stream = s } }

func WithIdempotency(s idem.Store) Option { return func(a *API) { a.idem = s } }

func WithReadyProbe(rp ReadyProbe) Option { return func(a *API) { a.readyProbe = rp } }

func WithVersion(v string) Option { return func(a *API) { a.version = v } }

// WithAdmins decides which registered emails receive the admin role at login.
func WithAdmins(isAdmin func(email string) bool) Option {
	return func(a *API) { a.isAdmin = isAdmin }
}

func WithCORSOrigins(origins []string) Option { return func(a *API) { a.corsOrigins = origins } }

func WithRateLimit(perSec float64, burst int) Option {
	return func(a *API) {
		if perSec > 0 && burst > 0 {
			a.ratePerSec = perSec
			a.rateBurst = burst
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

func New(svc *bank.Service, issuer *auth.Issuer, opts ...Option) *API {
	a := &API{
		bank:        svc,
		issuer:      issuer,
		idem:        idem.NewMemory(),
		readyProbe:  ReadyProbe{Deps: []Pinger{svc}},
		version:     "dev",
		isAdmin:     func(string) bool { return false },
		corsOrigins: []string{"*"},
		rateBurst:   40,
		ratePerSec:  20,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler builds the router with the full middleware chain.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingJSON(a.log))
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Idempotent-Replayed"},
		AllowCredentials: false,
		MaxAge:           600,
	}))
	r.Use(rateLimiter(a.rateBurst, a.ratePerSec))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", a.register)
		r.Post("/auth/login", a.login)

		r.Group(func(r chi.Router) {
			r.Use(a.withAuth)
			r.Use(a.idempotent)

			r.Get("/me", a.me)

			r.Get("/accounts", a.listAccounts)
			r.Post("/accounts", a.openAccount)
			r.Get("/accounts/{id}", a.getAccount)
			r.Get("/accounts/{id}/transactions", a.accountTransactions)
			r.Get("/accounts/{id}/reconciliation", a.reconcileAccount)

			r.Post("/transactions/deposit", a.deposit)
			r.Post("/transactions/withdraw", a.withdraw)
			r.Post("/transactions/transfer", a.transfer)
			r.Get("/transactions", a.listTransactions)
			r.Get("/transactions/{id}", a.getTransaction)

			r.Post("/transfers/internal", a.transferInternal)
			r.Post("/transfers/external", a.transferExternal)
			r.Post("/transfers/interbank", a.transferInterbank)
			r.Get("/transfers", a.listTransfers)
			r.Get("/transfers/{id}", a.getTransfer)
			r.Get("/transfers/fees", a.interbankFee)

			r.Get("/recipients", a.listRecipients)
			r.Post("/recipients", a.addRecipient)
			r.Patch("/recipients/{id}", a.updateRecipient)
			r.Delete("/recipients/{id}", a.deleteRecipient)

			r.Get("/billers", a.listBillers)
			r.Post("/payments", a.payBill)
			r.Get("/payments", a.listPayments)
			r.Get("/payments/{id}", a.getPayment)

			r.Get("/loan-products", a.listLoanProducts)
			r.Post("/loans", a.applyLoan)
			r.Get("/loans", a.listLoans)
			r.Get("/loans/{id}", a.getLoan)
			r.Post("/loans/{id}/payments", a.payLoan)
			r.Post("/loans/{id}/cancel", a.cancelLoan)
			r.With(RequireRole(auth.RoleAdmin)).Post("/loans/{id}/approve", a.approveLoan)
			r.With(RequireRole(auth.RoleAdmin)).Post("/loans/{id}/reject", a.rejectLoan)

			r.Post("/savings", a.createSavingsGoal)
			r.Get("/savings", a.listSavingsGoals)
			r.Get("/savings/{id}", a.getSavingsGoal)
			r.Patch("/savings/{id}", a.updateSavingsGoal)
			r.Delete("/savings/{id}", a.closeSavingsGoal)
			r.Post("/savings/{id}/deposit", a.depositToGoal)
			r.Post("/savings/{id}/withdraw", a.withdrawFromGoal)

			r.Get("/companies", a.listCompanies)
			r.Get("/companies/{id}", a.getCompany)
			r.Get("/investments", a.portfolio)
			r.Get("/investments/{id}", a.getInvestment)
			r.Post("/investments/buy", a.buyShares)
			r.Post("/investments/sell", a.sellShares)

			r.Get("/cards", a.listCards)
			r.Post("/cards", a.addCard)
			r.Post("/cards/{id}/default", a.setDefaultCard)
			r.Delete("/cards/{id}", a.deleteCard)

			r.Get("/stream", a.Stream)
			r.Get("/stream/ws", a.StreamWS)
		})
	})

	return obs.Instrument(r)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":          serviceName,
		"time":          time.Now().UTC().Format(time.RFC3339),
		"version":       a.version,
		"interbank_fee": a.bank.FeePolicy().Name(),
	})
}
