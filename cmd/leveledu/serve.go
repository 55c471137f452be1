package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/leveledu/modules/admin"
	"github.com/dmitrymomot/leveledu/modules/apierr"
	"github.com/dmitrymomot/leveledu/modules/app"
	billingapi "github.com/dmitrymomot/leveledu/modules/billing"
	"github.com/dmitrymomot/leveledu/modules/tenants"
	"github.com/dmitrymomot/leveledu/pkg/audit"
	"github.com/dmitrymomot/leveledu/pkg/clientip"
	"github.com/dmitrymomot/leveledu/pkg/config"
	"github.com/dmitrymomot/leveledu/pkg/email"
	"github.com/dmitrymomot/leveledu/pkg/httpserver"
	"github.com/dmitrymomot/leveledu/pkg/jwt"
	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/metrics"
	mongodb "github.com/dmitrymomot/leveledu/pkg/mongo"
	"github.com/dmitrymomot/leveledu/pkg/ratelimiter"
	"github.com/dmitrymomot/leveledu/pkg/rbac"
	"github.com/dmitrymomot/leveledu/pkg/redis"
	"github.com/dmitrymomot/leveledu/pkg/requestid"
	"github.com/dmitrymomot/leveledu/pkg/subscription"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
	"github.com/dmitrymomot/leveledu/svc/auth"
	"github.com/dmitrymomot/leveledu/svc/billing"
	"github.com/dmitrymomot/leveledu/svc/school"
	tenantsvc "github.com/dmitrymomot/leveledu/svc/tenant"
)

// tenantGaugeInterval is how often the tenants-by-status gauge is refreshed.
const tenantGaugeInterval = time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

type settings struct {
	app      appConfig
	http     httpserver.Config
	mongo    mongodb.Config
	redis    redis.Config
	jwt      jwt.Config
	email    email.Config
	stripe   subscription.StripeConfig
	billing  billing.Config
	throttle ratelimiter.Config
}

func loadSettings() (settings, error) {
	var s settings
	var err error
	if s.app, err = loadAppConfig(); err != nil {
		return s, err
	}
	err = errors.Join(
		config.Load(&s.http),
		config.Load(&s.mongo),
		config.Load(&s.redis),
		config.Load(&s.jwt),
		config.Load(&s.email),
		config.Load(&s.stripe),
		config.Load(&s.billing),
		config.Load(&s.throttle),
	)
	return s, err
}

func serve(ctx context.Context) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	log := newLogger(cfg.app)
	errs := apierr.NewResponder(log)
	m := metrics.Default()

	client, err := mongodb.New(ctx, cfg.mongo)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error("disconnect mongodb", logger.Error(err))
		}
	}()
	db := client.Database(cfg.mongo.Database)
	if err := ensureIndexes(ctx, db); err != nil {
		return err
	}
	probes := []httpserver.Probe{mongodb.Healthcheck(client)}

	var (
		denylist    jwt.Denylist = jwt.NewMemoryDenylist(0)
		tenantCache tenant.Cache
		attempts    ratelimiter.Store
	)
	if cfg.redis.Enabled() {
		rdb, err := redis.Connect(ctx, cfg.redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer closeRedis(rdb, log)
		denylist = jwt.NewRedisDenylist(rdb, "leveledu:jwt:revoked:")
		tenantCache = tenant.NewRedisCache(rdb, "leveledu:tenant:", log)
		attempts = ratelimiter.NewRedisStore(rdb, "leveledu:ratelimit:")
		probes = append(probes, redis.Healthcheck(rdb))
	} else {
		mem := tenant.NewMemoryCache(cfg.app.TenantCacheSize, cfg.app.TenantCacheTTL)
		defer mem.Close()
		tenantCache = mem
		local := ratelimiter.NewMemoryStore(10 * time.Minute)
		defer local.Close()
		attempts = local
	}
	throttle, err := ratelimiter.NewBucket(attempts, cfg.throttle)
	if err != nil {
		return err
	}

	tokens, err := jwt.New(cfg.jwt, jwt.WithDenylist(denylist))
	if err != nil {
		return err
	}
	sender, err := email.New(cfg.email)
	if err != nil {
		return err
	}
	mailer := email.NewMailer(sender, cfg.email.SupportEmail)

	catalog, err := limits.NewCatalog(ctx, limits.DefaultSource())
	if err != nil {
		return err
	}

	store := school.NewMongoStore(client, db)
	usage := school.NewService(store).Counters()
	tenantSvc := tenantsvc.NewService(tenantsvc.NewMongoRepository(db), catalog,
		tenantsvc.WithCache(tenantCache),
		tenantsvc.WithStatsCounters(tenantsvc.StatsCounters{
			Users:    usage[limits.ResourceStudent],
			Classes:  usage[limits.ResourceClass],
			Missions: usage[limits.ResourceMission],
		}),
		tenantsvc.WithStatusObserver(func(counts map[tenant.Status]int64) {
			for status, n := range counts {
				m.SetTenants(string(status), n)
			}
		}),
		tenantsvc.WithLogger(log),
	)

	enforcer := limits.NewEnforcer(catalog, usage, tenantSvc.PlanOf,
		limits.WithTransactor(limits.NewMongoTransactor(client, db)),
		limits.WithDenialObserver(m.LimitDenied),
		limits.WithLogger(log),
	)

	schoolSvc := school.NewService(store, school.WithQuota(enforcer), school.WithLogger(log))
	authSvc := auth.NewService(auth.NewMongoRepository(db), tokens, tenantSvc,
		auth.WithMailer(mailer),
		auth.WithQuota(enforcer),
		auth.WithClassrooms(schoolSvc),
		auth.WithLoginURL(cfg.billing.LoginURL()),
		auth.WithAudit(audit.NewLogger(audit.NewMongoStorage(db))),
		auth.WithLogger(log),
	)
	usage.Register(limits.ResourceTeacher, authSvc.CountRole(rbac.RoleTeacher))
	usage.Register(limits.ResourceAdmin, authSvc.CountRole(rbac.RoleTenantAdmin))

	subs := billing.NewMongoSubscriptions(db)
	billingSvc := billing.NewService(cfg.billing, billing.Deps{
		Provider:      subscription.NewStripeProvider(cfg.stripe, subscription.WithStripeLogger(log)),
		Subscriptions: subs,
		Ledger:        billing.NewMongoLedger(db),
		Tenants:       tenantSvc,
		Admins:        authSvc,
		Catalog:       catalog,
	}, billing.WithObserver(m), billing.WithLogger(log))
	gate := subscription.NewGate(subs, tenantSvc, subscription.WithGateLogger(log))

	tenantMiddleware := tenant.Middleware(tenantSvc,
		tenant.WithCache(tenantCache),
		tenant.WithCacheTTL(cfg.app.TenantCacheTTL),
		tenant.WithErrorHandler(errs.Write),
		tenant.WithLogger(log),
	)
	authenticate := auth.Middleware(authSvc, tokens, errs.Write)
	tenantScoped := func(next http.Handler) http.Handler {
		return authenticate(tenantMiddleware(tenant.RequireIsolation(errs.Write)(next)))
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware, clientip.Middleware, middleware.Recoverer, m.Middleware)

	r.Get("/health/live", httpserver.HealthCheckHandler(log))
	r.Get("/health/ready", httpserver.HealthCheckHandler(log, probes...))
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/admin", admin.Router(admin.RouterOptions{
		Auth:     authSvc,
		Tokens:   tokens,
		School:   schoolSvc,
		Tenants:  tenantSvc,
		Limits:   enforcer,
		Gate:     gate,
		Tenant:   tenantMiddleware,
		Throttle: throttle,
		Logger:   log,
	}))
	r.Mount("/app", app.Router(app.RouterOptions{
		School:   schoolSvc,
		Tenants:  tenantSvc,
		Cache:    tenantCache,
		Throttle: throttle,
		Logger:   log,
	}))
	r.Route("/api", func(r chi.Router) {
		r.Mount("/tenants", tenants.Router(tenants.RouterOptions{
			Tenants:      tenantSvc,
			Authenticate: authenticate,
			Logger:       log,
		}))
		r.Mount("/", billingapi.Router(billingapi.RouterOptions{
			Billing:      billingSvc,
			Authenticate: tenantScoped,
			Logger:       log,
		}))
	})

	server := httpserver.NewFromConfig(cfg.http, httpserver.WithLogger(log))
	handler := httpserver.CORS(r, cfg.http.AllowedOrigins)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx, handler) })
	g.Go(func() error {
		ticker := time.NewTicker(tenantGaugeInterval)
		defer ticker.Stop()
		for {
			tenantSvc.ReportStatusCounts(ctx)
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	return g.Wait()
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	sets := []mongodb.IndexSet{tenantsvc.Indexes(), auth.Indexes(), audit.Indexes()}
	sets = append(sets, school.Indexes()...)
	sets = append(sets, billing.Indexes()...)
	if err := mongodb.EnsureIndexes(ctx, db, sets...); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

func closeRedis(c *goredis.Client, log *slog.Logger) {
	if err := c.Close(); err != nil {
		log.Error("close redis", logger.Error(err))
	}
}
