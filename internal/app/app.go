// Package app wires configuration, adapters and use cases together.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/phenrril/printshop/internal/adapters/acpstore"
	"github.com/phenrril/printshop/internal/adapters/fulfillment/pictorem"
	"github.com/phenrril/printshop/internal/adapters/httpserver"
	"github.com/phenrril/printshop/internal/adapters/ledger/redisledger"
	"github.com/phenrril/printshop/internal/adapters/notify"
	"github.com/phenrril/printshop/internal/adapters/payments/stripepay"
	pg "github.com/phenrril/printshop/internal/adapters/repo/postgres"
	"github.com/phenrril/printshop/internal/adapters/storage/r2"
	"github.com/phenrril/printshop/internal/catalog"
	"github.com/phenrril/printshop/internal/config"
	"github.com/phenrril/printshop/internal/domain"
	"github.com/phenrril/printshop/internal/pricing"
	"github.com/phenrril/printshop/internal/usecase"
)

const redisPrefix = "printshop"

type App struct {
	Config      *config.Config
	DB          *gorm.DB
	Redis       *redis.Client
	Photos      *pg.PhotoRepo
	Catalog     *usecase.CatalogUC
	Checkout    *usecase.CheckoutUC
	Fulfillment *usecase.FulfillmentUC
	ACP         *usecase.ACPUC
	Webhooks    *stripepay.WebhookVerifier

	inline  *notify.InlineDispatcher
	closers []func() error
}

func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.IsProduction() {
		level = logger.Error
	}
	db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// OpenRedis returns nil when REDIS_URL is unset.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if !cfg.RedisEnabled() {
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewNotifier builds the email notifier shared by the server and the worker.
func NewNotifier(cfg *config.Config) *notify.Notifier {
	sender := notify.NewSender(notify.SenderConfig{
		ResendAPIKey: cfg.ResendAPIKey,
		FromName:     cfg.MerchantName,
		FromEmail:    cfg.EmailFrom,
		SMTP: notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		},
	})
	if !cfg.EmailEnabled() {
		log.Warn().Msg("email is not configured, order notifications are dropped")
		sender = notify.NoopSender{}
	}
	return &notify.Notifier{Sender: sender, Shop: cfg.MerchantName, InternalTo: cfg.OrderNotifyEmail}
}

// NewApp wires every adapter. rdb may be nil, in which case the ledger lives
// in postgres, ACP sessions in memory and notifications are sent inline.
func NewApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*App, error) {
	a := &App{Config: cfg, DB: db, Redis: rdb}

	a.Photos = pg.NewPhotoRepo(db)
	projector := catalog.NewProjector(pricing.DefaultTable(), cfg.BaseURL)
	a.Catalog = &usecase.CatalogUC{Photos: a.Photos, Projector: projector}

	var gws usecase.Gateways
	if cfg.StripeSecretKey != "" {
		gws.Live = stripepay.NewGateway(cfg.StripeSecretKey, nil)
	}
	if cfg.StripeTestSecretKey != "" {
		gws.Test = stripepay.NewGateway(cfg.StripeTestSecretKey, nil)
	}
	if !cfg.StripeEnabled() {
		log.Warn().Msg("stripe is not configured, checkout is unavailable")
	}
	a.Webhooks = stripepay.NewWebhookVerifier(cfg.StripeWebhookSecret, cfg.StripeTestWebhookSecret)

	var originals domain.OriginalsStore
	if cfg.R2Enabled() {
		store, err := r2.New(r2.Config{
			Endpoint:        cfg.R2Endpoint,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Bucket:          cfg.R2Bucket,
		})
		if err != nil {
			return nil, err
		}
		originals = store
	} else {
		log.Warn().Msg("originals bucket is not configured, checkout pre-flight is skipped")
	}

	var partner domain.FulfillmentPartner
	if cfg.PictoremEnabled() {
		partner = pictorem.NewClient(cfg.PictoremAPIKey, cfg.PictoremBaseURL)
	} else {
		log.Warn().Msg("pictorem is not configured, print orders will need a manual retry")
	}

	var (
		ledger     domain.FulfillmentLedger
		sessions   domain.ACPSessionStore
		dispatcher domain.NotificationDispatcher
	)
	if rdb != nil {
		ledger = redisledger.New(rdb, redisPrefix)
		sessions = acpstore.NewRedisStore(rdb, redisPrefix)
		d, err := notify.NewAsynqDispatcher(cfg.RedisURL, cfg.NotifyQueue)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, d.Close)
		dispatcher = d
	} else {
		ledger = pg.NewLedgerRepo(db)
		sessions = acpstore.NewMemoryStore()
		a.inline = &notify.InlineDispatcher{Notifier: NewNotifier(cfg), Timeout: 30 * time.Second}
		dispatcher = a.inline
	}

	a.Checkout = &usecase.CheckoutUC{Gateways: gws, Originals: originals, Projector: projector}
	a.Fulfillment = &usecase.FulfillmentUC{
		Ledger:     ledger,
		Partner:    partner,
		Originals:  originals,
		Customers:  pg.NewCustomerRepo(db),
		Dispatcher: dispatcher,
	}
	a.ACP = &usecase.ACPUC{
		Catalog:   a.Catalog,
		Sessions:  sessions,
		Gateways:  gws,
		Originals: originals,
		Config: usecase.ACPConfig{
			MerchantName:     cfg.MerchantName,
			Currency:         "usd",
			TaxRate:          cfg.ACPTaxRate,
			ShippingCents:    cfg.ACPShippingCents,
			ReturnPolicyURL:  cfg.ReturnPolicyURL,
			ReturnWindowDays: cfg.ReturnWindowDays,
			BaseURL:          cfg.BaseURL,
		},
	}
	return a, nil
}

func (a *App) HTTPHandler() http.Handler {
	return httpserver.New(httpserver.Deps{
		Catalog:     a.Catalog,
		Checkout:    a.Checkout,
		Fulfillment: a.Fulfillment,
		ACP:         a.ACP,
		Webhooks:    a.Webhooks,
		AdminAPIKey: a.Config.AdminAPIKey,
		ACPAPIKey:   a.Config.ACPAPIKey,

		TrustedProxies: a.Config.TrustedProxies,
	})
}

// MigrateAndSeed creates the tables and upserts PHOTOS_FILE when set.
func (a *App) MigrateAndSeed(ctx context.Context) error {
	if err := a.DB.WithContext(ctx).AutoMigrate(&domain.Photo{}, &domain.Customer{}, &domain.FulfillmentRecord{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if a.Config.PhotosFile == "" {
		return nil
	}
	photos, err := LoadPhotos(a.Config.PhotosFile)
	if err != nil {
		return err
	}
	if err := a.Photos.Upsert(ctx, photos); err != nil {
		return fmt.Errorf("seed photos: %w", err)
	}
	log.Info().Int("photos", len(photos)).Str("file", a.Config.PhotosFile).Msg("photo catalog seeded")
	return nil
}

// LoadPhotos reads a JSON array of photos, assigning sort order by position
// when none is given.
func LoadPhotos(path string) ([]domain.Photo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read photos: %w", err)
	}
	var photos []domain.Photo
	if err := json.Unmarshal(b, &photos); err != nil {
		return nil, fmt.Errorf("decode photos: %w", err)
	}
	seen := make(map[string]bool, len(photos))
	for i := range photos {
		p := &photos[i]
		if p.ID == "" || p.Filename == "" {
			return nil, fmt.Errorf("photo %d: id and filename are required", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("photo %q listed twice", p.ID)
		}
		seen[p.ID] = true
		if p.SortOrder == 0 {
			p.SortOrder = i + 1
		}
	}
	return photos, nil
}

// Close waits for inline notifications and releases clients.
func (a *App) Close() error {
	if a.inline != nil {
		a.inline.Wait()
	}
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
