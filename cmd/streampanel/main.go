package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"

	"github.com/bluecast/streampanel/pkg/account"
	"github.com/bluecast/streampanel/pkg/devicebind"
	"github.com/bluecast/streampanel/pkg/ledger"
	"github.com/bluecast/streampanel/pkg/login"
	"github.com/bluecast/streampanel/pkg/login/loginapi"
	"github.com/bluecast/streampanel/pkg/notification"
	"github.com/bluecast/streampanel/pkg/policy"
	"github.com/bluecast/streampanel/pkg/ratelimit"
	"github.com/bluecast/streampanel/pkg/reseller"
	resellerapi "github.com/bluecast/streampanel/pkg/reseller/api"
	"github.com/bluecast/streampanel/pkg/tokengenerator"
)

type DbConfig struct {
	Host     string `env:"PANEL_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"PANEL_PG_PORT" env-default:"5432"`
	Database string `env:"PANEL_PG_DATABASE" env-default:"streampanel_db"`
	User     string `env:"PANEL_PG_USER" env-default:"streampanel"`
	Password string `env:"PANEL_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"PANEL_PG_SCHEMA" env-default:"public"`
}

func (d DbConfig) toDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

type JwtConfig struct {
	Secret   string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer   string `env:"JWT_ISSUER" env-default:"streampanel"`
	Audience string `env:"JWT_AUDIENCE" env-default:"streampanel"`
}

type DeviceConfig struct {
	// HashSecret keys the one-way device id transform. Rotating it unbinds
	// every account.
	HashSecret string `env:"DEVICE_HASH_SECRET" env-default:"device-hash-secret"`

	// VerifyMode selects the code validator: "static" or "totp"
	VerifyMode   string `env:"DEVICE_VERIFY_MODE" env-default:"static"`
	VerifyCode   string `env:"DEVICE_VERIFY_CODE" env-default:"000000"`
	VerifySecret string `env:"DEVICE_VERIFY_TOTP_SECRET"`
}

type EmailConfig struct {
	Enabled  bool   `env:"EMAIL_ENABLED" env-default:"false"`
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME"`
	Password string `env:"EMAIL_PASSWORD"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

type RateLimitConfig struct {
	Enabled    bool    `env:"RATELIMIT_AUTH_ENABLED" env-default:"true"`
	Capacity   int     `env:"RATELIMIT_AUTH_CAPACITY" env-default:"10"`
	RefillRate float64 `env:"RATELIMIT_AUTH_REFILL_RATE" env-default:"0.167"` // 10 per minute
}

type Config struct {
	// PersistenceType selects the storage backend: "postgres" or "inmem"
	PersistenceType string `env:"PERSISTENCE_TYPE" env-default:"postgres"`

	DbConfig        DbConfig
	AppConfig       app.AppConfig
	JwtConfig       JwtConfig
	DeviceConfig    DeviceConfig
	EmailConfig     EmailConfig
	RateLimitConfig RateLimitConfig
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded configuration from .env file")
	}

	config := Config{}
	cleanenv.ReadEnv(&config)

	server := app.DefaultApp()
	app.RegisterHealthzRoutes(server.R)

	// Storage
	var pool *pgxpool.Pool
	var db account.DBTX
	var ledgerDB ledger.DBTX
	if config.PersistenceType == "postgres" || config.PersistenceType == "postgresql" {
		var err error
		pool, err = pgxpool.New(context.Background(), config.DbConfig.toDatabaseURL())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", config.DbConfig.Database, "host", config.DbConfig.Host, "err", err)
			os.Exit(-1)
		}
		db = pool
		ledgerDB = pool
	}

	accountRepo, err := account.NewAccountRepository(config.PersistenceType, account.RepositoryConfig{DB: db})
	if err != nil {
		slog.Error("Failed creating account repository", "err", err)
		os.Exit(-1)
	}
	policyRepo, err := policy.NewPolicyRepository(config.PersistenceType, policy.RepositoryConfig{DB: db})
	if err != nil {
		slog.Error("Failed creating policy repository", "err", err)
		os.Exit(-1)
	}
	ledgerRepo, err := ledger.NewLedgerRepository(config.PersistenceType, ledger.RepositoryConfig{DB: ledgerDB})
	if err != nil {
		slog.Error("Failed creating ledger repository", "err", err)
		os.Exit(-1)
	}
	transactor, err := ledger.NewTransactor(config.PersistenceType, pool)
	if err != nil {
		slog.Error("Failed creating transactor", "err", err)
		os.Exit(-1)
	}

	// Device binding
	hasher := devicebind.NewHasher(config.DeviceConfig.HashSecret)
	var otpValidator devicebind.OTPValidator
	switch config.DeviceConfig.VerifyMode {
	case "totp":
		otpValidator = devicebind.NewTOTPValidator(config.DeviceConfig.VerifySecret)
	default:
		otpValidator = devicebind.NewStaticOTPValidator(config.DeviceConfig.VerifyCode)
	}
	bindingService := devicebind.NewService(accountRepo, policyRepo, hasher, otpValidator)

	// Token issuance
	tokenGenerator := tokengenerator.NewJwtTokenGenerator(
		config.JwtConfig.Secret,
		config.JwtConfig.Issuer,
		config.JwtConfig.Audience,
	)

	// Challenge notices
	loginOpts := []login.Option{}
	if config.EmailConfig.Enabled {
		emailNotifier, err := notification.NewEmailNotifier(notification.SMTPConfig{
			Host:     config.EmailConfig.Host,
			Port:     int(config.EmailConfig.Port),
			TLS:      config.EmailConfig.TLS,
			Username: config.EmailConfig.Username,
			Password: config.EmailConfig.Password,
			From:     config.EmailConfig.From,
		})
		if err != nil {
			slog.Error("Failed creating email notifier", "err", err)
			os.Exit(-1)
		}
		loginOpts = append(loginOpts, login.WithNotifier(emailNotifier))
	}

	loginService := login.NewLoginService(accountRepo, bindingService, tokenGenerator, loginOpts...)
	provisioningService := reseller.NewProvisioningService(accountRepo, ledgerRepo, policyRepo, transactor)

	loginHandle := loginapi.NewHandle(loginapi.WithLoginService(loginService))
	resellerHandle := resellerapi.NewHandle(resellerapi.WithProvisioningService(provisioningService))

	authLimiter := ratelimit.NewMiddleware(ratelimit.Config{
		Enabled:    config.RateLimitConfig.Enabled,
		Capacity:   config.RateLimitConfig.Capacity,
		RefillRate: config.RateLimitConfig.RefillRate,
		BucketTTL:  time.Hour,
	})

	server.R.Route("/auth", func(r chi.Router) {
		r.Use(authLimiter.Handler)
		loginHandle.RegisterRoutes(r)
	})

	hmacAuth := jwtauth.New("HS256", []byte(config.JwtConfig.Secret), nil)
	server.R.Route("/reseller", func(r chi.Router) {
		r.Use(jwtauth.Verifier(hmacAuth))
		r.Use(jwtauth.Authenticator(hmacAuth))
		resellerHandle.RegisterRoutes(r)
	})

	slog.Info("Starting streampanel", "persistence", config.PersistenceType)
	server.Run()
}
