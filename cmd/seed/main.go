package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bluecast/streampanel/pkg/account"
	"github.com/bluecast/streampanel/pkg/login"
	"github.com/bluecast/streampanel/pkg/policy"
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

type Config struct {
	DbConfig DbConfig
}

func main() {
	email := flag.String("email", "", "Email for the new account (required)")
	password := flag.String("password", "", "Password for the new account (required)")
	roleName := flag.String("role", "reseller", "Role to assign: user, reseller or admin")
	points := flag.Int64("points", 0, "Initial points balance")
	flag.Parse()

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	config := Config{}
	cleanenv.ReadEnv(&config)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, config.DbConfig.toDatabaseURL())
	if err != nil {
		slog.Error("Failed creating dbpool", "db", config.DbConfig.Database, "err", err)
		os.Exit(-1)
	}
	defer pool.Close()

	role := account.Role(*roleName)
	switch role {
	case account.RoleUser, account.RoleReseller, account.RoleAdmin:
	default:
		slog.Error("Unknown role", "role", *roleName)
		os.Exit(1)
	}

	passwordHash, err := login.HashPassword(*password)
	if err != nil {
		slog.Error("Failed to hash password", "err", err)
		os.Exit(-1)
	}

	accountRepo := account.NewPostgresAccountRepository(pool)
	acct, err := accountRepo.CreateAccount(ctx, account.Account{
		Email:         *email,
		PasswordHash:  passwordHash,
		Role:          role,
		IsActive:      true,
		PointsBalance: *points,
	})
	if err != nil {
		slog.Error("Failed to create account", "err", err, "email", *email)
		os.Exit(-1)
	}

	// Make sure the policy singleton exists so first logins read real values
	policyRepo := policy.NewPostgresPolicyRepository(pool)
	pol, err := policyRepo.GetPolicy(ctx)
	if err != nil {
		slog.Error("Failed to read policy", "err", err)
		os.Exit(-1)
	}
	if err := policyRepo.UpdatePolicy(ctx, pol); err != nil {
		slog.Error("Failed to write policy", "err", err)
		os.Exit(-1)
	}

	slog.Info("Account created", "id", acct.ID, "email", acct.Email, "role", acct.Role, "points", acct.PointsBalance)
}
