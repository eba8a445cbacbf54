package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		AppName          string
		SecretKey        string
		Build            string
		DefaultFromEmail string
		FrontendBaseURL  string
		SendgridAPIKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		CRM      CRMConfig
		Billing  BillingConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	RedisConfig struct {
		Address    string
		Password   string
		DB         int
		CatalogTTL time.Duration
	}

	CRMConfig struct {
		// SettleDelay is how long the board movement lock is held after a move
		// settles; InvalidateDelay is how long a confirmed move waits before
		// invalidating the board snapshot. Both only exist to avoid UI flicker
		// from overlapping optimistic and confirmed renders.
		SettleDelay     time.Duration
		InvalidateDelay time.Duration
	}

	BillingConfig struct {
		StripeWebhookSecret string
		SignatureTolerance  time.Duration
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewConfig loads the app configuration from the environment,
// after sourcing config/.env.<env> if it exists.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Aluno Admin Portal")
	v.SetDefault("secretKey", "j#2r$kp0f%v&-8y(u@qz!c7m.w1x+a5n^e9s_d4g")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverPort", "8000")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("shutdownTimeout", 5*time.Second)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbName", "aluno_adm")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("redisAddress", "")
	v.SetDefault("redisDB", 0)
	v.SetDefault("catalogCacheTTL", 5*time.Minute)
	v.SetDefault("crmSettleDelay", 500*time.Millisecond)
	v.SetDefault("crmInvalidateDelay", 800*time.Millisecond)
	v.SetDefault("stripeSignatureTolerance", 5*time.Minute)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Env:              env,
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		Build:            v.GetString("build"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Port:                      v.GetString("serverPort"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
			PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
			ShutdownTimeout:           v.GetDuration("shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Redis: RedisConfig{
			Address:    v.GetString("redisAddress"),
			Password:   v.GetString("redisPassword"),
			DB:         v.GetInt("redisDB"),
			CatalogTTL: v.GetDuration("catalogCacheTTL"),
		},
		CRM: CRMConfig{
			SettleDelay:     v.GetDuration("crmSettleDelay"),
			InvalidateDelay: v.GetDuration("crmInvalidateDelay"),
		},
		Billing: BillingConfig{
			StripeWebhookSecret: v.GetString("stripeWebhookSecret"),
			SignatureTolerance:  v.GetDuration("stripeSignatureTolerance"),
		},
	}
}
