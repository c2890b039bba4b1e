package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/logger"
)

// Service roles a process can run.
const (
	ServiceAll        = "all"
	ServiceAuth       = "auth"
	ServiceCurrency   = "currency"
	ServiceCatalog    = "catalog"
	ServiceCustomer   = "customer"
	ServiceInvoice    = "invoice"
	ServiceSettlement = "settlement"
)

// Services lists every single role, in dependency order.
var Services = []string{
	ServiceAuth, ServiceCurrency, ServiceCatalog, ServiceCustomer, ServiceInvoice, ServiceSettlement,
}

type Config struct {
	Service string
	Port    string
	DBPath  string
	Seed    bool

	// Token signing
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Seeded accounts
	AdminUsername string
	AdminPassword string
	UserUsername  string
	UserPassword  string

	ReferenceCurrency string

	// Peer services
	ClientServiceURL   string
	CatalogServiceURL  string
	CurrencyServiceURL string
	InvoiceServiceURL  string
	PeerTimeout        time.Duration
	PeerRetryAttempts  int
	PeerRetryDelay     time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	port := getEnv("PORT", "8080")
	self := "http://localhost:" + port

	config := &Config{
		Service:            getEnv("SERVICE", ServiceAll),
		Port:               port,
		DBPath:             getEnv("DB_PATH", "billing.db"),
		Seed:               getBool("SEED", true),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AccessTokenTTL:     getDuration("JWT_ACCESS_TTL", 30*time.Minute),
		RefreshTokenTTL:    getDuration("JWT_REFRESH_TTL", 24*time.Hour),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		UserUsername:       getEnv("USER_USERNAME", "user"),
		UserPassword:       getEnv("USER_PASSWORD", ""),
		ReferenceCurrency:  domain.NormalizeCode(getEnv("REFERENCE_CURRENCY", "MAD")),
		ClientServiceURL:   getEnv("CLIENT_SERVICE_URL", self),
		CatalogServiceURL:  getEnv("CATALOG_SERVICE_URL", self),
		CurrencyServiceURL: getEnv("CURRENCY_SERVICE_URL", self),
		InvoiceServiceURL:  getEnv("INVOICE_SERVICE_URL", self),
		PeerTimeout:        getDuration("PEER_TIMEOUT", 5*time.Second),
		PeerRetryAttempts:  getInt("PEER_RETRY_ATTEMPTS", 3),
		PeerRetryDelay:     getDuration("PEER_RETRY_DELAY", 100*time.Millisecond),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:      getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:          getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks the values Load cannot default sensibly. It is exported so
// command-line overrides can be re-checked.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Service != ServiceAll && !knownService(c.Service) {
		return fmt.Errorf("SERVICE %q is not one of %s, %s", c.Service, ServiceAll, strings.Join(Services, ", "))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.PeerTimeout <= 0 {
		return fmt.Errorf("PEER_TIMEOUT must be positive")
	}
	if c.PeerRetryAttempts < 1 {
		return fmt.Errorf("PEER_RETRY_ATTEMPTS must be at least 1")
	}
	if !domain.ValidCode(c.ReferenceCurrency) {
		return fmt.Errorf("REFERENCE_CURRENCY %q is not a 3-letter code", c.ReferenceCurrency)
	}
	return nil
}

// Runs reports whether this process serves the given role.
func (c *Config) Runs(service string) bool {
	return c.Service == ServiceAll || c.Service == service
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func knownService(s string) bool {
	for _, known := range Services {
		if s == known {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
