package config

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestLoadDefaults(t *testing.T) {
	c := qt.New(t)
	c.Setenv("JWT_SECRET", "s3cret")
	c.Setenv("PORT", "9090")

	cfg, err := Load()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Service, qt.Equals, ServiceAll)
	c.Assert(cfg.ReferenceCurrency, qt.Equals, "MAD")
	c.Assert(cfg.InvoiceServiceURL, qt.Equals, "http://localhost:9090")
	c.Assert(cfg.AccessTokenTTL, qt.Equals, 30*time.Minute)
	c.Assert(cfg.Runs(ServiceInvoice), qt.IsTrue)
}

func TestLoadOverrides(t *testing.T) {
	c := qt.New(t)
	c.Setenv("JWT_SECRET", "s3cret")
	c.Setenv("SERVICE", "settlement")
	c.Setenv("REFERENCE_CURRENCY", "eur")
	c.Setenv("PEER_TIMEOUT", "250ms")
	c.Setenv("SEED", "false")

	cfg, err := Load()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.ReferenceCurrency, qt.Equals, "EUR")
	c.Assert(cfg.PeerTimeout, qt.Equals, 250*time.Millisecond)
	c.Assert(cfg.Seed, qt.IsFalse)
	c.Assert(cfg.Runs(ServiceSettlement), qt.IsTrue)
	c.Assert(cfg.Runs(ServiceInvoice), qt.IsFalse)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}, ".*JWT_SECRET is required"},
		{"unknown service", map[string]string{"SERVICE": "gateway"}, `.*SERVICE "gateway".*`},
		{"bad reference", map[string]string{"REFERENCE_CURRENCY": "EURO"}, `.*REFERENCE_CURRENCY "EURO".*`},
		{"no attempts", map[string]string{"PEER_RETRY_ATTEMPTS": "0"}, ".*PEER_RETRY_ATTEMPTS.*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			c.Setenv("JWT_SECRET", "s3cret")
			for k, v := range tt.env {
				c.Setenv(k, v)
			}
			_, err := Load()
			c.Assert(err, qt.ErrorMatches, tt.want)
		})
	}
}
