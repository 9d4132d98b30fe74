package config

import (
	"fmt"
)

func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}

	if err := c.Stripe.Validate(); err != nil {
		return fmt.Errorf("stripe config: %w", err)
	}

	if err := c.Xendit.Validate(); err != nil {
		return fmt.Errorf("xendit config: %w", err)
	}

	if err := c.validateRefunds(); err != nil {
		return fmt.Errorf("refund config: %w", err)
	}

	// without these every inbound delivery would be rejected as unsigned
	if c.IsProduction() {
		if c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("stripe config: webhook secret is required in production")
		}
		if c.Xendit.WebhookSecret == "" {
			return fmt.Errorf("xendit config: webhook secret is required in production")
		}
	}

	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

func (c *RedisConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	return nil
}

func (c *StripeConfig) Validate() error {
	if c.Secret == "" || c.Secret == "your_stripe_secret_key" {
		return fmt.Errorf("stripe secret key is required - set STRIPE_SECRET environment variable")
	}
	return nil
}

func (c *XenditConfig) Validate() error {
	if c.Secret == "" || c.Secret == "your_xendit_secret_key" {
		return fmt.Errorf("xendit secret key is required - set XENDIT_SECRET environment variable")
	}
	return nil
}

func (c *Config) validateRefunds() error {
	for i, tier := range c.Refunds {
		if tier.MinHoursBefore < 0 {
			return fmt.Errorf("tier %d: min_hours_before must not be negative", i)
		}
		if tier.Percent < 0 || tier.Percent > 100 {
			return fmt.Errorf("tier %d: percent must be between 0 and 100", i)
		}
	}
	return nil
}
