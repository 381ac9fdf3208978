package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	Fulfillment FulfillmentConfig `yaml:"fulfillment"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// FulfillmentConfig holds the order lifecycle tunables. Money values
// are decimal strings so they survive YAML without float rounding.
type FulfillmentConfig struct {
	TaxRate            string `yaml:"tax_rate"`
	DeliveryFee        string `yaml:"delivery_fee"`
	DefaultPrepMinutes int    `yaml:"default_prep_minutes"`
	PickupEtaMinutes   int    `yaml:"pickup_eta_minutes"`
	DeliveryEtaMinutes int    `yaml:"delivery_eta_minutes"`
	PartnerCapacity    int    `yaml:"partner_capacity"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Fulfillment.TaxRate == "" {
		c.Fulfillment.TaxRate = "0.10"
	}
	if c.Fulfillment.DeliveryFee == "" {
		c.Fulfillment.DeliveryFee = "5.00"
	}
	if c.Fulfillment.DefaultPrepMinutes == 0 {
		c.Fulfillment.DefaultPrepMinutes = 30
	}
	if c.Fulfillment.PickupEtaMinutes == 0 {
		c.Fulfillment.PickupEtaMinutes = 10
	}
	if c.Fulfillment.DeliveryEtaMinutes == 0 {
		c.Fulfillment.DeliveryEtaMinutes = 30
	}
	if c.Fulfillment.PartnerCapacity == 0 {
		c.Fulfillment.PartnerCapacity = 3
	}
}
