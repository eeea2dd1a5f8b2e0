package config

import "github.com/gaze-network/runes-ledger/internal/postgres"

type Config struct {
	Datasource  string          `mapstructure:"datasource"`   // Datasource to fetch bitcoin blocks e.g. `bitcoin-node` | `aws-public-data`
	Database    string          `mapstructure:"database"`     // Database to store runes data e.g. `postgres` | `memory`
	APIHandlers []string        `mapstructure:"api_handlers"` // List of API handlers to enable. (e.g. `http`)
	Postgres    postgres.Config `mapstructure:"postgres"`
}
