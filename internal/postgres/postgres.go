package postgres

import (
	"context"
	"strings"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	pgxslog "github.com/mcosta74/pgx-slog"
)

const (
	DefaultMaxConns        = 16
	DefaultMinConns        = 0
	DefaultLogLevel        = tracelog.LogLevelError
	DefaultApplicationName = "runes-ledger"
)

type Config struct {
	Host     string `mapstructure:"host"`     // Default is 127.0.0.1
	Port     string `mapstructure:"port"`     // Default is 5432
	User     string `mapstructure:"user"`     // Default is empty
	Password string `mapstructure:"password"` // Default is empty
	DBName   string `mapstructure:"db_name"`  // Default is postgres
	SSLMode  string `mapstructure:"ssl_mode"` // Default is prefer
	URL      string `mapstructure:"url"`      // If URL is provided, other fields are ignored

	MaxConns int32 `mapstructure:"max_conns"` // Default is 16
	MinConns int32 `mapstructure:"min_conns"` // Default is 0

	// Debug traces every statement, including the ledger batches written per block.
	Debug bool `mapstructure:"debug"`
}

// NewPool connects to the database and pings it once before returning.
func NewPool(ctx context.Context, conf Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(conf.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse postgres config")
	}
	poolConfig.MaxConns = utils.Default(conf.MaxConns, DefaultMaxConns)
	poolConfig.MinConns = utils.Default(conf.MinConns, DefaultMinConns)
	poolConfig.ConnConfig.Tracer = conf.QueryTracer()
	if _, ok := poolConfig.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = DefaultApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create a new connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to connect to the database")
	}
	return pool, nil
}

// String returns URL when it is set, otherwise a keyword/value connection string with defaults applied.
func (conf Config) String() string {
	if conf.URL != "" {
		return conf.URL
	}

	params := [][2]string{
		{"host", utils.Default(conf.Host, "127.0.0.1")},
		{"port", utils.Default(conf.Port, "5432")},
		{"dbname", utils.Default(conf.DBName, "postgres")},
		{"sslmode", utils.Default(conf.SSLMode, "prefer")},
		{"user", conf.User},
		{"password", conf.Password},
	}
	var sb strings.Builder
	for _, param := range params {
		if param[1] == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(param[0])
		sb.WriteByte('=')
		sb.WriteString(quoteParam(param[1]))
	}
	return sb.String()
}

// quoteParam quotes v when it contains characters that end a keyword/value pair.
func quoteParam(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func (conf Config) QueryTracer() pgx.QueryTracer {
	level := DefaultLogLevel
	if conf.Debug {
		level = tracelog.LogLevelTrace
	}
	return &tracelog.TraceLog{
		Logger:   pgxslog.NewLogger(logger.With("package", "postgres")),
		LogLevel: level,
	}
}
