package config

import "github.com/caarlos0/env/v9"

type Config struct {
	Port                   string `env:"PORT" envDefault:"8080"`
	Env                    string `env:"APP_ENV" envDefault:"dev"`
	DBUser                 string `env:"DB_USER,required"`
	DBPassword             string `env:"DB_PASSWORD,required"`
	DBHost                 string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME,required"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	// Message policy.
	MaxMessageLength int `env:"MAX_MESSAGE_LENGTH" envDefault:"2000"`
	DefaultPageSize  int `env:"DEFAULT_PAGE_SIZE" envDefault:"50"`
	MaxPageSize      int `env:"MAX_PAGE_SIZE" envDefault:"200"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
