// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Auth     AuthConfig    `yaml:"auth"`
	DB       DBConfig      `yaml:"db"`
	Redis    RedisConfig   `yaml:"redis"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// HTTPConfig — сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"30080"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig содержит параметры выпуска и проверки сессионных токенов.
//
//   - SessionTTL — время жизни сессии с момента выпуска/продления;
//   - SlidingExpiration — продлевать ли сессию при каждом успешном whoami
//     (скользящее истечение); false — фиксированный срок от логина;
//   - RefreshFactor — доля оставшегося TTL, после которой встроенный клиент
//     инициирует фоновое продление (0 < f < 1).
type AuthConfig struct {
	// У SlidingExpiration нет env-default: cleanenv применяет default поверх
	// нулевого значения поля, и явный false из YAML превращался бы обратно
	// в true. Значение по умолчанию задаётся в Load.
	SessionTTL        time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"1h"`
	SlidingExpiration bool          `yaml:"sliding_expiration" env:"SLIDING_EXPIRATION"`
	RefreshFactor     float64       `yaml:"refresh_factor" env:"REFRESH_FACTOR" env-default:"0.8"`
	SweepInterval     time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL" env-default:"10m"`
}

// DBConfig — настройки подключения к базе данных.
// Пустой DatabaseURL переключает сервер на встроенное in-memory хранилище
// (режим разработки, состояние теряется при рестарте).
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL"`
}

// RedisConfig — настройки опционального кэша сессий.
// Пустой RedisURL отключает кэш.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	// Скользящее истечение включено по умолчанию; и YAML, и ENV могут
	// явно выключить его значением false.
	cfg.Auth.SlidingExpiration = true

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, validate(&cfg)
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, validate(&cfg)
}

// validate проверяет взаимную согласованность значений.
func validate(cfg *Config) error {
	if cfg.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive, got %s", cfg.Auth.SessionTTL)
	}

	if f := cfg.Auth.RefreshFactor; f <= 0 || f >= 1 {
		return fmt.Errorf("auth.refresh_factor must be in (0, 1), got %v", f)
	}

	return nil
}
