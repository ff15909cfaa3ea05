package config

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	otcconfig "github.com/tokendesk/otc-desk/modules/otc/config"
	"github.com/tokendesk/otc-desk/pkg/logger"
	"github.com/tokendesk/otc-desk/pkg/logger/slogx"
	"github.com/tokendesk/otc-desk/pkg/middleware/requestcontext"
	"github.com/tokendesk/otc-desk/pkg/middleware/requestlogger"
)

var (
	configOnce sync.Once
	config     = &Config{
		Logger: logger.Config{
			Output: "text",
		},
		HTTPServer: HTTPServer{
			Port: 8080,
		},
	}
)

type Config struct {
	Logger     logger.Config `mapstructure:"logger"`
	HTTPServer HTTPServer    `mapstructure:"http_server"`
	Modules    Modules       `mapstructure:"modules"`
}

type HTTPServer struct {
	Port      int                               `mapstructure:"port"`
	Logger    requestlogger.Config              `mapstructure:"logger"`
	RequestIP requestcontext.WithClientIPConfig `mapstructure:"request_ip"`
}

type Modules struct {
	OTC otcconfig.Config `mapstructure:"otc"`
}

// Parse loads the configuration from the given file (or ./config.yaml)
// and environment variables. Safe to call multiple times; only the first
// call reads.
func Parse(configFile string) Config {
	ctx := logger.WithContext(context.Background(), slog.String("package", "config"))
	configOnce.Do(func() {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			viper.AddConfigPath("./")
			viper.SetConfigName("config")
		}

		viper.AutomaticEnv()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		if err := viper.ReadInConfig(); err != nil {
			var errNotfound viper.ConfigFileNotFoundError
			if errors.As(err, &errNotfound) {
				logger.WarnContext(ctx, "config file not found, use default value", slogx.Error(err))
			} else {
				logger.PanicContext(ctx, "invalid config file", slogx.Error(err))
			}
		}

		if err := viper.Unmarshal(&config); err != nil {
			logger.PanicContext(ctx, "failed to unmarshal config", slogx.Error(err))
		}
	})

	return *config
}

// Load returns the parsed configuration. Parse must have run first; in
// practice cobra's OnInitialize does that before any command handler.
func Load() Config {
	return *config
}

// BindPFlag binds a command-line flag to a configuration key.
func BindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logger.Panic("failed to bind flag to config key", slogx.Error(err), slog.String("key", key))
	}
}
