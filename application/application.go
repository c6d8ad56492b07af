package application

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	zlog "github.com/RoboStack/xtensor-ros/pkg/log"
	"github.com/RoboStack/xtensor-ros/pkg/metrics"
	zviper "github.com/RoboStack/xtensor-ros/pkg/util/viper"
)

const (
	defaultConfigPath = "./config.yaml"
	envPrefix         = "XTROS"
	envConfigPath     = "XTROS_CONFIG_FILE_PATH"
)

// Application owns the loaded configuration and the named loggers of a process.
type Application struct {
	cfg     *Config
	raw     *zviper.Config
	loggers map[string]*zlog.MLogger
	metrics *http.Server
}

// New creates a new Application instance.
func New() *Application {
	return &Application{}
}

// Run loads configuration and initializes logging and metrics.
// The config file path is resolved with the following priority:
//  1. CLI: --config <path> or --config=<path>
//  2. Env: XTROS_CONFIG_FILE_PATH
//  3. Default: ./config.yaml (optional)
//
// Run returns the arguments left after removing --config.
func (a *Application) Run(args []string) ([]string, error) {
	cfg, raw, rest, err := load(args)
	if err != nil {
		return nil, err
	}
	a.cfg, a.raw = cfg, raw

	if err := a.initLogging(); err != nil {
		return nil, err
	}
	a.initMetrics()
	return rest, nil
}

// Config returns the loaded configuration.
func (a *Application) Config() *Config {
	return a.cfg
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return zlog.With(zlog.FieldModule(name))
}

// Close stops the metrics endpoint and flushes logs.
func (a *Application) Close() {
	if a.metrics != nil {
		_ = a.metrics.Close()
	}
	_ = zlog.Sync()
}

// Load resolves and parses the configuration without touching global state.
func Load(args []string) (*Config, error) {
	cfg, _, _, err := load(args)
	return cfg, err
}

func load(args []string) (*Config, *zviper.Config, []string, error) {
	configPath := ""
	if envPath := os.Getenv(envConfigPath); envPath != "" {
		configPath = envPath
	}

	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return nil, nil, nil, fmt.Errorf("missing value after --config")
			}
			configPath = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			if val := strings.TrimPrefix(arg, "--config="); val != "" {
				configPath = val
			}
			continue
		}
		rest = append(rest, arg)
	}

	raw := zviper.New(envPrefix)
	for k, v := range defaults {
		raw.SetDefault(k, v)
	}

	switch {
	case configPath != "":
		if err := raw.LoadFile(configPath); err != nil {
			return nil, nil, nil, errors.Wrapf(err, "failed to load config file %q", configPath)
		}
	default:
		if _, err := os.Stat(defaultConfigPath); err == nil {
			if err := raw.LoadFile(defaultConfigPath); err != nil {
				return nil, nil, nil, errors.Wrapf(err, "failed to load config file %q", defaultConfigPath)
			}
		}
	}

	cfg := &Config{}
	if err := raw.Unmarshal(cfg); err != nil {
		return nil, nil, nil, errors.Wrap(err, "decode config")
	}
	return cfg, raw, rest, nil
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	logger, props, err := zlog.InitLogger(&a.cfg.Log)
	if err != nil {
		return errors.Wrap(err, "init global logger")
	}
	zlog.ReplaceGlobals(logger, props)

	return a.initModuleLoggersFromConfig()
}

// initModuleLoggersFromConfig creates named loggers from YAML config under "logging" key.
//
// Example:
//
//	logging:
//	  topic:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: topic.log
func (a *Application) initModuleLoggersFromConfig() error {
	raw := make(map[string]zlog.Config)
	if err := a.raw.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger.With(zlog.FieldModule(name))}
	}
	return nil
}

func (a *Application) initMetrics() {
	metrics.Register(metrics.GetRegisterer())
	if a.cfg.Metrics.Listen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metrics = &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux}
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Warn("metrics endpoint stopped", zap.String("listen", a.cfg.Metrics.Listen), zap.Error(err))
		}
	}()
}
