package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Controller  ControllerConfig  `mapstructure:"controller"`
	Policy      PolicyConfig      `mapstructure:"policy"`
	Sensor      SensorConfig      `mapstructure:"sensor"`
	Actors      []ActorConfig     `mapstructure:"actors"`
	Limiter     LimiterConfig     `mapstructure:"limiter"`
	CrashReport CrashReportConfig `mapstructure:"crash_report"`
	Shutdown    ShutdownConfig    `mapstructure:"shutdown"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`

	PIDFile string `mapstructure:"pid_file"`
	Debug   bool   `mapstructure:"debug"`
	Verbose bool   `mapstructure:"verbose"`
	Monitor bool   `mapstructure:"monitor"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// ControllerConfig holds the PI parameters. Times are in seconds.
type ControllerConfig struct {
	SampleInterval     float64 `mapstructure:"sample_interval"`
	FilterTimeConstant float64 `mapstructure:"filter_time_constant"`
	TargetTemperature  float64 `mapstructure:"target_temperature"`
	IntegralMin        float64 `mapstructure:"e_integral_min"`
	IntegralMax        float64 `mapstructure:"e_integral_max"`
	SustainablePower   float64 `mapstructure:"sustainable_power"`
	ProportionalGain   float64 `mapstructure:"proportional_gain"`
	IntegralGain       float64 `mapstructure:"integral_gain"`
}

type PolicyConfig struct {
	ShutdownTemperature float64 `mapstructure:"thermal_shutdown_temperature"`
	ThrottleEndDelay    float64 `mapstructure:"throttle_end_delay"`
}

type SensorConfig struct {
	Kind   string `mapstructure:"kind"`
	Key    string `mapstructure:"key"`
	Device int    `mapstructure:"device"`
}

type ActorConfig struct {
	Kind   string `mapstructure:"kind"`
	Name   string `mapstructure:"name"`
	Path   string `mapstructure:"path"`
	Device int    `mapstructure:"device"`
}

type LimiterConfig struct {
	Broker   string  `mapstructure:"broker"`
	Topic    string  `mapstructure:"topic"`
	ClientID string  `mapstructure:"client_id"`
	Username string  `mapstructure:"username"`
	Password string  `mapstructure:"password"`
	QoS      byte    `mapstructure:"qos"`
	Timeout  float64 `mapstructure:"timeout"`
}

type CrashReportConfig struct {
	DSN          string  `mapstructure:"dsn"`
	Environment  string  `mapstructure:"environment"`
	FlushTimeout float64 `mapstructure:"flush_timeout"`
}

type ShutdownConfig struct {
	Command         []string `mapstructure:"command"`
	PowerOffCommand []string `mapstructure:"poweroff_command"`
}

type MetricsConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	DBPath          string  `mapstructure:"db_path"`
	BatchSize       int     `mapstructure:"batch_size"`
	BatchTimeout    float64 `mapstructure:"batch_timeout"`
	BackupOnMigrate bool    `mapstructure:"backup_on_migrate"`
}

type TelemetryConfig struct {
	Listen string `mapstructure:"listen"`
}

// Load reads the configuration from flags, the environment, the config file
// and the defaults, in that order of precedence, and validates it.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{
		envPrefix: DefaultEnvPrefix,
		envFile:   ".env",
		args:      os.Args[1:],
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}

	fs := pflag.NewFlagSet("thermald", pflag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to the configuration file")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.Bool("monitor", false, "Never change power limits or publish thermal load (critical shutdown stays armed)")
	fs.Float64("interval", DefaultSampleInterval, "Seconds between control iterations")
	fs.Float64("target", DefaultTargetTemperature, "Target temperature in Celsius")
	fs.String("telemetry-listen", "", "Address for the Prometheus endpoint")

	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err).WithData(o.envFile)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"debug":                         "debug",
		"verbose":                       "verbose",
		"monitor":                       "monitor",
		"controller.sample_interval":    "interval",
		"controller.target_temperature": "target",
		"telemetry.listen":              "telemetry-listen",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err).WithData(name)
		}
	}

	path := *configFlag
	if path == "" {
		path = o.configPath
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath(DefaultConfigDir)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// PolicyParams converts the loaded values into controller parameters.
func (c *Config) PolicyParams() thermal.PolicyParams {
	return thermal.PolicyParams{
		Controller: thermal.ControllerParams{
			SampleInterval:     Seconds(c.Controller.SampleInterval),
			FilterTimeConstant: Seconds(c.Controller.FilterTimeConstant),
			TargetTemperature:  thermal.Celsius(c.Controller.TargetTemperature),
			IntegralMin:        c.Controller.IntegralMin,
			IntegralMax:        c.Controller.IntegralMax,
			SustainablePower:   thermal.Watts(c.Controller.SustainablePower),
			ProportionalGain:   c.Controller.ProportionalGain,
			IntegralGain:       c.Controller.IntegralGain,
		},
		ShutdownTemperature: thermal.Celsius(c.Policy.ShutdownTemperature),
		ThrottleEndDelay:    Seconds(c.Policy.ThrottleEndDelay),
		MonitorOnly:         c.Monitor,
	}
}

// Seconds converts fractional seconds to a time.Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
