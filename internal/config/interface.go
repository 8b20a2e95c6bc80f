package config

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

// options holds internal configuration options
type options struct {
	configPath string
	envPrefix  string
	envFile    string
	args       []string
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvFile loads variables from a dotenv file before reading the
// environment. A missing file is ignored. Default is ".env".
func WithEnvFile(path string) Option {
	return func(o *options) error {
		o.envFile = path
		return nil
	}
}

// WithArgs replaces the command line arguments parsed for flags.
func WithArgs(args []string) Option {
	return func(o *options) error {
		o.args = args
		return nil
	}
}

// Sensor kinds
const (
	SensorHwmon = "hwmon"
	SensorNVML  = "nvml"
)

// Actor kinds
const (
	ActorRAPL = "rapl"
	ActorNVML = "nvml"
)
