package config

import "github.com/spf13/viper"

const (
	DefaultEnvPrefix  = "THERMALD"
	DefaultConfigName = "thermald"
	DefaultConfigDir  = "/etc"

	DefaultSampleInterval      = 1.0
	DefaultFilterTimeConstant  = 10.0
	DefaultTargetTemperature   = 85.0
	DefaultIntegralMin         = -20.0
	DefaultIntegralMax         = 0.0
	DefaultSustainablePower    = 1.1
	DefaultProportionalGain    = 0.0
	DefaultIntegralGain        = 0.2
	DefaultShutdownTemperature = 95.0
	DefaultThrottleEndDelay    = 0.0

	DefaultSensorKey     = "coretemp_package_id_0"
	DefaultRAPLPath      = "/sys/class/powercap/intel-rapl:0"
	DefaultLimiterTopic  = "thermald/thermal_load"
	DefaultLimiterClient = "thermald"
	DefaultMetricsDBPath = "/var/lib/thermald/metrics.db"
	DefaultPIDFile       = "/run/thermald.pid"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("controller.sample_interval", DefaultSampleInterval)
	v.SetDefault("controller.filter_time_constant", DefaultFilterTimeConstant)
	v.SetDefault("controller.target_temperature", DefaultTargetTemperature)
	v.SetDefault("controller.e_integral_min", DefaultIntegralMin)
	v.SetDefault("controller.e_integral_max", DefaultIntegralMax)
	v.SetDefault("controller.sustainable_power", DefaultSustainablePower)
	v.SetDefault("controller.proportional_gain", DefaultProportionalGain)
	v.SetDefault("controller.integral_gain", DefaultIntegralGain)

	v.SetDefault("policy.thermal_shutdown_temperature", DefaultShutdownTemperature)
	v.SetDefault("policy.throttle_end_delay", DefaultThrottleEndDelay)

	v.SetDefault("sensor.kind", SensorHwmon)
	v.SetDefault("sensor.key", DefaultSensorKey)
	v.SetDefault("sensor.device", 0)

	v.SetDefault("actors", []map[string]any{
		{"kind": ActorRAPL, "name": "package-0", "path": DefaultRAPLPath},
	})

	v.SetDefault("limiter.broker", "")
	v.SetDefault("limiter.topic", DefaultLimiterTopic)
	v.SetDefault("limiter.client_id", DefaultLimiterClient)
	v.SetDefault("limiter.username", "")
	v.SetDefault("limiter.password", "")
	v.SetDefault("limiter.qos", 1)
	v.SetDefault("limiter.timeout", 5.0)

	v.SetDefault("crash_report.dsn", "")
	v.SetDefault("crash_report.environment", "production")
	v.SetDefault("crash_report.flush_timeout", 2.0)

	v.SetDefault("shutdown.command", []string{"systemctl", "reboot"})
	v.SetDefault("shutdown.poweroff_command", []string{"systemctl", "poweroff"})

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.db_path", DefaultMetricsDBPath)
	v.SetDefault("metrics.batch_size", 60)
	v.SetDefault("metrics.batch_timeout", 30.0)
	v.SetDefault("metrics.backup_on_migrate", true)

	v.SetDefault("telemetry.listen", "")

	v.SetDefault("pid_file", DefaultPIDFile)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
	v.SetDefault("monitor", false)
}
