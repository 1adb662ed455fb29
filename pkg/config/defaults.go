package config

import "github.com/spf13/viper"

// applyDefaults seeds viper with baseline configuration values before
// environment variables or a config file are applied on top.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("port", 3000)

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("metrics.enabled", false)

	// Keys with no real default are still registered with an empty value:
	// viper's Unmarshal only consults AutomaticEnv for keys it already
	// knows about, so without these the LINEGRID_ env vars for them would
	// be ignored.
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.ping_timeout", "5s")

	v.SetDefault("object.region", "us-east-1")
	v.SetDefault("object.access_key_id", "")
	v.SetDefault("object.secret_access_key", "")
	v.SetDefault("object.bucket", "")
	v.SetDefault("object.endpoint", "")
	v.SetDefault("object.part_size", "5Mi")
	v.SetDefault("object.max_parallel_uploads", 4)

	v.SetDefault("upload.max_file_size", "5Gi")
	v.SetDefault("upload.allowed_file_types", []string{
		"text/plain", "application/json", "text/csv",
	})

	v.SetDefault("job.batch_size", 1000)
	v.SetDefault("job.write_pause", "50ms")
	v.SetDefault("job.lock_timeout", "300000ms")
	v.SetDefault("job.stale_threshold", "600000ms")
	v.SetDefault("job.worker_poll_interval", "1000ms")
	v.SetDefault("job.max_attempts", 3)
	v.SetDefault("job.max_error_tail", 100)

	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.id", "")

	v.SetDefault("shutdown_timeout", "10s")
}
