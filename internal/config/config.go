package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hunteroverlay/extension/internal/palette"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the directory passed to Load.
const FileName = "trap_overlay.cfg.json"

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig holds frame performance export settings
type InfluxConfig struct {
	Enabled  bool
	URL      string
	Token    string
	Org      string
	Bucket   string
	Interval time.Duration
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./overlaylogs")

	viper.SetDefault("colors.open", "#FFFF00")
	viper.SetDefault("colors.empty", "#FF0000")
	viper.SetDefault("colors.full", "#00FF00")
	viper.SetDefault("colors.transition", "#FFC800")
	// blank keeps each state's own color as the oldest-tier border
	viper.SetDefault("colors.urgent", "#FF0000")

	viper.SetDefault("tiers.open.agedBorder", "#515904")
	viper.SetDefault("tiers.empty.agedBorder", "#401002")
	viper.SetDefault("tiers.full.agedBorder", "#02610b")
	for _, state := range []string{"open", "empty", "full"} {
		viper.SetDefault("tiers."+state+".agedFill", "")
		viper.SetDefault("tiers."+state+".urgentBorder", "")
		viper.SetDefault("tiers."+state+".urgentFill", "")
	}

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "trap-overlay")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "trap-overlay")
	viper.SetDefault("influx.bucket", "overlay_performance")
	viper.SetDefault("influx.interval", "10s")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// Reload re-reads the file found by the last Load.
func Reload() error {
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}
	return nil
}

var watchOnce sync.Once

// Watch calls fn with the new colors every time the config file changes.
// Only the first call registers a watcher.
func Watch(fn func(palette.Colors)) {
	watchOnce.Do(func() {
		viper.OnConfigChange(func(fsnotify.Event) {
			fn(GetColors())
		})
		viper.WatchConfig()
	})
}

// GetColors returns the overlay colors from the current configuration.
func GetColors() palette.Colors {
	tiers := func(state string) palette.TierOverrides {
		prefix := "tiers." + state + "."
		return palette.TierOverrides{
			AgedBorder:   viper.GetString(prefix + "agedBorder"),
			AgedFill:     viper.GetString(prefix + "agedFill"),
			UrgentBorder: viper.GetString(prefix + "urgentBorder"),
			UrgentFill:   viper.GetString(prefix + "urgentFill"),
		}
	}

	return palette.Colors{
		Open:       viper.GetString("colors.open"),
		Empty:      viper.GetString("colors.empty"),
		Full:       viper.GetString("colors.full"),
		Transition: viper.GetString("colors.transition"),
		Urgent:     viper.GetString("colors.urgent"),
		OpenTiers:  tiers("open"),
		EmptyTiers: tiers("empty"),
		FullTiers:  tiers("full"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled: viper.GetBool("influx.enabled"),
		URL: fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
		Interval: viper.GetDuration("influx.interval"),
	}
}

// GetGraylogConfig returns the Graylog settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
