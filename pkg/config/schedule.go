package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// TriggerSchedule is the cron configuration of one time-based trigger.
type TriggerSchedule struct {
	Spec     string `mapstructure:"schedule" yaml:"schedule"`
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
}

// LoadSchedules applies the optional YAML override file on top of defaults.
//
//	timezone: Asia/Kolkata
//	triggers:
//	  kpi_weekly_reminder:
//	    schedule: "0 9 * * MON"
//	  calendar_digest:
//	    enabled: false
//
// Triggers without an explicit timezone inherit the file's top-level one, or
// defaultTZ when the file sets none. Unknown trigger names are rejected.
func LoadSchedules(path string, defaults map[string]TriggerSchedule, defaultTZ string) (map[string]TriggerSchedule, error) {
	out := make(map[string]TriggerSchedule, len(defaults))
	for name, s := range defaults {
		if s.Timezone == "" {
			s.Timezone = defaultTZ
		}
		out[name] = s
	}
	if path == "" {
		return out, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return out, nil
		}
		return nil, fmt.Errorf("reading schedule file %s: %w", path, err)
	}

	tz := defaultTZ
	if v.IsSet("timezone") {
		tz = v.GetString("timezone")
	}

	for name := range v.GetStringMap("triggers") {
		if _, ok := defaults[name]; !ok {
			return nil, fmt.Errorf("schedule file %s: unknown trigger %q", path, name)
		}
	}

	for name, s := range out {
		if defaults[name].Timezone == "" {
			s.Timezone = tz
		}
		prefix := "triggers." + name + "."
		if v.IsSet(prefix + "schedule") {
			s.Spec = v.GetString(prefix + "schedule")
		}
		if v.IsSet(prefix + "timezone") {
			s.Timezone = v.GetString(prefix + "timezone")
		}
		if v.IsSet(prefix + "enabled") {
			s.Enabled = v.GetBool(prefix + "enabled")
		}
		out[name] = s
	}
	return out, nil
}
