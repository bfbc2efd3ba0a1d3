package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOOKUP_CONCURRENCY", "")
	t.Setenv("SEND_TIMEOUT", "")

	cfg := Load()
	if cfg.LookupConcurrency != 32 {
		t.Errorf("LookupConcurrency = %d, want 32", cfg.LookupConcurrency)
	}
	if cfg.SendTimeout != 30*time.Second {
		t.Errorf("SendTimeout = %v, want 30s", cfg.SendTimeout)
	}
	if cfg.KPILookbackDays != 14 {
		t.Errorf("KPILookbackDays = %d, want 14", cfg.KPILookbackDays)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOOKUP_CONCURRENCY", "8")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("APP_BASE_URL", "https://dash.example/")

	cfg := Load()
	if cfg.LookupConcurrency != 8 {
		t.Errorf("LookupConcurrency = %d, want 8", cfg.LookupConcurrency)
	}
	if cfg.ReadTimeout != 2*time.Second {
		t.Errorf("ReadTimeout = %v, want 2s", cfg.ReadTimeout)
	}
	if len(cfg.CORSAllowOrigins) != 2 || cfg.CORSAllowOrigins[1] != "https://b.example" {
		t.Errorf("CORSAllowOrigins = %v", cfg.CORSAllowOrigins)
	}
	if cfg.AppBaseURL != "https://dash.example" {
		t.Errorf("AppBaseURL = %q, want trailing slash trimmed", cfg.AppBaseURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing project", Config{DedupBackend: DedupBackendFirestore, Timezone: "UTC"}, ErrMissingProjectID},
		{"postgres without url", Config{GoogleProjectID: "p", DedupBackend: DedupBackendPostgres, Timezone: "UTC"}, ErrMissingDatabaseURL},
		{"unknown backend", Config{GoogleProjectID: "p", DedupBackend: "redis", Timezone: "UTC"}, ErrUnknownDedup},
		{"ok", Config{GoogleProjectID: "p", DedupBackend: DedupBackendFirestore, Timezone: "UTC"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Validate(); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadSchedules(t *testing.T) {
	defaults := map[string]TriggerSchedule{
		"kpi_weekly_reminder": {Spec: "0 9 * * MON", Enabled: true},
		"calendar_digest":     {Spec: "0 7 * * *", Enabled: true},
	}

	t.Run("no file keeps defaults", func(t *testing.T) {
		got, err := LoadSchedules("", defaults, "UTC")
		if err != nil {
			t.Fatalf("LoadSchedules() error: %v", err)
		}
		if got["calendar_digest"].Timezone != "UTC" {
			t.Errorf("Timezone = %q, want UTC", got["calendar_digest"].Timezone)
		}
	})

	t.Run("file overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "schedule.yaml")
		body := "timezone: Asia/Kolkata\ntriggers:\n  calendar_digest:\n    enabled: false\n  kpi_weekly_reminder:\n    schedule: \"30 8 * * MON\"\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}

		got, err := LoadSchedules(path, defaults, "UTC")
		if err != nil {
			t.Fatalf("LoadSchedules() error: %v", err)
		}
		if got["calendar_digest"].Enabled {
			t.Error("calendar_digest should be disabled")
		}
		if got["kpi_weekly_reminder"].Spec != "30 8 * * MON" {
			t.Errorf("Spec = %q", got["kpi_weekly_reminder"].Spec)
		}
		if got["kpi_weekly_reminder"].Timezone != "Asia/Kolkata" {
			t.Errorf("Timezone = %q, want Asia/Kolkata", got["kpi_weekly_reminder"].Timezone)
		}
	})

	t.Run("unknown trigger rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "schedule.yaml")
		if err := os.WriteFile(path, []byte("triggers:\n  nope:\n    enabled: true\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadSchedules(path, defaults, "UTC"); err == nil {
			t.Error("expected error for unknown trigger")
		}
	})
}
