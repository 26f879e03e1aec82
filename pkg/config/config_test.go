package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "0 9 * * *", cfg.Billing.SweepSchedule)
	assert.Equal(t, 3, cfg.Billing.ReminderLeadDays)
	assert.Equal(t, 10, cfg.Billing.OverdueWindowDays)
	assert.Equal(t, 30*24*time.Hour, cfg.Billing.ReminderDedupeTTL)
	assert.Equal(t, 5*time.Second, cfg.Notifications.RetryDelay)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.Reports.LinkTTL)
	assert.Equal(t, "./reports", cfg.Reports.StorageDir)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("BILLING_SUMMARY_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("REMINDER_LEAD_DAYS", 5)

	cfg := fromViper(v)

	assert.Equal(t, 5*time.Minute, cfg.Billing.SummaryCacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 5, cfg.Billing.ReminderLeadDays)
}

func TestBillingLocation(t *testing.T) {
	assert.Equal(t, time.UTC, BillingConfig{}.Location())
	assert.Equal(t, time.UTC, BillingConfig{Timezone: "Mars/Olympus"}.Location())
	assert.Equal(t, "UTC", BillingConfig{Timezone: "UTC"}.Location().String())
}
