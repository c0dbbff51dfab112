package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eogh234/srt-reservation/internal/browser"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.TrainsToCheck)
	assert.Equal(t, RailSRT, cfg.Rail)
	assert.True(t, cfg.Headless)
	assert.Equal(t, "8082", cfg.ServerPort)
	assert.False(t, cfg.HasDB())
}

func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, `
LOGIN_ID: "1234567890"
LOGIN_PASSWORD: "secret!"
DEPART_STATION: 수서
ARRIVE_STATION: 부산
DEPART_DATE: "20260915"
DEPART_TIME: "08"
TRAIN_NUMBER: 4
IS_RESERVE: true
DISCORD_WEBHOOK_URL: https://discord.test/hook
RAIL: ktx
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "1234567890", cfg.LoginID)
	assert.Equal(t, "수서", cfg.DepartureStation)
	assert.Equal(t, "부산", cfg.ArrivalStation)
	assert.Equal(t, 4, cfg.TrainsToCheck)
	assert.True(t, cfg.WantWaitlist)
	assert.Equal(t, "https://discord.test/hook", cfg.DiscordWebhookURL)
	assert.Equal(t, RailKTX, cfg.Rail)

	q := cfg.Query()
	assert.Equal(t, "20260915", q.DepartureDate)
	assert.Equal(t, 4, q.TrainsToCheck)

	creds := cfg.Credentials()
	assert.Equal(t, "1234567890", creds.ID)
	assert.Equal(t, "secret!", creds.Secret)
}

func TestLoadMissingFileIsNotFatal(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, RailSRT, cfg.Rail)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
DEPART_STATION: 수서
TRAIN_NUMBER: 4
`)
	t.Setenv("DEPART_STATION", "동탄")
	t.Setenv("TRAIN_NUMBER", "7")
	t.Setenv("IS_RESERVE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "동탄", cfg.DepartureStation)
	assert.Equal(t, 7, cfg.TrainsToCheck)
	assert.True(t, cfg.WantWaitlist)
}

func TestFlagsOverrideEverything(t *testing.T) {
	path := writeConfigFile(t, `DEPART_STATION: 수서`)
	t.Setenv("ARRIVE_STATION", "부산")

	cfg, err := Load(path)
	require.NoError(t, err)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.Flags(fs)
	require.NoError(t, fs.Parse([]string{"--dpt", "오송", "--num", "9", "--headless=false"}))

	assert.Equal(t, "오송", cfg.DepartureStation)
	assert.Equal(t, "부산", cfg.ArrivalStation) // untouched by flags
	assert.Equal(t, 9, cfg.TrainsToCheck)
	assert.False(t, cfg.Headless)
}

func TestLayoutSelection(t *testing.T) {
	cfg := &Config{Rail: RailSRT}
	l, err := cfg.Layout()
	require.NoError(t, err)
	assert.Equal(t, browser.SRT().SearchURL, l.SearchURL)

	cfg.Rail = RailKTX
	l, err = cfg.Layout()
	require.NoError(t, err)
	assert.Equal(t, browser.KTX().SearchURL, l.SearchURL)
	assert.NotEmpty(t, l.StatusAttr)

	cfg.Rail = "maglev"
	_, err = cfg.Layout()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: "5433", DBUser: "srt",
		DBPassword: "pw", DBName: "reservations",
	}
	assert.Equal(t,
		"host=db user=srt password=pw dbname=reservations port=5433 sslmode=disable",
		cfg.DSN())
	assert.True(t, cfg.HasDB())
}
