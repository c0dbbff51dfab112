// Package config merges the three configuration sources: a yaml file, the
// process environment (with .env support), and command-line flags. Flags
// win over environment, environment wins over file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/eogh234/srt-reservation/internal/browser"
	"github.com/eogh234/srt-reservation/internal/models"
)

const (
	RailSRT = "srt"
	RailKTX = "ktx"
)

type Config struct {
	LoginID       string
	LoginPassword string

	DepartureStation string
	ArrivalStation   string
	DepartureDate    string
	DepartureTime    string
	TrainsToCheck    int
	WantWaitlist     bool

	Rail     string
	Headless bool

	DiscordWebhookURL string
	TelegramToken     string

	ServerPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RabbitURL string
}

// fileConfig mirrors the yaml key names of the original config file format.
type fileConfig struct {
	LoginID           string `yaml:"LOGIN_ID"`
	LoginPassword     string `yaml:"LOGIN_PASSWORD"`
	DepartStation     string `yaml:"DEPART_STATION"`
	ArriveStation     string `yaml:"ARRIVE_STATION"`
	DepartDate        string `yaml:"DEPART_DATE"`
	DepartTime        string `yaml:"DEPART_TIME"`
	TrainNumber       *int   `yaml:"TRAIN_NUMBER"`
	IsReserve         *bool  `yaml:"IS_RESERVE"`
	DiscordWebhookURL string `yaml:"DISCORD_WEBHOOK_URL"`
	Rail              string `yaml:"RAIL"`
	Headless          *bool  `yaml:"HEADLESS"`
	TelegramToken     string `yaml:"TELEGRAM_TOKEN"`
}

// Load builds a Config from defaults, then the yaml file at path (skipped
// when path is empty or missing), then the environment. Flag overrides are
// layered on afterwards via Flags.
func Load(path string) (*Config, error) {
	cfg := &Config{
		TrainsToCheck: 2,
		Rail:          RailSRT,
		Headless:      true,
		ServerPort:    "8082",
		DBHost:        "localhost",
		DBPort:        "5432",
		DBUser:        "postgres",
		DBPassword:    "postgres",
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// .env is a convenience for local runs; absence is not an error
	if err := godotenv.Load(); err == nil {
		log.Printf("[Config] loaded .env")
	}
	cfg.loadEnv()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.LoginID, fc.LoginID)
	setString(&c.LoginPassword, fc.LoginPassword)
	setString(&c.DepartureStation, fc.DepartStation)
	setString(&c.ArrivalStation, fc.ArriveStation)
	setString(&c.DepartureDate, fc.DepartDate)
	setString(&c.DepartureTime, fc.DepartTime)
	if fc.TrainNumber != nil {
		c.TrainsToCheck = *fc.TrainNumber
	}
	if fc.IsReserve != nil {
		c.WantWaitlist = *fc.IsReserve
	}
	setString(&c.DiscordWebhookURL, fc.DiscordWebhookURL)
	setString(&c.Rail, fc.Rail)
	if fc.Headless != nil {
		c.Headless = *fc.Headless
	}
	setString(&c.TelegramToken, fc.TelegramToken)

	log.Printf("[Config] loaded %s", path)
	return nil
}

func (c *Config) loadEnv() {
	c.LoginID = getEnv("LOGIN_ID", c.LoginID)
	c.LoginPassword = getEnv("LOGIN_PASSWORD", c.LoginPassword)
	c.DepartureStation = getEnv("DEPART_STATION", c.DepartureStation)
	c.ArrivalStation = getEnv("ARRIVE_STATION", c.ArrivalStation)
	c.DepartureDate = getEnv("DEPART_DATE", c.DepartureDate)
	c.DepartureTime = getEnv("DEPART_TIME", c.DepartureTime)
	c.TrainsToCheck = getEnvInt("TRAIN_NUMBER", c.TrainsToCheck)
	c.WantWaitlist = getEnvBool("IS_RESERVE", c.WantWaitlist)
	c.DiscordWebhookURL = getEnv("DISCORD_WEBHOOK_URL", c.DiscordWebhookURL)
	c.Rail = getEnv("RAIL", c.Rail)
	c.Headless = getEnvBool("HEADLESS", c.Headless)
	c.TelegramToken = getEnv("TELEGRAM_TOKEN", c.TelegramToken)
	c.ServerPort = getEnv("SERVER_PORT", c.ServerPort)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.RabbitURL = getEnv("RABBITMQ_URL", c.RabbitURL)
}

// Flags registers the command-line overrides on fs. Defaults are the values
// already loaded, so unset flags change nothing.
func (c *Config) Flags(fs *pflag.FlagSet) {
	fs.StringVar(&c.LoginID, "user", c.LoginID, "membership number")
	fs.StringVar(&c.LoginPassword, "psw", c.LoginPassword, "membership password")
	fs.StringVar(&c.DepartureStation, "dpt", c.DepartureStation, "departure station")
	fs.StringVar(&c.ArrivalStation, "arr", c.ArrivalStation, "arrival station")
	fs.StringVar(&c.DepartureDate, "dt", c.DepartureDate, "departure date (YYYYMMDD)")
	fs.StringVar(&c.DepartureTime, "tm", c.DepartureTime, "departure hour (even, 00-22)")
	fs.IntVar(&c.TrainsToCheck, "num", c.TrainsToCheck, "how many result rows to check")
	fs.BoolVar(&c.WantWaitlist, "reserve", c.WantWaitlist, "also claim waitlist slots")
	fs.StringVar(&c.DiscordWebhookURL, "webhook", c.DiscordWebhookURL, "Discord webhook URL")
	fs.StringVar(&c.Rail, "rail", c.Rail, "rail operator: srt or ktx")
	fs.BoolVar(&c.Headless, "headless", c.Headless, "run the browser headless")
}

func (c *Config) Query() models.TripQuery {
	return models.TripQuery{
		DepartureStation: c.DepartureStation,
		ArrivalStation:   c.ArrivalStation,
		DepartureDate:    c.DepartureDate,
		DepartureTime:    c.DepartureTime,
		TrainsToCheck:    c.TrainsToCheck,
		WantWaitlist:     c.WantWaitlist,
	}
}

func (c *Config) Credentials() models.Credentials {
	return models.Credentials{ID: c.LoginID, Secret: c.LoginPassword}
}

// Layout returns the page layout for the configured rail operator.
func (c *Config) Layout() (browser.Layout, error) {
	switch c.Rail {
	case RailSRT:
		return browser.SRT(), nil
	case RailKTX:
		return browser.KTX(), nil
	default:
		return browser.Layout{}, fmt.Errorf("unknown rail operator %q", c.Rail)
	}
}

// HasDB reports whether a journal database was configured.
func (c *Config) HasDB() bool { return c.DBName != "" }

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("[Config] %s is not a number, keeping %d", key, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("[Config] %s is not a boolean, keeping %v", key, fallback)
	}
	return fallback
}
