package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/viewer-gg/costream/src/costream/data"
	"gorm.io/gorm"
)

type Config struct {
	TwitchClientID      string
	TwitchClientSecret  string
	DiscordToken        string
	DiscordClientID     string
	DiscordClientSecret string
	MySQLDSN            string
	RedisURL            string
	JWTSecret           string
	Port                string
	PollInterval        time.Duration
	SnapshotInterval    time.Duration
	AllowOrigins        []string
}

// Load reads configuration from the settings table with env fallbacks.
// Connection-level values (MySQL, Redis, port) come from the environment
// only, since the settings table is not reachable before connecting.
func Load(db *gorm.DB) Config {
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	pollSecs := getint("POLL_INTERVAL", setting("poll_interval", "120"))
	snapSecs := getint("SNAPSHOT_INTERVAL", setting("snapshot_interval", "300"))

	origins := []string{"http://localhost:3000", "https://viewer.gg"}
	if v := os.Getenv("ALLOW_ORIGINS"); v != "" {
		origins = []string{v}
	}

	return Config{
		TwitchClientID:      setting("twitch_client_id", os.Getenv("TWITCH_CLIENT_ID")),
		TwitchClientSecret:  setting("twitch_client_secret", os.Getenv("TWITCH_CLIENT_SECRET")),
		DiscordToken:        setting("discord_token", os.Getenv("DISCORD_TOKEN")),
		DiscordClientID:     setting("discord_client_id", os.Getenv("DISCORD_CLIENT_ID")),
		DiscordClientSecret: setting("discord_client_secret", os.Getenv("DISCORD_CLIENT_SECRET")),
		MySQLDSN:            getenv("MYSQL_DSN", "costream:costream@tcp(127.0.0.1:3306)/costream"),
		RedisURL:            getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		JWTSecret:           getenv("JWT_SECRET", ""),
		Port:                getenv("PORT", "8080"),
		PollInterval:        time.Duration(pollSecs) * time.Second,
		SnapshotInterval:    time.Duration(snapSecs) * time.Second,
		AllowOrigins:        origins,
	}
}

// setting reads a database setting, falling back when empty.
func setting(name, fallback string) string {
	if v := data.GetSetting(name); v != "" {
		return v
	}
	return fallback
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key, def string) int {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("bad value for %s: %q", key, v)
		n, _ = strconv.Atoi(def)
	}
	return n
}
