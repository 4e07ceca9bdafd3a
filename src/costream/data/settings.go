package data

import (
	"sync"

	"github.com/viewer-gg/costream/src/costream/types"
	"gorm.io/gorm"
)

// Tunables organizers can change at runtime without a redeploy. Values are
// seconds unless noted. Credentials (twitch_client_id, discord_token, ...)
// also live in the table but carry no defaults; config falls back to the
// environment for those.
var defaultSettings = map[string]string{
	"poll_interval":     "120",
	"snapshot_interval": "300",
}

var (
	settingsCache map[string]string
	settingsMu    sync.RWMutex
)

// LoadSettings reads the settings table into the cache, filling gaps with
// the costream defaults above.
func LoadSettings(db *gorm.DB) error {
	var settings []types.Setting
	if err := db.Find(&settings).Error; err != nil {
		return err
	}

	cache := buildSettingsCache(settings)

	settingsMu.Lock()
	settingsCache = cache
	settingsMu.Unlock()

	return nil
}

// buildSettingsCache layers stored rows over the defaults. A stored empty
// value does not mask a default; clearing a setting reverts it.
func buildSettingsCache(settings []types.Setting) map[string]string {
	cache := make(map[string]string, len(settings)+len(defaultSettings))
	for name, value := range defaultSettings {
		cache[name] = value
	}
	for _, s := range settings {
		if s.Value != "" {
			cache[s.Name] = s.Value
		}
	}
	return cache
}

// GetSetting returns the cached value for name, or "" when unknown.
func GetSetting(name string) string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsCache[name]
}

// RefreshSettings reloads the cache; wired to ops tooling so interval
// changes take effect without a restart.
func RefreshSettings(db *gorm.DB) error {
	return LoadSettings(db)
}
