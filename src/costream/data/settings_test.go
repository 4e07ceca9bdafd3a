package data

import (
	"testing"

	"github.com/viewer-gg/costream/src/costream/types"
)

func TestBuildSettingsCache(t *testing.T) {
	cache := buildSettingsCache([]types.Setting{
		{Name: "poll_interval", Value: "60"},
		{Name: "twitch_client_id", Value: "abc123"},
		{Name: "snapshot_interval", Value: ""},
	})

	if cache["poll_interval"] != "60" {
		t.Errorf("stored value must win over default, got %q", cache["poll_interval"])
	}
	if cache["snapshot_interval"] != "300" {
		t.Errorf("cleared setting must revert to default, got %q", cache["snapshot_interval"])
	}
	if cache["twitch_client_id"] != "abc123" {
		t.Errorf("credential setting = %q", cache["twitch_client_id"])
	}
	if cache["unknown"] != "" {
		t.Errorf("unknown setting = %q", cache["unknown"])
	}
}

func TestBuildSettingsCacheEmptyTable(t *testing.T) {
	cache := buildSettingsCache(nil)
	if cache["poll_interval"] != "120" || cache["snapshot_interval"] != "300" {
		t.Errorf("defaults missing: %v", cache)
	}
}
