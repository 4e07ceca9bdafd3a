package poller

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/viewer-gg/costream/src/costream/twitch"
	"github.com/viewer-gg/costream/src/costream/types"
)

// Reconcile computes the next state of one live-stream record given a fresh
// observation. info == nil means the streamer was absent from the batch
// response, i.e. offline. Returns the record to persist, or nil when there
// is nothing to write (offline with no open record).
//
// Records are keyed by (application, tournament), not by session: a second
// stream within the same tournament reopens the closed record rather than
// starting a fresh one. Known modeling limitation, kept for compatibility
// with the persisted history.
func Reconcile(rec *types.LiveStream, applicationID, tournamentID string, info *twitch.StreamInfo, now time.Time) *types.LiveStream {
	if info == nil {
		// Close an open record on the first observed offline transition;
		// records that are already closed stay untouched.
		if rec == nil || !rec.IsLive {
			return nil
		}
		rec.IsLive = false
		end := now
		rec.StreamEnd = &end
		rec.UpdatedAt = now
		return rec
	}

	viewers := info.ViewerCount

	if rec == nil {
		start := info.StartedAt
		return &types.LiveStream{
			ID:             uuid.NewString(),
			ApplicationID:  applicationID,
			TournamentID:   tournamentID,
			Platform:       "Twitch",
			StreamerName:   info.UserName,
			Game:           info.GameName,
			Title:          info.Title,
			StreamURL:      fmt.Sprintf("https://twitch.tv/%s", info.UserLogin),
			Language:       info.Language,
			IsLive:         true,
			CurrentViewers: viewers,
			PeakViewers:    viewers,
			AverageViewers: viewers,
			StreamStart:    &start,
			UpdatedAt:      now,
		}
	}

	rec.IsLive = true
	rec.StreamerName = info.UserName
	rec.Game = info.GameName
	rec.Title = info.Title
	rec.Language = info.Language
	rec.CurrentViewers = viewers
	if viewers > rec.PeakViewers {
		rec.PeakViewers = viewers
	}
	// Two-point running blend, not a true streaming mean; changing it
	// silently changes historical analytics.
	if rec.AverageViewers > 0 {
		rec.AverageViewers = int(math.Round(float64(rec.AverageViewers+viewers) / 2))
	} else {
		rec.AverageViewers = viewers
	}
	start := info.StartedAt
	rec.StreamStart = &start
	rec.UpdatedAt = now
	return rec
}
