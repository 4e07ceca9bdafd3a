package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	costreamdata "github.com/viewer-gg/costream/src/costream/data"
	"github.com/viewer-gg/costream/src/costream/twitch"
	"github.com/viewer-gg/costream/src/costream/types"
)

// Store is the persistence surface one reconciliation cycle needs.
type Store interface {
	ActiveTournaments(ctx context.Context) ([]types.Tournament, error)
	ApprovedApplications(ctx context.Context, tournamentID string) ([]types.Application, error)
	LiveStream(ctx context.Context, applicationID, tournamentID string) (*types.LiveStream, error)
	SaveLiveStream(ctx context.Context, rec *types.LiveStream) error
	LiveStreamsForTournament(ctx context.Context, tournamentID string) ([]types.LiveStream, error)
	InsertSnapshot(ctx context.Context, snap *types.ViewershipSnapshot) error
}

// StreamChecker is the platform client surface; satisfied by *twitch.Client.
type StreamChecker interface {
	ExtractUsername(channelURL string) string
	StreamsByLogin(ctx context.Context, logins []string) ([]twitch.StreamInfo, error)
}

// Result summarizes one reconciliation cycle for schedulers and
// observability. Success=true with zero counts means there was nothing to
// do, which is distinct from a failed cycle.
type Result struct {
	Success bool   `json:"success"`
	Checked int    `json:"checked"`
	Live    int    `json:"live"`
	Errors  int    `json:"errors"`
	Message string `json:"message"`
}

// Service reconciles persisted live-stream records against fresh platform
// observations. Each invocation is a stateless single pass; transient
// failures are retried implicitly by the next scheduled cycle, never by an
// in-process retry loop.
type Service struct {
	store   Store
	checker StreamChecker
	rdb     *redis.Client // optional event publishing
}

func NewService(store Store, checker StreamChecker, rdb *redis.Client) *Service {
	return &Service{store: store, checker: checker, rdb: rdb}
}

// PollAllStreams checks every approved Twitch streamer of every active
// tournament and reconciles their live-stream records. One failing streamer
// or tournament never aborts its siblings; errors are tallied into the
// result instead.
func (s *Service) PollAllStreams(ctx context.Context) Result {
	log.Printf("[poller] starting poll cycle")
	start := time.Now()

	tournaments, err := s.store.ActiveTournaments(ctx)
	if err != nil {
		log.Printf("[poller] fatal: load tournaments: %v", err)
		return Result{Success: false, Message: fmt.Sprintf("load tournaments: %v", err)}
	}

	if len(tournaments) == 0 {
		log.Printf("[poller] no active tournaments")
		return Result{Success: true, Message: "no active tournaments"}
	}

	var checked, live, errorCount int

	for _, tournament := range tournaments {
		apps, err := s.store.ApprovedApplications(ctx, tournament.ID)
		if err != nil {
			log.Printf("[poller] load applications for %q: %v", tournament.Title, err)
			errorCount++
			continue
		}

		targets := s.filterTwitchStreamers(apps)
		if len(targets) == 0 {
			continue
		}

		logins := make([]string, 0, len(targets))
		for _, t := range targets {
			logins = append(logins, t.login)
		}

		streams, err := s.checker.StreamsByLogin(ctx, logins)
		if err != nil {
			if errors.Is(err, twitch.ErrNotConfigured) {
				// Deployment problem, not a transient one; fail the cycle.
				return Result{
					Success: false,
					Checked: checked,
					Live:    live,
					Errors:  errorCount + 1,
					Message: err.Error(),
				}
			}
			// Degraded cycle: everyone in this batch reads as offline and
			// the outage is tallied.
			errorCount++
		}

		byLogin := make(map[string]*twitch.StreamInfo, len(streams))
		for i := range streams {
			byLogin[strings.ToLower(streams[i].UserLogin)] = &streams[i]
		}

		for _, target := range targets {
			checked++

			info := byLogin[target.login]
			if info != nil {
				live++
			}

			if err := s.reconcileOne(ctx, target, info); err != nil {
				log.Printf("[poller] reconcile %s: %v", target.login, err)
				errorCount++
			}
		}
	}

	msg := fmt.Sprintf("polled %d streamers in %s: %d live, %d errors",
		checked, time.Since(start).Round(time.Millisecond), live, errorCount)
	log.Printf("[poller] %s", msg)

	result := Result{Success: true, Checked: checked, Live: live, Errors: errorCount, Message: msg}
	s.publishResult(ctx, result)
	return result
}

type pollTarget struct {
	applicationID string
	tournamentID  string
	login         string
}

// filterTwitchStreamers keeps approved applications whose streamer profile
// is a parseable Twitch channel. Everything else is an organizer-accepted
// streamer on another platform and is silently skipped.
func (s *Service) filterTwitchStreamers(apps []types.Application) []pollTarget {
	var targets []pollTarget
	for _, app := range apps {
		if !strings.EqualFold(app.Platform, "twitch") || app.ChannelURL == "" {
			continue
		}
		login := s.checker.ExtractUsername(app.ChannelURL)
		if login == "" {
			continue
		}
		targets = append(targets, pollTarget{
			applicationID: app.ID,
			tournamentID:  app.TournamentID,
			login:         login,
		})
	}
	return targets
}

func (s *Service) reconcileOne(ctx context.Context, target pollTarget, info *twitch.StreamInfo) error {
	rec, err := s.store.LiveStream(ctx, target.applicationID, target.tournamentID)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}

	updated := Reconcile(rec, target.applicationID, target.tournamentID, info, time.Now().UTC())
	if updated == nil {
		return nil
	}
	if err := s.store.SaveLiveStream(ctx, updated); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (s *Service) publishResult(ctx context.Context, result Result) {
	if s.rdb == nil {
		return
	}
	err := costreamdata.PublishPollSummary(ctx, s.rdb, map[string]interface{}{
		"checked": result.Checked,
		"live":    result.Live,
		"errors":  result.Errors,
		"message": result.Message,
		"time":    time.Now().Unix(),
	})
	if err != nil {
		log.Printf("[poller] publish poll summary: %v", err)
	}
}

// CollectViewershipSnapshot appends one immutable snapshot row per active
// tournament, summing current viewers across its live records. Runs on its
// own cadence and does not depend on a poll cycle's outcome.
func (s *Service) CollectViewershipSnapshot(ctx context.Context) error {
	tournaments, err := s.store.ActiveTournaments(ctx)
	if err != nil {
		return fmt.Errorf("load tournaments: %w", err)
	}

	now := time.Now().UTC()
	for _, tournament := range tournaments {
		recs, err := s.store.LiveStreamsForTournament(ctx, tournament.ID)
		if err != nil {
			log.Printf("[poller] snapshot: load live streams for %s: %v", tournament.ID, err)
			continue
		}
		if len(recs) == 0 {
			continue
		}

		var total int
		for _, rec := range recs {
			total += rec.CurrentViewers
		}

		snap := &types.ViewershipSnapshot{
			ID:            uuid.NewString(),
			TournamentID:  tournament.ID,
			ViewerCount:   total,
			StreamerCount: len(recs),
			Timestamp:     now,
		}
		if err := s.store.InsertSnapshot(ctx, snap); err != nil {
			log.Printf("[poller] snapshot: insert for %s: %v", tournament.ID, err)
			continue
		}
		log.Printf("[poller] snapshot: tournament %s, %d viewers across %d streamers",
			tournament.ID, total, len(recs))

		if s.rdb != nil {
			err := costreamdata.PublishSnapshot(ctx, s.rdb, map[string]interface{}{
				"tournament_id":  tournament.ID,
				"viewer_count":   total,
				"streamer_count": len(recs),
				"time":           now.Unix(),
			})
			if err != nil {
				log.Printf("[poller] publish snapshot: %v", err)
			}
		}
	}
	return nil
}
