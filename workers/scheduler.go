package workers

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"verifast/services"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler owns the periodic background jobs: acquisition runs, fingerprint
// retention cleanup and the interaction-reward settlement sweep.
type Scheduler struct {
	Orchestrator *Orchestrator
	Social       *services.SocialInteractionManager

	sched gocron.Scheduler
}

func NewScheduler(orchestrator *Orchestrator, social *services.SocialInteractionManager) *Scheduler {
	return &Scheduler{Orchestrator: orchestrator, Social: social}
}

// Start registers and starts all jobs. Call Stop on shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.sched = sched

	interval := envMinutes("ACQUISITION_INTERVAL_MINUTES", 60)
	languages := envLanguages()
	maxArticles := envInt("ACQUISITION_MAX_ARTICLES", defaultMaxArticles)

	// Periodic acquisition run
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := s.Orchestrator.Run(ctx, "scheduler", languages, maxArticles); err != nil {
				log.Printf("[Scheduler] acquisition run failed: %v", err)
			}
		}),
	)
	if err != nil {
		return err
	}

	// Daily: drop fingerprints past retention that no longer back an article
	_, err = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			removed, err := s.Orchestrator.Dedup.CleanupFingerprints(30 * 24 * time.Hour)
			if err != nil {
				log.Printf("[Scheduler] fingerprint cleanup failed: %v", err)
				return
			}
			if removed > 0 {
				log.Printf("🧹 fingerprint cleanup removed %d rows", removed)
			}
		}),
	)
	if err != nil {
		return err
	}

	// Every minute: settle interaction rewards whose second transaction
	// did not land
	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			settled, err := s.Social.SettlePendingRewards(ctx)
			if err != nil {
				log.Printf("[Scheduler] reward settlement sweep failed: %v", err)
				return
			}
			if settled > 0 {
				log.Printf("✅ settled %d deferred interaction rewards", settled)
			}
		}),
	)
	if err != nil {
		return err
	}

	sched.Start()
	log.Printf("Scheduler started (acquisition every %s, languages=%v)", interval, languages)
	return nil
}

func (s *Scheduler) Stop() {
	if s.sched != nil {
		_ = s.sched.Shutdown()
	}
}

func envMinutes(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Minute
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envLanguages() []string {
	raw := os.Getenv("ACQUISITION_LANGUAGES")
	if raw == "" {
		return []string{"en", "es"}
	}
	var langs []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			langs = append(langs, p)
		}
	}
	return langs
}
