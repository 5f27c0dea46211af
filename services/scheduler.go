// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartReconciliationScheduler runs the periodic consistency sweep over
// token balances. Divergence between a cached balance and its transaction
// log is reported, never repaired in place.
func (s *TokenService) StartReconciliationScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every 10 minutes: verify cached balances against transaction logs
	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			diverged, err := s.ReconcileBalances()
			if err != nil {
				log.Printf("[Reconciler] balance sweep failed: %v", err)
				return
			}
			if diverged > 0 {
				log.Printf("[Reconciler] ❌ %d token balance(s) diverged from transaction log", diverged)
			}
		}),
	)
}
