// services/scheduler.go
package services

import (
	"log"
	"time"

	"movetogether-backend/models"

	"github.com/go-co-op/gocron/v2"
)

// StartStatusScheduler flips competition statuses on their civil-date
// boundaries: upcoming → active once the start date arrives, active →
// completed once the end date has passed.
func (s *CompetitionService) StartStatusScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			today := time.Now().UTC().Format(CivilDateLayout)

			var started []models.Competition
			err := s.DB.Where("status = ? AND start_date <= ? AND end_date >= ?",
				models.CompetitionStatusUpcoming, today, today).
				Find(&started).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}
			for _, c := range started {
				c.Status = models.CompetitionStatusActive
				if err := s.DB.Save(&c).Error; err != nil {
					log.Printf("[Scheduler] Failed to activate competition %s: %v", c.ID, err)
				} else {
					log.Printf("✅ Competition started: %s", c.Name)
				}
			}

			var ended []models.Competition
			err = s.DB.Where("status IN ? AND end_date < ?",
				[]string{models.CompetitionStatusUpcoming, models.CompetitionStatusActive}, today).
				Find(&ended).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}
			for _, c := range ended {
				c.Status = models.CompetitionStatusCompleted
				if err := s.DB.Save(&c).Error; err != nil {
					log.Printf("[Scheduler] Failed to complete competition %s: %v", c.ID, err)
				} else {
					log.Printf("🏁 Competition completed: %s", c.Name)
				}
			}
		}),
	)
}
