// Package scheduler runs the daily expiry sweep. It is started once from
// main and holds no state beyond the cron handle it returns.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"clinic-appointment-server/internal/clinictime"
	"clinic-appointment-server/internal/services"
)

// Daily at local midnight in the clinic timezone.
const sweepSchedule = "0 0 * * *"

// Start registers the expiry sweep at local midnight and starts the cron
// runner. Sweep failures are logged and swallowed; the next scheduled run
// retries naturally.
func Start(db *gorm.DB, svc *services.AppointmentService, zone clinictime.Zone, logger zerolog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(zone.Location()))

	_, err := c.AddFunc(sweepSchedule, func() {
		if _, err := svc.SweepExpired(db); err != nil {
			logger.Error().Err(err).Msg("scheduled expiry sweep failed")
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	logger.Info().Str("schedule", sweepSchedule).Str("timezone", zone.Location().String()).Msg("expiry sweeper scheduled")
	return c, nil
}
