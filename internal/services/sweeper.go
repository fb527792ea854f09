package services

import (
	"fmt"

	"gorm.io/gorm"

	"clinic-appointment-server/internal/metrics"
	"clinic-appointment-server/internal/models"
)

// SweepExpired transitions confirmed, unused appointments whose expiry has
// passed (in the clinic timezone) to completed. It is a convergent cleanup:
// running it twice, concurrently, or not at all for a day loses nothing,
// because a single UPDATE with the full predicate only ever touches rows that
// still qualify.
func (s *AppointmentService) SweepExpired(db *gorm.DB) (int64, error) {
	now := s.zone.Now(s.clock)

	res := db.Model(&models.Appointment{}).
		Where("status = ? AND is_used = ? AND expires_at IS NOT NULL AND expires_at < ?",
			models.StatusConfirmed, false, now).
		Update("status", models.StatusCompleted)
	if res.Error != nil {
		return 0, fmt.Errorf("expiry sweep failed: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		s.logger.Info().Int64("expired", res.RowsAffected).Msg("expiry sweep completed")
		metrics.SweeperTransitionsTotal.Add(float64(res.RowsAffected))
	}
	return res.RowsAffected, nil
}
