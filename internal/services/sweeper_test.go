package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-appointment-server/internal/clinictime"
	"clinic-appointment-server/internal/models"
)

func TestSweepExpiredTransitionsOnlyUnusedRows(t *testing.T) {
	db, mock := newMockDB(t)
	zone := clinictime.MustLoadZone("Asia/Kolkata")
	svc, _ := newTestService(clinictime.FixedClock{T: time.Date(2025, 3, 11, 0, 0, 0, 0, zone.Location())})

	// The predicate carries status, is_used and expiry together, so used
	// rows never qualify regardless of their expiry.
	mock.ExpectExec("UPDATE `appointments` SET").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), models.StatusConfirmed, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := svc.SweepExpired(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepExpiredNoQualifyingRows(t *testing.T) {
	db, mock := newMockDB(t)
	zone := clinictime.MustLoadZone("Asia/Kolkata")
	svc, _ := newTestService(clinictime.FixedClock{T: time.Date(2025, 3, 11, 0, 0, 0, 0, zone.Location())})

	mock.ExpectExec("UPDATE `appointments` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := svc.SweepExpired(db)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
