package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-appointment-server/internal/clinictime"
	"clinic-appointment-server/internal/models"
	"clinic-appointment-server/internal/tokens"
)

func TestUnwrapPresentedToken(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"bare token", "abc.def.ghi", "abc.def.ghi"},
		{"wrapped in url", "https://clinic.example.com/verify?token=abc.def.ghi", "abc.def.ghi"},
		{"url without token param", "https://clinic.example.com/verify", "https://clinic.example.com/verify"},
		{"token param among others", "https://clinic.example.com/verify?lang=en&token=abc", "abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UnwrapPresentedToken(tc.input))
		})
	}
}

func TestEvaluateScan(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Minute)

	cases := []struct {
		name string
		appt models.Appointment
		want string
	}{
		{
			"live confirmed token is valid",
			models.Appointment{Status: models.StatusConfirmed, ExpiresAt: &future},
			models.ScanOutcomeValid,
		},
		{
			"pending appointment is invalid state",
			models.Appointment{Status: models.StatusPending, ExpiresAt: &future},
			models.ScanOutcomeInvalid,
		},
		{
			"cancelled appointment is invalid state",
			models.Appointment{Status: models.StatusCancelled, ExpiresAt: &future},
			models.ScanOutcomeInvalid,
		},
		{
			"used token reported as used even when also expired",
			models.Appointment{Status: models.StatusConfirmed, IsUsed: true, ExpiresAt: &past},
			models.ScanOutcomeUsed,
		},
		{
			"expired unused token is expired",
			models.Appointment{Status: models.StatusConfirmed, ExpiresAt: &past},
			models.ScanOutcomeExpired,
		},
		{
			"missing expiry on confirmed row is expired",
			models.Appointment{Status: models.StatusConfirmed},
			models.ScanOutcomeExpired,
		},
		{
			"expiry boundary is inclusive",
			models.Appointment{Status: models.StatusConfirmed, ExpiresAt: &now},
			models.ScanOutcomeValid,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, evaluateScan(&tc.appt, now))
		})
	}
}

func issueTestToken(t *testing.T, zone clinictime.Zone, clock clinictime.Clock) string {
	t.Helper()
	appt := &models.Appointment{
		PatientID:       12,
		DoctorID:        7,
		AppointmentDate: "2025-03-10",
		AppointmentTime: "09:30:00",
	}
	appt.ID = 99
	issued, err := tokens.IssueQRToken(appt, testQRConfig, zone, clock)
	require.NoError(t, err)
	return issued.Signed
}

func TestVerifyQRTokenMalformed(t *testing.T) {
	db, _ := newMockDB(t)
	zone := clinictime.MustLoadZone("Asia/Kolkata")
	svc, _ := newTestService(clinictime.FixedClock{T: time.Date(2025, 3, 9, 10, 0, 0, 0, zone.Location())})

	_, err := svc.VerifyQRToken(db, "not-a-jwt")
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeInvalidTokenFormat, verr.Code)
}

func TestVerifyQRTokenExpiredClaimAuditedAndRejected(t *testing.T) {
	db, mock := newMockDB(t)
	zone := clinictime.MustLoadZone("Asia/Kolkata")
	// Token issued far in the past: the exp claim has passed even though
	// the stored expires_at below has not. The claim alone must reject the
	// scan, and the attempt still lands in the audit trail.
	issueClock := clinictime.FixedClock{T: time.Date(2020, 1, 1, 10, 0, 0, 0, zone.Location())}
	signed := issueTestToken(t, zone, issueClock)

	nowClock := clinictime.FixedClock{T: time.Date(2025, 3, 9, 10, 0, 0, 0, zone.Location())}
	svc, _ := newTestService(nowClock)

	now := time.Now()
	storedExpiry := nowClock.T.Add(time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `appointments` .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(appointmentColumns()).
			AddRow(99, now, now, 12, 7, "2025-03-10", "09:30:00", "checkup", "", "confirmed",
				"TKN-007-20250310-0001", signed, storedExpiry, false))
	// The audit row commits even though the scan is rejected; is_used is
	// never touched.
	mock.ExpectExec("INSERT INTO `token_scans`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := svc.VerifyQRToken(db, signed)
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeExpired, verr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyQRTokenSuccessMarksUsed(t *testing.T) {
	db, mock := newMockDB(t)
	zone := clinictime.MustLoadZone("Asia/Kolkata")
	clock := clinictime.FixedClock{T: time.Date(2025, 3, 9, 10, 0, 0, 0, zone.Location())}
	svc, _ := newTestService(clock)
	signed := issueTestToken(t, zone, clock)

	now := time.Now()
	expiresAt := clock.T.Add(25 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `appointments` .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(appointmentColumns()).
			AddRow(99, now, now, 12, 7, "2025-03-10", "09:30:00", "checkup", "", "confirmed",
				"TKN-007-20250310-0001", signed, expiresAt, false))
	mock.ExpectExec("INSERT INTO `token_scans`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `appointments` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	appointmentID, err := svc.VerifyQRToken(db, signed)
	require.NoError(t, err)
	assert.Equal(t, uint(99), appointmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyQRTokenAlreadyUsedStillAudited(t *testing.T) {
	db, mock := newMockDB(t)
	zone := clinictime.MustLoadZone("Asia/Kolkata")
	clock := clinictime.FixedClock{T: time.Date(2025, 3, 9, 10, 0, 0, 0, zone.Location())}
	svc, _ := newTestService(clock)
	signed := issueTestToken(t, zone, clock)

	now := time.Now()
	expiresAt := clock.T.Add(25 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `appointments` .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(appointmentColumns()).
			AddRow(99, now, now, 12, 7, "2025-03-10", "09:30:00", "checkup", "", "confirmed",
				"TKN-007-20250310-0001", signed, expiresAt, true))
	// The audit row is written and committed even though the scan is
	// rejected; no is_used update follows.
	mock.ExpectExec("INSERT INTO `token_scans`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := svc.VerifyQRToken(db, signed)
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeAlreadyUsed, verr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyQRTokenIdentityMismatch(t *testing.T) {
	db, mock := newMockDB(t)
	zone := clinictime.MustLoadZone("Asia/Kolkata")
	clock := clinictime.FixedClock{T: time.Date(2025, 3, 9, 10, 0, 0, 0, zone.Location())}
	svc, _ := newTestService(clock)
	signed := issueTestToken(t, zone, clock)

	now := time.Now()
	expiresAt := clock.T.Add(25 * time.Hour)
	mock.ExpectBegin()
	// Row 99 exists but belongs to a different doctor/patient pair.
	mock.ExpectQuery("SELECT \\* FROM `appointments` .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(appointmentColumns()).
			AddRow(99, now, now, 55, 66, "2025-03-10", "09:30:00", "checkup", "", "confirmed",
				"TKN-066-20250310-0001", "another-token", expiresAt, false))
	mock.ExpectCommit()

	_, err := svc.VerifyQRToken(db, signed)
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeInvalidTokenFormat, verr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
