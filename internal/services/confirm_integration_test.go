package services

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"clinic-appointment-server/internal/clinictime"
	"clinic-appointment-server/internal/models"
	"clinic-appointment-server/internal/tokens"
)

// setupMySQL starts a disposable MySQL container and returns a migrated
// connection. Tests calling it are skipped when docker is unavailable or in
// short mode.
func setupMySQL(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping dockerized MySQL test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker is not available: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=secret",
			"MYSQL_DATABASE=clinic_test",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("could not purge mysql container: %v", err)
		}
	})

	dsn := fmt.Sprintf("root:secret@tcp(localhost:%s)/clinic_test?charset=utf8mb4&parseTime=True&loc=Local",
		resource.GetPort("3306/tcp"))

	var db *gorm.DB
	pool.MaxWait = 2 * time.Minute
	err = pool.Retry(func() error {
		var err error
		db, err = gorm.Open(gormmysql.Open(dsn), &gorm.Config{})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Appointment{}, &models.TokenScan{}))
	return db
}

func TestConcurrentConfirmationsAllocateDistinctSequences(t *testing.T) {
	db := setupMySQL(t)
	zone := clinictime.MustLoadZone("Asia/Kolkata")
	svc := NewAppointmentService(testQRConfig, zone, clinictime.SystemClock{}, zerolog.Nop())

	doctor := models.User{Email: "doctor@clinic.test", FirstName: "Asha", LastName: "Menon", Role: models.RoleDoctor}
	require.NoError(t, doctor.SetPassword("password123"))
	require.NoError(t, db.Create(&doctor).Error)

	patient := models.User{Email: "patient@clinic.test", FirstName: "Ravi", LastName: "Iyer", Role: models.RolePatient}
	require.NoError(t, patient.SetPassword("password123"))
	require.NoError(t, db.Create(&patient).Error)

	date := time.Now().In(zone.Location()).AddDate(0, 0, 1).Format(clinictime.DateLayout)
	newAppointment := func() uint {
		appt := models.Appointment{
			PatientID:       patient.ID,
			DoctorID:        doctor.ID,
			AppointmentDate: date,
			AppointmentTime: "09:30:00",
			Reason:          "checkup",
			Status:          models.StatusPending,
		}
		require.NoError(t, db.Create(&appt).Error)
		return appt.ID
	}

	// Seed the scope serially so the concurrent allocations below contend
	// on a real max row.
	var first *ConfirmationResult
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		r, err := svc.ConfirmAppointment(tx, newAppointment())
		first = r
		return err
	}))
	seeded, err := tokens.ParseDisplayToken(first.TokenNumber)
	require.NoError(t, err)
	require.Equal(t, 1, seeded.Sequence)

	const n = 8
	ids := make([]uint, n)
	for i := range ids {
		ids[i] = newAppointment()
	}

	tokenNumbers := make([]string, n)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			// InnoDB may pick a transaction as deadlock victim under this
			// contention; retrying the whole confirmation is what a caller
			// does, and a retried transaction must still get a fresh,
			// unique sequence.
			for attempt := 0; attempt < 5; attempt++ {
				var result *ConfirmationResult
				err := db.Transaction(func(tx *gorm.DB) error {
					r, err := svc.ConfirmAppointment(tx, id)
					if err != nil {
						return err
					}
					result = r
					return nil
				})
				if err == nil {
					tokenNumbers[i] = result.TokenNumber
					return
				}
			}
		}(i, ids[i])
	}
	wg.Wait()

	// N concurrent confirmations for one (doctor, date) must produce N
	// distinct tokens with consecutive sequences and no lost updates.
	seen := make(map[string]bool, n)
	sequences := make([]int, 0, n)
	for _, tokenNumber := range tokenNumbers {
		require.NotEmpty(t, tokenNumber, "a confirmation never succeeded")
		require.False(t, seen[tokenNumber], "duplicate token number %s", tokenNumber)
		seen[tokenNumber] = true

		parsed, err := tokens.ParseDisplayToken(tokenNumber)
		require.NoError(t, err)
		assert.Equal(t, doctor.ID, parsed.DoctorID)
		sequences = append(sequences, parsed.Sequence)
	}
	sort.Ints(sequences)
	for i, seq := range sequences {
		assert.Equal(t, i+2, seq, "sequences must be consecutive after the seeded token")
	}

	// Each confirmed row carries its own consistent token set.
	var confirmed int64
	require.NoError(t, db.Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_date = ? AND status = ?", doctor.ID, date, models.StatusConfirmed).
		Count(&confirmed).Error)
	assert.Equal(t, int64(n+1), confirmed)
}
