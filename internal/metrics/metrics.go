// Package metrics exposes Prometheus counters for the confirmation and
// verification subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConfirmationsTotal counts appointment confirmation attempts by result.
	ConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_appointment_confirmations_total",
		Help: "Appointment confirmation attempts partitioned by result.",
	}, []string{"result"})

	// VerificationsTotal counts QR verification attempts by outcome code.
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_qr_verifications_total",
		Help: "QR token verification attempts partitioned by outcome.",
	}, []string{"outcome"})

	// SweeperTransitionsTotal counts appointments expired by the sweeper.
	SweeperTransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinic_sweeper_expired_appointments_total",
		Help: "Confirmed-but-unused appointments transitioned to completed by the expiry sweeper.",
	})
)
