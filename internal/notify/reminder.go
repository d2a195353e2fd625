package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/avellora/caresync/internal/appointments"
	"github.com/avellora/caresync/internal/models"
)

// Scheduler defaults.
const (
	DefaultLeadMinutes = 60
	DefaultCron        = "*/5 * * * *"
)

// Scheduler sends one reminder per confirmed appointment when it enters the
// lead window. Delivered reminders are recorded so restarts and repeated
// sweeps never notify twice for the same appointment.
type Scheduler struct {
	db        *gorm.DB
	notifiers []Notifier
	lead      time.Duration
	cron      string
}

// SchedulerOpts holds parameters for creating a Scheduler.
type SchedulerOpts struct {
	DB        *gorm.DB
	Notifiers []Notifier
	// LeadMinutes is how far ahead of the appointment the reminder fires.
	// Defaults to DefaultLeadMinutes.
	LeadMinutes int
	// Cron is the 5-field sweep cadence. Defaults to DefaultCron.
	Cron string
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts SchedulerOpts) (*Scheduler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("notify: scheduler: db is required")
	}
	if len(opts.Notifiers) == 0 {
		return nil, fmt.Errorf("notify: scheduler: at least one notifier is required")
	}
	lead := opts.LeadMinutes
	if lead <= 0 {
		lead = DefaultLeadMinutes
	}
	expr := opts.Cron
	if expr == "" {
		expr = DefaultCron
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return nil, fmt.Errorf("notify: scheduler: cron %q: %w", expr, err)
	}
	return &Scheduler{
		db:        opts.DB,
		notifiers: opts.Notifiers,
		lead:      time.Duration(lead) * time.Minute,
		cron:      expr,
	}, nil
}

// Sweep sends reminders for confirmed appointments starting within the lead
// window that have not been reminded yet. It returns the number of
// appointments reminded. Per-notifier delivery failures are logged and do
// not stop the sweep; an appointment is marked reminded once at least one
// notifier accepts it, so fully failed deliveries retry next sweep.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	now := time.Now()
	appts, err := appointments.WithinWindow(s.db, now, now.Add(s.lead))
	if err != nil {
		return 0, fmt.Errorf("notify: sweep: %w", err)
	}

	reminded := 0
	for _, appt := range appts {
		var logged models.ReminderLog
		err := s.db.First(&logged, "appointment_id = ?", appt.ID).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return reminded, fmt.Errorf("notify: reminder log for %s: %w", appt.ID, err)
		}

		ev := s.buildEvent(appt)
		delivered := false
		for _, n := range s.notifiers {
			if sendErr := n.Send(ctx, ev); sendErr != nil {
				log.Printf("notify: %s: appointment %s: %v", n.Name(), appt.ID, sendErr)
				continue
			}
			delivered = true
		}
		if !delivered {
			continue
		}

		entry := models.ReminderLog{AppointmentID: appt.ID, SentAt: time.Now()}
		if err := s.db.Create(&entry).Error; err != nil {
			return reminded, fmt.Errorf("notify: record reminder for %s: %w", appt.ID, err)
		}
		reminded++
	}
	return reminded, nil
}

// Run sweeps on the configured cron cadence until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(nextCronDuration(s.cron))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := s.Sweep(ctx); err != nil {
				log.Printf("notify: sweep: %v", err)
			}
			if d := nextCronDuration(s.cron); d > 0 {
				timer.Reset(d)
			} else {
				timer.Reset(time.Minute)
			}
		}
	}
}

func (s *Scheduler) buildEvent(appt models.Appointment) Event {
	patient := appt.PatientID
	var profile models.Profile
	if err := s.db.First(&profile, "user_id = ?", appt.PatientID).Error; err == nil {
		patient = profile.DisplayName
	}
	specialist := appt.SpecialistID
	var spec models.Specialist
	if err := s.db.First(&spec, "id = ?", appt.SpecialistID).Error; err == nil {
		specialist = spec.Name
	}

	starts := time.Until(appt.ScheduledAt).Round(time.Minute)
	ev := Event{
		Title:    "Appointment reminder",
		Body:     fmt.Sprintf("%s with %s starts in %s.", patient, specialist, starts),
		Severity: "info",
		Color:    SeverityColor("info"),
		Fields: []Field{
			{Name: "Patient", Value: patient, Short: true},
			{Name: "Specialist", Value: specialist, Short: true},
			{Name: "Time", Value: appt.ScheduledAt.Format("Mon Jan 2 15:04"), Short: true},
			{Name: "Duration", Value: fmt.Sprintf("%d min", appt.DurationMin), Short: true},
		},
	}
	if appt.Reason != "" {
		ev.Fields = append(ev.Fields, Field{Name: "Reason", Value: appt.Reason})
	}
	return ev
}
