package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"clinic-booking/internal/observability/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type NotificationKind string

const (
	NotificationConfirmation NotificationKind = "confirmation"
	NotificationCancellation NotificationKind = "cancellation"
	NotificationReschedule   NotificationKind = "reschedule"
)

// AppointmentNotification is the appointment context handed to the messaging collaborator.
type AppointmentNotification struct {
	Kind             NotificationKind `json:"kind"`
	AppointmentID    uuid.UUID        `json:"appointment_id"`
	ClinicID         uuid.UUID        `json:"clinic_id"`
	BookingReference string           `json:"booking_reference"`
	PatientName      string           `json:"patient_name"`
	PatientPhone     string           `json:"patient_phone"`
	PatientEmail     string           `json:"patient_email,omitempty"`
	DoctorName       string           `json:"doctor_name"`
	Date             string           `json:"date"`
	StartTime        string           `json:"start_time"`
	EndTime          string           `json:"end_time"`
	PreviousDate     string           `json:"previous_date,omitempty"`
	PreviousTime     string           `json:"previous_time,omitempty"`
	Reason           string           `json:"reason,omitempty"`
}

// Notifier delivers appointment messages to patients.
type Notifier interface {
	SendAppointmentConfirmation(ctx context.Context, msg AppointmentNotification) error
	SendAppointmentCancellation(ctx context.Context, msg AppointmentNotification) error
	SendAppointmentReschedule(ctx context.Context, msg AppointmentNotification) error
}

// NotificationDispatcher hands messages to a Notifier off the caller's path.
// Dispatch never blocks and never reports delivery errors to the caller.
type NotificationDispatcher interface {
	Dispatch(msg AppointmentNotification) bool
	Stop()
}

type notificationDispatcher struct {
	notifier    Notifier
	log         *logrus.Logger
	metrics     *metrics.BookingMetrics
	queue       chan AppointmentNotification
	sendTimeout time.Duration

	// Graceful shutdown
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

// NewNotificationDispatcher starts workers goroutines consuming a queue of bufferSize.
// Call Stop() during graceful shutdown.
func NewNotificationDispatcher(notifier Notifier, log *logrus.Logger, m *metrics.BookingMetrics, workers, bufferSize int, sendTimeout time.Duration) NotificationDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}

	d := &notificationDispatcher{
		notifier:    notifier,
		log:         log,
		metrics:     m,
		queue:       make(chan AppointmentNotification, bufferSize),
		sendTimeout: sendTimeout,
		stopChan:    make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

// Dispatch enqueues msg. It returns false when the message was dropped because
// the dispatcher is stopped or its queue is full.
func (d *notificationDispatcher) Dispatch(msg AppointmentNotification) bool {
	if d.stopped.Load() {
		d.log.Warnf("Notification dispatcher stopped, dropping %s for appointment %s", msg.Kind, msg.AppointmentID)
		d.metrics.ObserveNotification(string(msg.Kind), "dropped")
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.log.Warnf("Notification queue full, dropping %s for appointment %s", msg.Kind, msg.AppointmentID)
		d.metrics.ObserveNotification(string(msg.Kind), "dropped")
		return false
	}
}

// Stop drains queued messages and waits for the workers.
// Safe to call multiple times.
func (d *notificationDispatcher) Stop() {
	if d.stopped.CompareAndSwap(false, true) {
		close(d.stopChan)
		d.wg.Wait()
		d.log.Info("NotificationDispatcher stopped")
	}
}

func (d *notificationDispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.queue:
			d.deliver(msg)
		case <-d.stopChan:
			for {
				select {
				case msg := <-d.queue:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *notificationDispatcher) deliver(msg AppointmentNotification) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorf("Notifier panicked sending %s for appointment %s: %v", msg.Kind, msg.AppointmentID, r)
			d.metrics.ObserveNotification(string(msg.Kind), "failed")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	var err error
	switch msg.Kind {
	case NotificationConfirmation:
		err = d.notifier.SendAppointmentConfirmation(ctx, msg)
	case NotificationCancellation:
		err = d.notifier.SendAppointmentCancellation(ctx, msg)
	case NotificationReschedule:
		err = d.notifier.SendAppointmentReschedule(ctx, msg)
	default:
		err = fmt.Errorf("unknown notification kind %q", msg.Kind)
	}

	if err != nil {
		d.log.Warnf("Failed to send %s notification for appointment %s: %+v", msg.Kind, msg.AppointmentID, err)
		d.metrics.ObserveNotification(string(msg.Kind), "failed")
		return
	}

	d.metrics.ObserveNotification(string(msg.Kind), "sent")
}

// RedisQueueNotifier pushes JSON envelopes onto a Redis list read by the messaging service.
type RedisQueueNotifier struct {
	redisClient *redis.Client
	queueKey    string
}

func NewRedisQueueNotifier(redisClient *redis.Client, queueKey string) *RedisQueueNotifier {
	return &RedisQueueNotifier{
		redisClient: redisClient,
		queueKey:    queueKey,
	}
}

func (n *RedisQueueNotifier) SendAppointmentConfirmation(ctx context.Context, msg AppointmentNotification) error {
	return n.push(ctx, NotificationConfirmation, msg)
}

func (n *RedisQueueNotifier) SendAppointmentCancellation(ctx context.Context, msg AppointmentNotification) error {
	return n.push(ctx, NotificationCancellation, msg)
}

func (n *RedisQueueNotifier) SendAppointmentReschedule(ctx context.Context, msg AppointmentNotification) error {
	return n.push(ctx, NotificationReschedule, msg)
}

func (n *RedisQueueNotifier) push(ctx context.Context, kind NotificationKind, msg AppointmentNotification) error {
	msg.Kind = kind
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", kind, err)
	}
	if err := n.redisClient.RPush(ctx, n.queueKey, payload).Err(); err != nil {
		return fmt.Errorf("push %s notification: %w", kind, err)
	}
	return nil
}

// LogNotifier writes notifications to the application log. Used when no
// messaging backend is configured.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendAppointmentConfirmation(_ context.Context, msg AppointmentNotification) error {
	n.entry(msg).Info("appointment confirmed")
	return nil
}

func (n *LogNotifier) SendAppointmentCancellation(_ context.Context, msg AppointmentNotification) error {
	n.entry(msg).Info("appointment cancelled")
	return nil
}

func (n *LogNotifier) SendAppointmentReschedule(_ context.Context, msg AppointmentNotification) error {
	n.entry(msg).Info("appointment rescheduled")
	return nil
}

func (n *LogNotifier) entry(msg AppointmentNotification) *logrus.Entry {
	return n.log.WithFields(logrus.Fields{
		"appointment_id":    msg.AppointmentID,
		"booking_reference": msg.BookingReference,
		"date":              msg.Date,
		"start_time":        msg.StartTime,
	})
}
