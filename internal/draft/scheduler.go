package draft

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"campus_notify/internal/activity"
	"campus_notify/internal/clock"
	"campus_notify/internal/lifecycle"
	"campus_notify/internal/model"
)

// Reminder thresholds.
const (
	ReminderAfter    = 24 * time.Hour
	ReminderCooldown = 12 * time.Hour
	ReminderTTL      = 8 * time.Second
)

// Channel is the part of the delivery channel the scheduler needs.
type Channel interface {
	Show(msg model.Message)
	DismissKey(key string) bool
	Active() (model.Message, bool)
}

// Scheduler decides when to re-surface a "finish your draft" nudge.
// Apply, Stop, Dismiss and Resume must run on the dispatcher goroutine.
type Scheduler struct {
	repo  *Repo
	ch    Channel
	focus activity.Focus
	clock clock.Clock
	log   *slog.Logger
	uid   string

	enabled  bool
	checking atomic.Bool
}

// NewScheduler creates the reminder producer for uid.
func NewScheduler(repo *Repo, ch Channel, focus activity.Focus, c clock.Clock, log *slog.Logger, uid string) *Scheduler {
	return &Scheduler{repo: repo, ch: ch, focus: focus, clock: c, log: log, uid: uid}
}

// Apply implements activity.Producer. Becoming enabled counts as mounting and runs a check.
func (s *Scheduler) Apply(st model.PreferenceState) {
	on := st.Enabled(model.CategoryReminders)
	switch {
	case on && !s.enabled:
		s.enabled = true
		s.CheckNow(context.Background())
	case !on && s.enabled:
		s.Stop()
	}
}

// Stop implements activity.Producer.
func (s *Scheduler) Stop() {
	s.enabled = false
	s.hide()
}

// HandleLifecycle runs a check whenever the app comes to the foreground.
func (s *Scheduler) HandleLifecycle(st lifecycle.State) {
	if st == lifecycle.Foreground {
		s.CheckNow(context.Background())
	}
}

// CheckNow reads the draft and shows the reminder when it is due. It reports whether
// a reminder was shown. Overlapping calls return immediately.
func (s *Scheduler) CheckNow(ctx context.Context) bool {
	if !s.checking.CompareAndSwap(false, true) {
		return false
	}
	defer s.checking.Store(false)

	if !s.enabled {
		return false
	}
	if s.focus != nil && s.focus.Screen().Name == model.ScreenCompose {
		s.log.Debug("draft reminder skipped while composing", "user_id", s.uid)
		return false
	}

	d, err := s.repo.Load(ctx, s.uid)
	if err != nil {
		s.log.Error("load draft", "user_id", s.uid, "error", err)
		return false
	}
	if d == nil {
		s.hide()
		return false
	}

	now := s.clock.Now()
	if !Due(*d, now) {
		return false
	}

	title := d.Title
	if title == "" {
		title = "your listing"
	} else {
		title = "\"" + title + "\""
	}
	s.ch.Show(model.Message{
		Key:   s.key(),
		Title: "Finish your listing",
		Body:  "Your draft " + title + " is waiting to be posted.",
		TTL:   ReminderTTL,
	})
	if err := s.repo.MarkReminded(ctx, s.uid, now); err != nil {
		s.log.Error("stamp draft reminder", "user_id", s.uid, "error", err)
	}
	return true
}

// Due reports whether a reminder for d may be shown at now.
func Due(d model.DraftRecord, now time.Time) bool {
	if d.SavedAt.IsZero() || now.Sub(d.SavedAt) < ReminderAfter {
		return false
	}
	if d.LastReminderAt != nil && now.Sub(*d.LastReminderAt) < ReminderCooldown {
		return false
	}
	return true
}

// Dismiss hides the reminder and stamps LastReminderAt so it does not come right back.
// It does nothing and returns false when the reminder is not showing.
func (s *Scheduler) Dismiss(ctx context.Context) bool {
	if !s.Visible() {
		return false
	}
	s.hide()
	if err := s.repo.MarkReminded(ctx, s.uid, s.clock.Now()); err != nil {
		s.log.Error("stamp draft reminder", "user_id", s.uid, "error", err)
	}
	return true
}

// Resume hides the reminder; the stored draft is untouched.
func (s *Scheduler) Resume() {
	s.hide()
}

// Visible reports whether the reminder is the active message.
func (s *Scheduler) Visible() bool {
	msg, ok := s.ch.Active()
	return ok && msg.Key == s.key()
}

func (s *Scheduler) hide() {
	s.ch.DismissKey(s.key())
}

func (s *Scheduler) key() string {
	return activity.MessageKey("draft", s.uid)
}
