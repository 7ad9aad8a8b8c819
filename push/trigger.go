package push

import (
	"context"
	"humanfinder/models"
	"log/slog"
	"time"
)

const pushTimeout = 10 * time.Second

// AlertSink receives the alerts of a matching run
type AlertSink interface {
	Broadcast(alert Alert)
}

// Trigger turns a finished ranking into alerts and a match notification
type Trigger struct {
	Notifier *Notifier
	Hub      *Hub
	Sender   *Sender
	Sinks    []AlertSink
}

func NewTrigger(notifier *Notifier, hub *Hub, sender *Sender) *Trigger {
	return &Trigger{
		Notifier: notifier,
		Hub:      hub,
		Sender:   sender,
	}
}

func (t *Trigger) broadcast(alert Alert) {
	if t.Hub != nil {
		t.Hub.Broadcast(alert)
	}
	for _, sink := range t.Sinks {
		sink.Broadcast(alert)
	}
}

// Fire is called once per completed ranking. The top result, if any, is
// recorded as a notification between the missing and the found person.
func (t *Trigger) Fire(ctx context.Context, subject models.Person, ranked []models.Person) Alert {
	if len(ranked) == 0 {
		alert := NoMatchAlert(&subject)
		t.broadcast(alert)
		return alert
	}
	top := ranked[0]
	score := 0.0
	if top.MatchScore != nil {
		score = *top.MatchScore
	}
	missing, found := subject, top
	if subject.Status == models.StatusFound {
		missing, found = top, subject
	}
	notification := t.Notifier.Create(missing, found, score)
	if t.Hub != nil {
		t.Hub.BroadcastNotification(notification)
	}
	alert := MatchAlert(&missing, &found, score)
	t.broadcast(alert)
	t.notifyReporters(ctx, &missing, &found, alert)
	t.broadcast(SentAlert(&missing, &found))
	return alert
}

// notifyReporters sends a push message to the devices registered with both
// reports. ContactInfo is free text shown to people and is never used here.
func (t *Trigger) notifyReporters(ctx context.Context, missing, found *models.Person, alert Alert) {
	if !t.Sender.Enabled() {
		return
	}
	tokens := []string{}
	for _, p := range []*models.Person{missing, found} {
		if p.PushToken != "" {
			tokens = append(tokens, p.PushToken)
		}
	}
	message := Message{
		Type:       MessageTypeMatch,
		UserTokens: tokens,
		Title:      alert.Title,
		Body:       alert.Description,
		Data: map[string]string{
			"missing": missing.ID,
			"found":   found.ID,
		},
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if err := t.Sender.Send(ctx, &message); err != nil {
			slog.Warn("notifying reporters", "missing", missing.ID, "found", found.ID, "error", err)
		}
	}()
}
