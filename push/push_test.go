package push

import (
	"context"
	"encoding/json"
	"humanfinder/models"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	alerts []Alert
}

func (s *recordingSink) Broadcast(alert Alert) {
	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	s.mu.Unlock()
}

func scored(p models.Person, score float64) models.Person {
	return p.WithScore(score)
}

var (
	alexMissing = models.Person{ID: "6", Name: "Alex Johnson", Status: models.StatusMissing, ContactInfo: "chicago.pd@example.com", PushToken: "device-token-6"}
	alexFound   = models.Person{ID: "7", Name: "Alex Johnson", Status: models.StatusFound, ContactInfo: "denver.pd@example.com"}
	unknownMale = models.Person{ID: "4", Name: "Unknown Male", Status: models.StatusFound}
)

func TestAlerts(t *testing.T) {
	a := MatchAlert(&alexMissing, &unknownMale, 0.954)
	assert.Equal(t, "Potential Match Found!", a.Title)
	assert.Equal(t, "Alex Johnson (Missing) may match with Unknown Male (Found) - 95% similarity", a.Description)
	assert.Equal(t, VariantDefault, a.Variant)

	n := NoMatchAlert(&models.Person{Name: "Jane Smith"})
	assert.Equal(t, "No Matches Found", n.Title)
	assert.Equal(t, "No potential matches found for Jane Smith.", n.Description)
	assert.Equal(t, VariantDestructive, n.Variant)
}

func TestNotifier(t *testing.T) {
	n := NewNotifier()
	first := n.Create(alexMissing, alexFound, 0.95)
	second := n.Create(alexMissing, unknownMale, 0.6)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, strings.HasPrefix(first.ID, "match-"))

	list := n.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, 2, n.Unread())

	// List returns a copy
	list[0].Read = true
	assert.False(t, n.List()[0].Read)

	assert.True(t, n.MarkRead(second.ID))
	assert.False(t, n.MarkRead("unknown"))
	assert.True(t, n.List()[1].Read)
	assert.Equal(t, 1, n.Unread())

	n.Clear()
	assert.Empty(t, n.List())
}

func TestTrigger_Match(t *testing.T) {
	received := make(chan Message, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send", r.URL.Path)
		m := Message{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		received <- m
	}))
	defer srv.Close()

	sink := &recordingSink{}
	trigger := NewTrigger(NewNotifier(), nil, &Sender{Server: srv.URL, Client: srv.Client()})
	trigger.Sinks = []AlertSink{sink}

	// Subject is the found person, so the notification is reoriented
	alert := trigger.Fire(context.Background(), alexFound, []models.Person{scored(alexMissing, 0.95), scored(unknownMale, 0.7)})
	assert.Equal(t, "Alex Johnson (Missing) may match with Alex Johnson (Found) - 95% similarity", alert.Description)

	list := trigger.Notifier.List()
	require.Len(t, list, 1)
	assert.Equal(t, "6", list[0].Missing.ID)
	assert.Equal(t, "7", list[0].Found.ID)
	assert.InDelta(t, 0.95, list[0].Score, 1e-9)

	require.Len(t, sink.alerts, 2)
	assert.Equal(t, "Potential Match Found!", sink.alerts[0].Title)
	assert.Equal(t, "Notifications Sent", sink.alerts[1].Title)

	select {
	case m := <-received:
		assert.Equal(t, MessageTypeMatch, m.Type)
		// Only registered devices, contact details are not push tokens
		assert.Equal(t, []string{"device-token-6"}, m.UserTokens)
		assert.Equal(t, "6", m.Data["missing"])
	case <-time.After(2 * time.Second):
		t.Fatal("push message not sent")
	}
}

func TestTrigger_NoMatch(t *testing.T) {
	sink := &recordingSink{}
	trigger := NewTrigger(NewNotifier(), nil, nil)
	trigger.Sinks = []AlertSink{sink}

	alert := trigger.Fire(context.Background(), alexMissing, nil)
	assert.Equal(t, "No Matches Found", alert.Title)
	assert.Empty(t, trigger.Notifier.List())
	assert.Equal(t, []Alert{alert}, sink.alerts)
}

func TestHub(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(data))

	hub.Broadcast(NoMatchAlert(&alexMissing))
	msg := WSMessage{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, WSMessageTypeAlert, msg.Type)
	require.NotNil(t, msg.Alert)
	assert.Equal(t, "No Matches Found", msg.Alert.Title)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_StalledClient(t *testing.T) {
	hub := NewHub()
	hub.WriteWait = 250 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	stalled, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer stalled.Close()
	active, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer active.Close()
	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 5*time.Millisecond)

	received := atomic.Int64{}
	go func() {
		for {
			if _, _, err := active.ReadMessage(); err != nil {
				return
			}
			received.Add(1)
		}
	}()

	// Nobody reads from the stalled connection, socket buffers fill up after a few messages
	big := Alert{Title: "big", Description: strings.Repeat("x", 512*1024)}
	sent := int64(0)
	for i := 0; i < 400 && hub.Count() == 2; i++ {
		start := time.Now()
		hub.Broadcast(big)
		sent++
		require.Less(t, time.Since(start), 2*time.Second, "a stalled client must not block the broadcast")
	}
	assert.Equal(t, 1, hub.Count())
	require.Eventually(t, func() bool { return received.Load() == sent }, 5*time.Second, 10*time.Millisecond)

	hub.Broadcast(NoMatchAlert(&alexMissing))
	require.Eventually(t, func() bool { return received.Load() == sent+1 }, time.Second, 5*time.Millisecond)
}

func TestSender_Disabled(t *testing.T) {
	s := &Sender{}
	assert.False(t, s.Enabled())
	assert.NoError(t, s.Send(context.Background(), &Message{UserTokens: []string{"x"}}))
	var nilSender *Sender
	assert.False(t, nilSender.Enabled())
}
