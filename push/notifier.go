package push

import (
	"humanfinder/models"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification records a potential match between a missing and a found person
type Notification struct {
	ID        string        `json:"id"`
	Missing   models.Person `json:"missingPerson"`
	Found     models.Person `json:"foundPerson"`
	Score     float64       `json:"matchScore"`
	Timestamp time.Time     `json:"timestamp"`
	Read      bool          `json:"isRead"`
}

// Notifier keeps match notifications in memory for the lifetime of the process
type Notifier struct {
	mu    sync.Mutex
	items []Notification
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Create(missing, found models.Person, score float64) Notification {
	notification := Notification{
		ID:        "match-" + uuid.NewString(),
		Missing:   missing,
		Found:     found,
		Score:     score,
		Timestamp: time.Now().UTC(),
	}
	n.mu.Lock()
	n.items = append(n.items, notification)
	n.mu.Unlock()
	slog.Info("match notification created", "id", notification.ID, "missing", missing.ID, "found", found.ID, "score", score)
	return notification
}

// List returns a copy of all notifications, oldest first
func (n *Notifier) List() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	result := make([]Notification, len(n.items))
	copy(result, n.items)
	return result
}

// MarkRead returns false if there is no such notification
func (n *Notifier) MarkRead(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.items {
		if n.items[i].ID == id {
			n.items[i].Read = true
			return true
		}
	}
	return false
}

func (n *Notifier) Clear() {
	n.mu.Lock()
	n.items = nil
	n.mu.Unlock()
}

func (n *Notifier) Unread() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, item := range n.items {
		if !item.Read {
			count++
		}
	}
	return count
}
