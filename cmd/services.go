package cmd

import (
	"fmt"
	"humanfinder/config"
	"humanfinder/db"
	"humanfinder/faces"
	"humanfinder/images"
	"humanfinder/matching"
	"humanfinder/models"
	"humanfinder/push"
	"humanfinder/storage"
)

// services are shared by the server and the one-shot commands
type services struct {
	persons  *models.PersonRepository
	storage  storage.StorageAPI
	images   *images.Loader
	models   *faces.ModelLoader
	notifier *push.Notifier
	hub      *push.Hub
	matcher  *matching.Matcher
}

func newServices() (*services, error) {
	conn, err := db.Open(config.MYSQL_DSN, config.SQLITE_FILE)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	persons := models.NewPersonRepository(conn)
	if err = persons.Migrate(); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	store, err := storage.New(storage.BucketFromConfig())
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	s := &services{
		persons:  persons,
		storage:  store,
		images:   images.NewLoader(store),
		models:   faces.NewModelLoader(),
		notifier: push.NewNotifier(),
		hub:      push.NewHub(),
	}
	trigger := push.NewTrigger(s.notifier, s.hub, push.NewSender())
	s.matcher = matching.NewMatcher(persons, s.images, s.models, trigger)
	return s, nil
}
