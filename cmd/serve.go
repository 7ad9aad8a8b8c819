package cmd

import (
	"context"
	"humanfinder/config"
	"humanfinder/faces"
	"humanfinder/handlers"
	"humanfinder/locations"
	"log/slog"
	"strings"

	"github.com/gin-gonic/autotls"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the HumanFinder HTTP server. Face models are loaded in the
background, requests that need them get 503 until they are ready.
With TLS_DOMAINS set, certificates are obtained through Let's Encrypt.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("bind", "", "Address to listen on (overrides BIND_ADDRESS)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if bind, _ := cmd.Flags().GetString("bind"); bind != "" {
		config.BIND_ADDRESS = bind
	}
	s, err := newServices()
	if err != nil {
		return err
	}
	defer s.models.Close()

	// Warm up, the first request would otherwise wait for the models
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.MODEL_LOAD_TIMEOUT)
		defer cancel()
		if err := s.models.EnsureReady(ctx); err != nil {
			slog.Warn("face models not loaded on startup", "error", err)
		}
	}()

	h := &handlers.Handlers{
		Persons:   s.persons,
		Storage:   s.storage,
		Images:    s.images,
		Models:    s.models,
		Inspector: faces.NewInspector(s.models),
		Matcher:   s.matcher,
		Notifier:  s.notifier,
		Hub:       s.hub,
		Geocoder:  locations.NewGeocoder(),
	}
	router := h.NewRouter()
	if config.TLS_DOMAINS != "" {
		slog.Info("starting TLS server", "domains", config.TLS_DOMAINS)
		return autotls.Run(router, strings.Split(config.TLS_DOMAINS, ",")...)
	}
	slog.Info("starting server", "address", config.BIND_ADDRESS)
	return router.Run(config.BIND_ADDRESS)
}
