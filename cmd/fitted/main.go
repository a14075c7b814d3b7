package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fittedhq/fitted-go/internal/api"
	"github.com/fittedhq/fitted-go/internal/config"
	"github.com/fittedhq/fitted-go/internal/log"
	"github.com/fittedhq/fitted-go/internal/notify"
	"github.com/fittedhq/fitted-go/internal/refresh"
	"github.com/fittedhq/fitted-go/internal/session"
	"github.com/fittedhq/fitted-go/internal/storage"
	"github.com/fittedhq/fitted-go/internal/transport"
	"github.com/fittedhq/fitted-go/internal/wardrobe"
)

var BuildVersion = "dev"

// app is the process root: it owns the one session store and the one
// refresh coordinator, and hands them to whichever command runs.
type app struct {
	cfg      config.Config
	store    *session.Store
	wardrobe *wardrobe.Client
}

// newApp wires config -> storage -> transport -> refresh -> pipeline ->
// session store. Everything is instance state, no package globals, so the
// same wiring works in tests with independent instances.
func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	fileStore, err := storage.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	t, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}

	coordinator := refresh.NewCoordinator(t, cfg.Endpoints.Refresh, time.Duration(cfg.RefreshTimeout))

	notifier := notify.NewAuthFailureNotifier()
	notifier.Subscribe(func() {
		fmt.Fprintln(os.Stderr, "Your session has expired. Run 'fitted login' to sign in again.")
	})

	client := api.NewClient(t, coordinator, notifier)

	store := session.New(client, fileStore, notifier, cfg.Endpoints,
		session.WithCredentialClearer(t.ClearCredentials))

	return &app{
		cfg:      cfg,
		store:    store,
		wardrobe: wardrobe.NewClient(client),
	}, nil
}

func buildTransport(cfg config.Config) (*transport.Transport, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}

	jar, err := transport.NewFileJar(filepath.Join(cfg.StateDir, "cookies.json"), base)
	if err != nil {
		return nil, err
	}

	return transport.New(cfg.BaseURL, time.Duration(cfg.RequestTimeout), jar)
}

func rootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "fitted",
		Short:         "Command-line client for the Fitted virtual wardrobe",
		Version:       BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a JSON config file")

	cmd.AddCommand(
		loginCmd(&cfgPath),
		signupCmd(&cfgPath),
		logoutCmd(&cfgPath),
		whoamiCmd(&cfgPath),
		closetCmd(&cfgPath),
		outfitsCmd(&cfgPath),
	)

	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.LogError("%v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
