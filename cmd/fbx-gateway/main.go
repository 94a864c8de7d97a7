package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexjbarnes/fbx-gateway/internal/config"
	"github.com/alexjbarnes/fbx-gateway/internal/credentials"
	"github.com/alexjbarnes/fbx-gateway/internal/freebox"
	"github.com/alexjbarnes/fbx-gateway/internal/logging"
	"github.com/alexjbarnes/fbx-gateway/internal/server"
	"github.com/alexjbarnes/fbx-gateway/internal/state"
	"golang.org/x/sync/errgroup"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

const usage = `usage:
  fbx-gateway [port] [apiURL]          run the gateway
  fbx-gateway pair                     pair with the box and exit
  fbx-gateway password <challenge> <token>
                                       print the session password for a challenge`

func main() {
	var err error

	switch {
	case len(os.Args) > 1 && os.Args[1] == "pair":
		err = pair()
	case len(os.Args) > 1 && os.Args[1] == "password":
		err = password(os.Args[2:])
	case len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help"):
		fmt.Println(usage)
		return
	default:
		err = run(os.Args[1:])
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// password prints the derived password without touching the box.
func password(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("password needs exactly a challenge and a token\n%s", usage)
	}

	fmt.Println(freebox.DerivePassword(args[0], args[1]))

	return nil
}

// deps is the object graph shared by the server and the pair command.
type deps struct {
	client *freebox.Client
	store  *credentials.Store
	state  *state.State
	pairer *freebox.Pairer
	info   freebox.AppInfo
}

func build(cfg *config.Config, logger *slog.Logger) (*deps, error) {
	appState, err := state.LoadAt(cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	client := freebox.NewClient(freebox.ClientConfig{
		BaseURL:    cfg.APIURL,
		APIVersion: cfg.APIVersion,
		Logger:     logger.With(slog.String("component", "box")),
	})

	store := credentials.NewStore(cfg.TokenPath())

	pairer := freebox.NewPairer(freebox.PairerConfig{
		Client:      client,
		Credentials: store,
		Journal:     appState,
		Logger:      logger.With(slog.String("component", "pairing")),
	})

	return &deps{
		client: client,
		store:  store,
		state:  appState,
		pairer: pairer,
		info: freebox.AppInfo{
			AppID:      cfg.AppID,
			AppName:    cfg.AppName,
			AppVersion: cfg.AppVersion,
			DeviceName: cfg.DeviceName,
		},
	}, nil
}

// pair runs the pairing flow from the terminal.
func pair() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.IsProduction(), cfg.LogLevel)

	d, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer d.state.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.PairingTimeout)
	defer cancel()

	fmt.Fprintln(os.Stderr, "Approve the request on the box's front panel.")

	if err := d.pairer.Authorize(ctx, d.info); err != nil {
		return fmt.Errorf("pairing: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Paired. App token saved to %s\n", d.store.Path())

	return nil
}

func run(args []string) error {
	cfg, err := config.Load(args...)
	if err != nil {
		return fmt.Errorf("loading config: %w\n%s", err, usage)
	}

	logger := logging.NewLogger(cfg.IsProduction(), cfg.LogLevel)
	logger.Info("fbx-gateway starting",
		slog.String("version", Version),
		slog.String("api_url", cfg.APIURL),
		slog.String("api_version", cfg.APIVersion),
		slog.String("config_dir", cfg.ConfigDir),
	)

	d, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer d.state.Close()

	if token, err := d.store.Load(); err != nil {
		logger.Warn("failed to read app token", slog.String("error", err.Error()))
	} else if token == "" {
		logger.Warn("gateway is not paired, POST /register or run `fbx-gateway pair`",
			slog.String("token_path", d.store.Path()),
		)
	}

	session := freebox.NewSession(freebox.SessionConfig{
		Client:      d.client,
		Credentials: d.store,
		AppID:       cfg.AppID,
		Logger:      logger.With(slog.String("component", "session")),
	})

	gateway := freebox.NewGateway(d.client, session, logger.With(slog.String("component", "gateway")))

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: server.NewMux(server.MuxConfig{
			Proxy:          gateway,
			Pairing:        d.pairer,
			AppInfo:        d.info,
			PairingTimeout: cfg.PairingTimeout,
			Logger:         logger,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
		}),
		ReadTimeout: 30 * time.Second,
		// /register holds the connection open for the whole pairing.
		WriteTimeout: cfg.PairingTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.ListenAddr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
