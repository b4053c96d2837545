package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/huntsync/internal/auth"
	"github.com/MarcoPoloResearchLab/huntsync/internal/config"
	"github.com/MarcoPoloResearchLab/huntsync/internal/database"
	"github.com/MarcoPoloResearchLab/huntsync/internal/logging"
	"github.com/MarcoPoloResearchLab/huntsync/internal/notify"
	"github.com/MarcoPoloResearchLab/huntsync/internal/preferences"
	"github.com/MarcoPoloResearchLab/huntsync/internal/puzzleapi"
	"github.com/MarcoPoloResearchLab/huntsync/internal/server"
	"github.com/MarcoPoloResearchLab/huntsync/internal/session"
	"github.com/MarcoPoloResearchLab/huntsync/internal/state"
	"github.com/MarcoPoloResearchLab/huntsync/internal/transport"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "huntsync",
		Short: "Live puzzle session client for the hunt server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("page-url", "", "Puzzle page URL on the hunt server")
	cmd.PersistentFlags().String("title", defaults.GetString("hunt.title"), "Title used for native notifications")
	cmd.PersistentFlags().String("session-token", "", "Hunt server session token (overrides env)")
	cmd.PersistentFlags().String("cookie-name", defaults.GetString("session.cookie_name"), "Session cookie name")
	cmd.PersistentFlags().String("csrf-token", "", "CSRF token for hint and answer submissions")
	cmd.PersistentFlags().String("view-address", defaults.GetString("view.address"), "Local view API listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path for preferences")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Duration("handshake-timeout", defaults.GetDuration("transport.handshake_timeout"), "WebSocket handshake timeout")
	cmd.PersistentFlags().Bool("notify-sound", defaults.GetBool("notify.sound"), "Ring the terminal bell for notifications")

	bindFlag(cmd, "hunt.page_url", "page-url")
	bindFlag(cmd, "hunt.title", "title")
	bindFlag(cmd, "session.token", "session-token")
	bindFlag(cmd, "session.cookie_name", "cookie-name")
	bindFlag(cmd, "session.csrf_token", "csrf-token")
	bindFlag(cmd, "view.address", "view-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "transport.handshake_timeout", "handshake-timeout")
	bindFlag(cmd, "notify.sound", "notify-sound")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runSession(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	preferenceService, err := preferences.NewService(preferences.ServiceConfig{
		Database: db,
		Clock:    time.Now,
	})
	if err != nil {
		return err
	}

	var credential puzzleapi.Credential
	if appConfig.SessionToken != "" {
		sessionCredential, err := auth.NewSessionCredential(auth.SessionCredentialConfig{
			Token:         appConfig.SessionToken,
			CookieName:    appConfig.SessionCookieName,
			SigningSecret: []byte(appConfig.SessionSigningSecret),
		})
		if err != nil {
			return err
		}
		if subject := sessionCredential.Subject(); subject != "" {
			logger.Info("session credential loaded",
				zap.String("subject", subject),
				zap.Time("expires_at", sessionCredential.ExpiresAt()),
			)
		}
		credential = sessionCredential
	}

	apiClient, err := puzzleapi.NewClient(puzzleapi.Config{
		PageURL:    appConfig.PageURL,
		CSRFToken:  appConfig.CSRFToken,
		Credential: credential,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	pageURL := apiClient.PageURL()

	sessionState := state.NewSession(state.SessionConfig{Clock: time.Now})

	var sound notify.SoundPlayer
	if appConfig.NotifySound {
		sound = notify.NewTerminalBell(os.Stdout)
	}
	dispatcher := notify.NewDispatcher(notify.Config{
		Preferences: preferenceService,
		Sound:       sound,
		Native: notify.NewLogNotifier(logger, func() bool {
			return sessionState.Changes.SubscriberCount() > 0
		}),
		Announcements: sessionState.Announcements,
		Title:         appConfig.Title,
		Logger:        logger,
	})

	coordinator, err := session.NewCoordinator(session.Config{
		State:    sessionState,
		API:      apiClient,
		Notifier: dispatcher,
		Reporter: session.NewLogReporter(logger),
		OnSolved: func(_ context.Context, solved state.Solved) {
			logger.Info("puzzle solved",
				zap.String("guess", solved.Guess),
				zap.String("by", solved.By),
				zap.Float64("time_seconds", solved.TimeSeconds),
				zap.String("redirect", resolveRedirect(pageURL, solved.Redirect)),
			)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	dialHeader := http.Header{}
	dialHeader.Set("Origin", (&url.URL{Scheme: pageURL.Scheme, Host: pageURL.Host}).String())
	if credential != nil {
		credential.Apply(dialHeader)
	}
	socketClient, err := transport.NewClient(transport.Config{
		URL:              puzzleapi.SocketURL(pageURL),
		Header:           dialHeader,
		HandshakeTimeout: appConfig.HandshakeTimeout,
		Logger:           logger,
	}, coordinator.TransportHandlers())
	if err != nil {
		return err
	}
	coordinator.SetSender(socketClient)

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Session:     sessionState,
		Actions:     coordinator,
		Preferences: preferenceService,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.ViewAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("view server starting", zap.String("address", appConfig.ViewAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sessionErrCh := make(chan error, 1)
	go func() {
		logger.Info("puzzle session starting", zap.String("socket_url", puzzleapi.SocketURL(pageURL)))
		sessionErrCh <- socketClient.Run(signalCtx)
	}()

	var runErr error
	select {
	case <-signalCtx.Done():
	case runErr = <-sessionErrCh:
		if runErr != nil {
			logger.Error("puzzle session ended", zap.Error(runErr))
		}
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func resolveRedirect(page *url.URL, redirect string) string {
	if redirect == "" {
		return ""
	}
	target, err := page.Parse(redirect)
	if err != nil {
		return redirect
	}
	return target.String()
}
