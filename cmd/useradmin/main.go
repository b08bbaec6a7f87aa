package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"user-admin/internal/app"
	"user-admin/internal/auth"
	"user-admin/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "useradmin",
		Short:        "User administration console",
		Long:         "useradmin serves the user administration API and manages its audit trail.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("driver", "", "storage driver: sqlite|pebble|memory (overrides database.driver)")
	rootCmd.PersistentFlags().String("db-path", "", "database path (overrides database.path)")

	serveCmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the HTTP API",
		Aliases: []string{"server"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)

	logsCmd := &cobra.Command{Use: "logs", Short: "Audit trail commands"}
	logsCmd.AddCommand(&cobra.Command{
		Use:   "archive",
		Short: "Export the audit trail to object storage once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Archive.Archive(cmd.Context())
			if err != nil {
				return fmt.Errorf("archive audit trail: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d entries to %s\n", res.Entries, res.Location)
			return nil
		},
	})
	logsCmd.AddCommand(&cobra.Command{
		Use:   "archives",
		Short: "List exported audit archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			objects, err := a.Archive.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list archives: %w", err)
			}
			for _, obj := range objects {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", obj.Key, obj.Size)
			}
			return nil
		},
	})
	rootCmd.AddCommand(logsCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for auth.adminpasswordhash",
		Long:  "Hashes the password argument, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	if driver, _ := cmd.Flags().GetString("driver"); driver != "" {
		cfg.Database.Driver = strings.ToLower(driver)
	}
	if path, _ := cmd.Flags().GetString("db-path"); path != "" {
		cfg.Database.Path = path
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func serve(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Archive.Start(ctx); err != nil {
		return fmt.Errorf("start archive: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			a.Archive.Shutdown()
			return fmt.Errorf("http server: %w", err)
		}
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	a.Archive.Shutdown()

	logger.Info("bye")
	return nil
}
