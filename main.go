package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// Version is the server release, stamped at build time.
var Version = "dev"

func main() {
	var (
		port       int
		noPassword bool
		testUser   string
	)

	rootCmd := &cobra.Command{
		Use:     "cogru [path]",
		Short:   "Real-time collaborative editing server",
		Long:    "Serve a workspace directory to collaborative editor clients over TCP.",
		Version: Version,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			workspace := "."
			if len(args) == 1 {
				workspace = args[0]
			}
			return serve(workspace, port, noPassword, testUser)
		},
	}
	rootCmd.Flags().IntVar(&port, "port", 0, "listen port (overrides cogru.Port)")
	rootCmd.Flags().BoolVar(&noPassword, "no-password", false, "start without a room password")
	rootCmd.Flags().StringVar(&testUser, "test-user", "", "name for a virtual client that types into a scratch file (empty to disable)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(workspace string, port int, noPassword bool, testUser string) error {
	cfg := loadConfig(propFile)
	setupLogger(cfg.LogLevel)
	if port != 0 {
		cfg.Port = port
	}

	abs, err := filepath.Abs(workspace)
	if err != nil {
		return fmt.Errorf("resolve workspace %s: %w", workspace, err)
	}

	password := ""
	if !noPassword {
		password, err = readPassword()
		if err != nil {
			return err
		}
	}

	room := newRoom(cfg, abs, password)
	logrus.Infof("[server] workspace root %s", room.Path())
	if err := room.scanFiles(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return NewServer(cfg.Host, cfg.Port, room).Run(ctx)
	})
	if cfg.APIPort > 0 {
		g.Go(func() error {
			return NewAPIServer(room).Run(ctx, fmt.Sprintf("%s:%d", cfg.Host, cfg.APIPort))
		})
	}
	g.Go(func() error {
		RunMetrics(ctx, room, 30*time.Second)
		return nil
	})
	if testUser != "" {
		g.Go(func() error {
			RunTestBot(ctx, room, testUser)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logrus.Info("[server] bye")
	return nil
}

// readPassword prompts for the room password twice on the terminal,
// without echo, and refuses a mismatch.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())

	fmt.Print("Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Print("Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
