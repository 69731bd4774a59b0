package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"checklist-cli/internal/api"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the checklist API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a := strings.TrimSpace(addr); a != "" {
				app.cfg.Server.Addr = a
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, app, nil)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

// serve runs the API until ctx is done, then shuts down gracefully. When
// ready is non-nil it receives the bound address once listening.
func serve(ctx context.Context, app *App, ready chan<- string) error {
	log := app.log.Named("serve")
	st, err := app.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := api.New(st, api.WithLogger(app.log.Named("api")))
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", app.cfg.Server.Addr)
	if err != nil {
		return err
	}
	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("db", app.cfg.Database.Driver),
			zap.String("blob", string(st.Blobs().Driver())))
		if ready != nil {
			ready <- ln.Addr().String()
		}
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownTimeout())
		defer cancel()
		log.Info("shutting down")
		return hs.Shutdown(shutCtx)
	})
	return g.Wait()
}
