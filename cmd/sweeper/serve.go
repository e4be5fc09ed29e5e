package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"batch_transfer/internal/infrastructure/restapi"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "runs the HTTP API (session, scan, transfers, event stream, metrics)",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "port", Usage: "listen port, overrides server.port"},
	},
	Action: func(c *cli.Context) error {
		app, err := newApplication(c, true)
		if err != nil {
			return err
		}
		defer app.Close()

		cfg := app.cfg
		if port := c.String("port"); port != "" {
			cfg.Server.Port = port
		}

		handler := restapi.NewHandler(restapi.HandlerDeps{
			Sessions:     app.sessions,
			Transfers:    app.orch,
			Capabilities: app.capability,
			Networks:     app.networks,
			Feed:         app.feed,
			Journal:      app.journal,
			Logger:       app.log,
		})
		router := restapi.SetupRouter(handler, restapi.RouterConfig{AllowedOrigins: cfg.Server.AllowedOrigins}, app.zap)

		srv := &http.Server{
			Addr:         listenAddr(cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		}

		g, ctx := errgroup.WithContext(c.Context)
		// event streams end with the server context
		srv.BaseContext = func(net.Listener) context.Context { return ctx }
		g.Go(func() error {
			n := app.registry.WarmUp(ctx, app.networks.GetAllNetworkDefinitions())
			app.zap.Info("Token lists preloaded", zap.Int("networks", n))
			return nil
		})
		g.Go(func() error {
			if _, ok, err := app.sessions.Restore(ctx); err != nil {
				app.zap.Warn("Could not restore wallet session", zap.Error(err))
			} else if ok {
				app.zap.Info("Wallet session restored")
			}
			return nil
		})
		g.Go(func() error {
			app.zap.Info("Server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			app.zap.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			return err
		}
		app.zap.Info("Server exiting")
		return nil
	},
}

func listenAddr(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}
