package main

import (
	"context"

	"github.com/kbukum/diarkit/database"
	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/server"
	"github.com/kbukum/diarkit/storage"
	"github.com/kbukum/diarkit/version"
)

func runServe(ctx context.Context, g *globalOptions, args []string) error {
	fs := newFlagSet(g, "serve", "[flags]")
	host := fs.String("host", "", "listen host (default: server.host)")
	port := fs.IntP("port", "p", 0, "listen port (default: server.port)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return errors.InvalidInput("args", "serve takes no arguments")
	}

	app, err := newApp(g)
	if err != nil {
		return err
	}
	cfg := app.Cfg
	if fs.Changed("host") {
		cfg.Server.Host = *host
	}
	if fs.Changed("port") {
		cfg.Server.Port = *port
	}

	eng, err := newEngine(app, cfg.Engine)
	if err != nil {
		return err
	}
	srv := server.New(cfg.Server, app.Logger.WithComponent("server"), app.Metrics)
	apiOpts := []server.APIOption{server.WithAPILogger(app.Logger.WithComponent("api"))}

	app.OnStart(func(ctx context.Context) error {
		if !cfg.Database.Enabled {
			app.Logger.Warn("database disabled, /v1/transcripts routes will answer 503")
			return nil
		}
		db, err := database.Open(ctx, cfg.Database, app.Logger.WithComponent("database"))
		if err != nil {
			return err
		}
		app.AddHealthChecker(db)
		app.OnStop(func(context.Context) error { return db.Close() })
		apiOpts = append(apiOpts, server.WithRepository(database.NewRepository(db)))
		return nil
	})
	app.OnStart(func(ctx context.Context) error {
		if !cfg.Storage.Enabled {
			return nil
		}
		store, err := storage.New(ctx, cfg.Storage, app.Logger.WithComponent("storage"))
		if err != nil {
			return err
		}
		apiOpts = append(apiOpts, server.WithStorage(store, cfg.Storage.Prefix))
		return nil
	})

	app.OnReady(func(ctx context.Context) error {
		server.NewAPI(eng, apiOpts...).Register(srv.GinEngine())
		srv.RegisterDefaultEndpoints(app.Name, version.Get().Short(), app.HealthCheckers()...)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		app.OnStop(srv.Stop)
		app.Logger.Info("diarkit API listening", logger.Fields("addr", srv.Addr()))
		return nil
	})

	return app.Run(ctx)
}
