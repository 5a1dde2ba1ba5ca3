// Package bootstrap runs a diarkit command inside a uniform lifecycle.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnStart(openDatabase)
//	app.OnStop(closeDatabase)
//	err = app.RunTask(ctx, func(ctx context.Context) error { ... })
//
// Run blocks until SIGINT or SIGTERM and suits the HTTP server; RunTask
// suits finite commands such as align and batch.
package bootstrap
