package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/autoplaylist/internal/server"
	"github.com/desertthunder/autoplaylist/internal/services"
	"github.com/desertthunder/autoplaylist/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until the process is interrupted.
//
// Each request acts with the bearer token it carries; the tokens saved in the config file are not used.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret are required to serve", shared.ErrMissingCredentials)
	}
	if r.inference == nil {
		r.logger.Warn("no inference api key configured; language and missing genres will stay empty")
	}

	cache, db, err := r.openCache(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	spotify := r.spotify
	api := server.NewAPI(server.APIOpts{
		Auth: spotify,
		Provider: func(accessToken string) services.Provider {
			return spotify.WithToken(accessToken)
		},
		Cache:       cache,
		Inferrer:    r.inferrer(r.logger),
		Defaults:    r.defaultOptions(),
		FrontendURL: r.config.Server.FrontendURL,
		Concurrency: r.config.Pipeline.Concurrency,
		Logger:      r.logger,
	})

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger), server.CORS(r.config.Server.AllowedOrigins))
	api.Register(router)

	host := r.config.Server.Host
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	port := r.config.Server.Port
	if cmd.IsSet("port") {
		port = int(cmd.Int("port"))
	}

	srv := server.NewHTTPServer(fmt.Sprintf("%s:%d", host, port), router)
	return server.ListenAndServe(ctx, srv, r.logger)
}
