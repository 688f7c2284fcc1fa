package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/compresr/biosdk-client/internal/stubserver"
)

// StubCmd serves the echo stub SDK service.
type StubCmd struct {
	Addr     string   `help:"Address to listen on." default:":8088"`
	Shape    string   `help:"Response envelope shape." enum:"nested,flat" default:"nested"`
	BasePath string   `help:"Path prefix for the service routes." placeholder:"PATH"`
	Name     string   `help:"Backend name reported in SDK info." default:"echo"`
	Modality []string `short:"m" help:"Supported modalities reported in SDK info." placeholder:"FINGER,FACE"`
}

func (c *StubCmd) Run(a *app) error {
	ctx, cancel := signalContext()
	defer cancel()

	ln, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return err
	}
	return c.serve(ctx, a, ln)
}

// serve runs the stub on ln until ctx is done.
func (c *StubCmd) serve(ctx context.Context, a *app, ln net.Listener) error {
	modalities, err := parseModalities(c.Modality)
	if err != nil {
		return err
	}

	opts := []stubserver.Option{stubserver.WithLogger(a.logger)}
	if c.Shape == "flat" {
		opts = append(opts, stubserver.WithShape(stubserver.ShapeFlat))
	}
	if c.BasePath != "" {
		opts = append(opts, stubserver.WithBasePath(c.BasePath))
	}
	stub := stubserver.New(&stubserver.EchoBackend{Name: c.Name, Modalities: modalities}, opts...)

	srv := &http.Server{
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("stub shutdown error")
		}
	}()

	a.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("shape", c.Shape).
		Str("base_path", c.BasePath).
		Msg("stub SDK service listening")

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.logger.Info().Msg("stub SDK service stopped")
	return nil
}
