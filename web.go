package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/Seednode/feudbox/internal/assets"
	"github.com/Seednode/feudbox/internal/content"
	"github.com/Seednode/feudbox/internal/protocol"
	"github.com/Seednode/feudbox/internal/room"
	"github.com/Seednode/feudbox/internal/server"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

// app wires the room registry, the websocket server and the asset stores to
// the HTTP surface.
type app struct {
	cfg *Config
	log zerolog.Logger

	rooms    *room.Memory
	store    *assets.Store
	loader   *content.Loader
	recorder server.Recorder
	registry *prometheus.Registry
	ws       *server.Server

	errs chan error
}

func newApp(cfg *Config, log zerolog.Logger, fsys afero.Fs) *app {
	a := &app{
		cfg:      cfg,
		log:      log,
		store:    assets.NewStore(fsys, cfg.publicDir, cfg.maxLogoSize),
		loader:   content.NewLoader(fsys, cfg.gamesDir),
		recorder: server.NopRecorder{},
		errs:     make(chan error, 64),
	}

	a.rooms = room.NewMemory(room.Options{
		Logger:       log,
		PingInterval: cfg.pingInterval,
		OnDelete: func(code string) {
			if err := a.store.Remove(code); err != nil {
				log.Warn().Err(err).Str("room", code).Msg("room assets not removed")
			}
		},
	})

	if cfg.metrics {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.recorder = server.NewPrometheusRecorder(a.registry, a.rooms)
	}

	a.ws = server.New(server.Options{
		Rooms:       a.rooms,
		Content:     a.loader,
		Assets:      a.store,
		Logger:      log,
		Recorder:    a.recorder,
		MaxPayload:  cfg.maxPayload,
		CheckOrigin: a.checkOrigin(),
	})

	return a
}

func (a *app) reaper() *room.Reaper {
	return &room.Reaper{
		Registry: a.rooms,
		Logger:   a.log,
		Interval: a.cfg.sweepInterval,
		Idle:     a.cfg.idleTimeout,
		OnReap: func(string) {
			a.recorder.RoomReaped()
		},
	}
}

// cors builds the cross-origin policy, or nil when every client is served
// from this host.
func (a *app) cors() *cors.Cors {
	if len(a.cfg.corsOrigins) == 0 {
		return nil
	}

	return cors.New(cors.Options{
		AllowedOrigins: a.cfg.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	})
}

// checkOrigin vets websocket upgrades. Same-host pages are always allowed;
// other origins only when listed with --cors-origin.
func (a *app) checkOrigin() func(r *http.Request) bool {
	c := a.cors()
	if c == nil {
		return nil
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		return c.OriginAllowed(r)
	}
}

func (a *app) routes() http.Handler {
	mux := httprouter.New()
	cfg := a.cfg

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		a.log.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("handler panicked")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/", serveHomePage(cfg, a.errs))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, a.errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, a.errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, a.log, a.errs))

	mux.Handler(http.MethodGet, cfg.prefix+"/ws", a.ws)

	mux.GET(cfg.prefix+"/rooms/:code/qr", serveRoomQR(cfg, a.rooms, a.log, a.errs))

	mux.GET(cfg.prefix+"/rooms/:code/logo/:file", serveLogo(cfg, a.store, a.log))

	if a.registry != nil {
		mux.Handler(http.MethodGet, cfg.prefix+"/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	}

	if cfg.profile {
		registerProfileHandlers(cfg, a.log, mux)
	}

	if c := a.cors(); c != nil {
		return c.Handler(mux)
	}
	return mux
}

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config, log zerolog.Logger, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("feudbox v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		log.Debug().
			Str("size", humanReadableSize(int64(written))).
			Str("remote", realIP(r)).
			Dur("elapsed", time.Since(startTime).Round(time.Microsecond)).
			Msg("served version page")
	}
}

func ServePage(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	log := newLogger(cfg, os.Stderr)
	log.Info().Str("version", releaseVersion).Msg("starting feudbox")

	fsys := afero.NewOsFs()
	if err := prepareDirs(fsys, cfg); err != nil {
		return err
	}

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	a := newApp(cfg, log, fsys)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           a.routes(),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	go a.reaper().Run(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-a.errs:
				log.Debug().Err(err).Msg("response not written")
			}
		}
	}()

	listenErr := make(chan error, 1)
	go func() {
		log.Info().Msgf("listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			listenErr <- srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			listenErr <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-listenErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	closed := a.closeRooms()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	log.Info().Int("rooms", closed).Msg("shut down")

	return nil
}

// closeRooms tells every open room the game is over. Websocket connections
// are hijacked, so http.Server.Shutdown would not close them on its own.
func (a *app) closeRooms() int {
	var n int
	for _, r := range a.rooms.Rooms() {
		if a.rooms.Delete(r.Code(), protocol.NewData(nil), protocol.NewErrorCode(protocol.CodeGameClosed)) {
			n++
		}
	}
	return n
}
