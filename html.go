/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/Seednode/feudbox/internal/assets"
)

var roomParam = regexp.MustCompile(`^[A-Za-z]{4}$`)

func serveHomePage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		body := "feudbox v" + releaseVersion
		if code := r.URL.Query().Get("room"); roomParam.MatchString(code) {
			body = fmt.Sprintf("Join room %s", html.EscapeString(strings.ToUpper(code)))
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := io.WriteString(w, newPage("feudbox", body))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

// serveLogo streams a room's uploaded logo from the asset store.
func serveLogo(cfg *Config, store *assets.Store, log zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()
		code := strings.ToUpper(p.ByName("code"))

		f, err := store.Open(code, p.ByName("file"))
		switch {
		case errors.Is(err, assets.ErrInvalidName), errors.Is(err, fs.ErrNotExist):
			http.NotFound(w, r)

			return
		case err != nil:
			log.Warn().Err(err).Str("room", code).Msg("logo not opened")
			http.Error(w, "logo unavailable", http.StatusInternalServerError)

			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			http.Error(w, "logo unavailable", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		http.ServeContent(w, r, info.Name(), info.ModTime(), f)

		log.Debug().
			Str("room", code).
			Str("size", humanReadableSize(info.Size())).
			Str("remote", realIP(r)).
			Dur("elapsed", time.Since(startTime).Round(time.Microsecond)).
			Msg("served logo")
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /rooms/
Disallow: /ws

User-agent: GPTBot
Disallow: /

User-agent: CCBot
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}
