package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ecadlabs/go-sui-keygen/config"
	"github.com/ecadlabs/go-sui-keygen/keypool"
	"github.com/ecadlabs/go-sui-keygen/registry"
	"github.com/ecadlabs/go-sui-keygen/server"
	"github.com/ecadlabs/go-sui-keygen/server/middleware"
	"github.com/ecadlabs/go-sui-keygen/service"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

func main() {
	var (
		profilesFile string
		databaseFile string
		address      string
		logLevel     string
	)
	flag.StringVar(&profilesFile, "p", "", "Profiles configuration file")
	flag.StringVar(&databaseFile, "d", "", "Database")
	flag.StringVar(&address, "a", ":3000", "Address")
	flag.StringVar(&logLevel, "l", "info", "Log level")
	flag.Parse()

	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(level)

	if profilesFile == "" {
		profilesFile = os.Getenv("KEYGEN_PROFILES")
	}

	if databaseFile == "" {
		databaseFile = os.Getenv("KEYGEN_DB")
	}

	var rd io.Reader
	if profilesData := os.Getenv("KEYGEN_PROFILES_DATA"); profilesData != "" {
		rd = bytes.NewReader([]byte(profilesData))
	} else {
		fd, err := os.Open(profilesFile)
		if err != nil {
			log.Fatal(err)
		}
		defer fd.Close()
		rd = bufio.NewReader(fd)
	}
	cfg, err := config.New(rd)
	if err != nil {
		log.Fatal(err)
	}

	db, err := bolt.Open(databaseFile, 0600, nil)
	if err != nil {
		log.Fatal(err)
	}

	profiles := make(map[string]*service.Profile, len(cfg))
	for name, p := range cfg {
		reg := registry.New(db, p)
		pool, err := keypool.New(db, p, reg)
		if err != nil {
			log.Fatal(err)
		}
		profiles[name] = &service.Profile{
			Pool:     pool,
			Registry: reg,
			Config:   p,
		}
		l := log.WithField("profile", name)
		if t := p.GetTreasury(); t != nil {
			l = l.WithField("treasury", t.Address())
		}
		l.Info("Profile loaded")
	}

	service := service.Service{Profiles: profiles}
	server := server.Server{Service: &service}
	handler := server.Router()

	logger := middleware.Logging{}
	handler.Use(logger.Handler)

	srv := &http.Server{
		Handler: handler,
		Addr:    address,
	}

	errCh := make(chan error)
	go func() {
		log.Printf("HTTP server is listening for connections on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signalCh:
	case err := <-errCh:
		log.Fatal(err) // happened before shutdown
	}

	log.Info("Shutting down...")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Fatal(err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		log.Error(err)
	}
	for _, p := range profiles {
		if err := p.Pool.Stop(context.Background()); err != nil {
			log.Error(err)
		}
	}
	if err := db.Close(); err != nil {
		log.Fatal(err)
	}
	log.Info("Done...")
}
