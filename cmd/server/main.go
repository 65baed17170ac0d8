package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/gilded-thistle/storefront-auth/authflowrepo"
	"github.com/gilded-thistle/storefront-auth/internal/config"
	"github.com/gilded-thistle/storefront-auth/server"
	"github.com/gilded-thistle/storefront-auth/server/metrics"
	"github.com/gilded-thistle/storefront-auth/server/sessionrepo"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v\n", err)
	}

	c := config.New()
	displayAppname(c.GetAppName())

	srv, err := newServer(c)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func newServer(c config.Config) (*server.Server, error) {
	sessions := newSessionRepo(c)
	flows := authflowrepo.NewInMemoryRepo()
	exchanger := server.NewOIDCExchanger(c)
	m := metrics.New(prometheus.DefaultRegisterer)

	return server.New(c, sessions, flows, exchanger, m)
}

// newSessionRepo picks the shared Redis store when an address is configured,
// falling back to the in-memory store for single-instance deployments.
func newSessionRepo(c config.Config) sessionrepo.Repo {
	addr := c.GetRedisAddr()
	if addr == "" {
		return sessionrepo.NewInMemoryRepo()
	}
	log.Printf("Using Redis session store at %s\n", addr)
	client := redis.NewClient(&redis.Options{Addr: addr})
	return sessionrepo.NewRedisRepo(client)
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
