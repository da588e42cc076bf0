package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-threedsecure/api"
	"github.com/jrsteele09/go-threedsecure/frame"
	"github.com/jrsteele09/go-threedsecure/internal/config"
	"github.com/jrsteele09/go-threedsecure/sandbox"
	"github.com/jrsteele09/go-threedsecure/threedsecure"
	"github.com/jrsteele09/go-threedsecure/threedsmodel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var scenarios = map[string]func(id string) *sandbox.Transaction{
	"frictionless": sandbox.Frictionless,
	"challenge":    sandbox.Challenge,
	"failed":       sandbox.Failed,
	"attempt":      sandbox.AuthorizedToAttempt,
}

func main() {
	result, err := run(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("3DS authentication did not complete")
	}
	if !result.Success() {
		os.Exit(2)
	}
}

func run(args []string) (result *threedsmodel.Result, returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	flags := flag.NewFlagSet("threedsecure", flag.ContinueOnError)
	configFile := flags.String("config", "", "configuration file (toml, yaml or json)")
	scenario := flags.String("scenario", "challenge", "sandbox scenario: frictionless, challenge, failed or attempt")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	c, err := loadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	logger := newLogger(c)
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id := flags.Arg(0)
	baseURL, publicKey := c.GetBaseURL(), c.GetPublicKey()

	if c.GetSandbox() {
		newTransaction, ok := scenarios[*scenario]
		if !ok {
			return nil, fmt.Errorf("unknown sandbox scenario %q", *scenario)
		}
		if id == "" {
			id = uuid.NewString()
		}
		if publicKey == "" {
			publicKey = "pk_sandbox"
		}

		server, addr, err := startSandbox(c, logger, publicKey, newTransaction(id))
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := shutdown(server); err != nil {
				logger.Err(err).Msg("sandbox shutdown")
			}
		}()
		baseURL = "http://" + addr
	}
	if id == "" {
		return nil, errors.New("usage: threedsecure [-config file] [-scenario name] <transaction id>")
	}

	client, err := api.NewClient(baseURL, publicKey,
		api.WithRequestTimeout(c.GetHTTPTimeout()),
		api.WithStrictParsing(c.GetStrictParsing()),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	service, err := threedsecure.NewService(
		threedsecure.Options{Client: client, Container: frame.NewMemoryContainer(c.GetContainerWidth())},
		threedsecure.WithLogger(logger),
		threedsecure.WithTimeout(c.GetSessionTimeout()),
		threedsecure.WithFingerprintRetries(c.GetFingerprintRetries()),
		threedsecure.WithHooks(loggingHooks(logger)),
	)
	if err != nil {
		return nil, err
	}

	result, err = service.Execute(ctx, threedsmodel.Parameters{ID: id})
	if err != nil {
		return nil, err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, err
	}
	fmt.Println(string(out))
	return result, nil
}

func loadConfig(file string) (config.Config, error) {
	if file == "" {
		return config.New(), nil
	}
	return config.Load(file)
}

func newLogger(c config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Logger
	if c.GetEnv() == "DEV" {
		logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return logger.Level(level)
}

func loggingHooks(logger zerolog.Logger) frame.Hooks {
	return frame.Hooks{
		OnAttached: func(el *frame.Element) {
			logger.Info().Str("surface", el.Name).Bool("visible", el.Visible).Msg("surface attached")
		},
		OnLoaded: func(el *frame.Element) {
			if doc := el.Document(); doc != nil {
				logger.Info().Str("surface", el.Name).Str("url", doc.URL).Int("status", doc.StatusCode).Msg("surface loaded")
			}
		},
		OnErrored: func(el *frame.Element, err error) {
			logger.Warn().Err(err).Str("surface", el.Name).Msg("surface failed")
		},
	}
}

func startSandbox(c config.Config, logger zerolog.Logger, publicKey string, tx *sandbox.Transaction) (*http.Server, string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1"+c.GetPort())
	if err != nil {
		return nil, "", fmt.Errorf("sandbox listen: %w", err)
	}

	handler := sandbox.New(
		sandbox.WithEnv(c.GetEnv()),
		sandbox.WithPublicKey(publicKey),
		sandbox.WithLogger(logger),
		sandbox.WithTransactions(tx),
	)
	server := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go listenAndServe(server, listener, logger)
	return server, listener.Addr().String(), nil
}

func listenAndServe(server *http.Server, listener net.Listener, logger zerolog.Logger) {
	logger.Info().Str("addr", listener.Addr().String()).Msg("Sandbox listening")
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		logger.Err(err).Msg("server.Serve")
	}
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
