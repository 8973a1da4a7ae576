package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/mohitkadwe19/instagram-integration/config"
	"github.com/mohitkadwe19/instagram-integration/httpapi"
	"github.com/mohitkadwe19/instagram-integration/instagram"
	"github.com/mohitkadwe19/instagram-integration/session"
	"github.com/rs/zerolog"
	"github.com/tidwall/buntdb"
)

// Version contains the current or build version. This variable can be changed
// at build time with:
//
//	go build -ldflags="-X 'main.Version=v1.0.0'"
//
// Version should be fetched from git: `git describe --tags`
var Version = "unknown"

// BuildTime indicates the time at which the binary has been built. Must be set
// as with Version.
var BuildTime = "unknown"

// sessionTTL matches the upstream long-lived-token lifetime.
const sessionTTL = 60 * 24 * time.Hour

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// args defines the CLI arguments. You can always use -h to see the help.
type args struct {
	DBFilePath string        `short:"d" long:"dbfilepath" default:"sessions.db" description:"File path of the session database."`
	EnvFile    string        `short:"e" long:"envfile" default:".env" description:"Env file with the Instagram app credentials."`
	Timeout    time.Duration `short:"t" long:"timeout" default:"30s" description:"Timeout applied to every upstream call."`
	HTTPListen string        `short:"l" long:"listen" default:"0.0.0.0:3333" description:"The listen address of the HTTP server that serves the API."`
	Version    bool          `short:"v" long:"version" description:"Displays the version."`
}

func main() {
	var args args
	parser := flags.NewParser(&args, flags.Default)

	remaining, err := parser.Parse()
	if err != nil {
		flagsErr, ok := err.(*flags.Error)
		if ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		fmt.Println("failed to parse arguments:", err.Error())
		os.Exit(1)
	}

	if len(remaining) != 0 {
		fmt.Printf("unknown flags: %v\n", remaining)
		os.Exit(1)
	}

	if args.Version {
		fmt.Println("instagram-integration", Version, "-", BuildTime)
		os.Exit(0)
	}

	var logger = zerolog.New(logout).Level(zerolog.InfoLevel).
		With().Timestamp().Logger().
		With().Caller().Logger()

	logger.Info().Msgf("hi,\n"+
		"┌───────────────────────────────────────────────┐\n"+
		"│    ** Instagram Integration Proxy **\t│\n"+
		"├───────────────────────────────────────────────┤\n"+
		"│ Version %s │ Build time %s\t│\n"+
		"├───────────────────────────────────────────────┤\n"+
		"│ DBFilePath %s\t│\n"+
		"├───────────────────────────────────────────────┤\n"+
		"│ Timeout %s\t│\n"+
		"├───────────────────────────────────────────────┤\n"+
		"│ HTTPListen %s\t│\n"+
		"└───────────────────────────────────────────────┘\n",
		Version, BuildTime, args.DBFilePath, args.Timeout.String(),
		args.HTTPListen)

	conf, err := config.Load(args.EnvFile)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	err = os.MkdirAll(filepath.Dir(args.DBFilePath), 0744)
	if err != nil {
		panic(fmt.Sprintf("failed to create db dir: %v", err))
	}

	db, err := buntdb.Open(args.DBFilePath)
	if err != nil {
		panic(err)
	}

	defer db.Close()

	client := &http.Client{
		Timeout: args.Timeout,
	}

	api := instagram.NewHTTPAPI(instagram.Config{
		OAuthBase:    conf.Instagram.OAuthURL,
		GraphBase:    conf.Instagram.GraphURL,
		ClientID:     conf.Instagram.ClientID,
		ClientSecret: conf.Instagram.ClientSecret,
		RedirectURI:  conf.RedirectURI(),
	}, client)

	sessions := session.NewBuntStore(db, sessionTTL)

	httpserver := httpapi.NewInstagramHTTP(args.HTTPListen, api, sessions, httpapi.Config{
		AuthorizeURL:  conf.Instagram.AuthorizeURL,
		ClientID:      conf.Instagram.ClientID,
		RedirectURI:   conf.RedirectURI(),
		Scopes:        conf.Instagram.Scopes,
		SecureCookies: conf.Server.SecureCookies,
	}, logger)

	wait := sync.WaitGroup{}

	wait.Add(1)
	go func() {
		defer wait.Done()
		err := httpserver.Start()
		if err != nil {
			logger.Err(err).Msg("failed to start the http server... exiting")
			os.Exit(1)
		}
		logger.Info().Msg("http server done")
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)

	<-quit

	httpserver.Stop()

	wait.Wait()

	logger.Info().Msg("done")
}
