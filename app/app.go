package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	watercompany "github.com/favour-abass/waterCompanyBackend"
	"github.com/favour-abass/waterCompanyBackend/service"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v1"
)

const (
	// DefaultName is the name of the binary we produce.
	DefaultName = "watercompany"

	defaultURL = "http://localhost:3000"
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = DefaultName
	cliApp.Usage = "Track water packs on a proof-of-work ledger."
	cliApp.Version = "0.1"
	cliApp.Commands = cmds
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
		cli.StringFlag{
			Name:   "url, u",
			Value:  defaultURL,
			Usage:  "address of a running service",
			EnvVar: "WATERCOMPANY_URL",
		},
		cli.StringFlag{
			Name:  "user",
			Usage: "username to log in with for pack commands",
		},
		cli.StringFlag{
			Name:   "password",
			Usage:  "password of --user",
			EnvVar: "WATERCOMPANY_PASSWORD",
		},
	}
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
	log.ErrFatal(cliApp.Run(os.Args))
}

// readConfig loads the --config file when given and applies the flags set
// on the command line over it.
func readConfig(c *cli.Context) (*service.Config, error) {
	config := service.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		config, err = service.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}
	if c.IsSet("addr") {
		config.HTTPAddr = c.String("addr")
	}
	if c.IsSet("db") {
		config.DBPath = c.String("db")
	}
	if c.IsSet("difficulty") {
		config.Difficulty = c.Int("difficulty")
	}
	if c.IsSet("interval") {
		config.MineInterval.Duration = c.Duration("interval")
	}
	if c.String("admin-user") != "" {
		config.AdminUser = c.String("admin-user")
		config.AdminPassword = c.String("admin-password")
	}
	if c.IsSet("no-seal") {
		config.Seal = false
	}
	if c.GlobalInt("debug") == 0 && config.Debug > 0 {
		log.SetDebugVisible(config.Debug)
	}
	return config, config.Validate()
}

// runServer serves the API until SIGINT or SIGTERM.
func runServer(c *cli.Context) error {
	config, err := readConfig(c)
	if err != nil {
		return err
	}
	s, err := service.New(config)
	if err != nil {
		return err
	}

	errs := make(chan error, 1)
	go func() {
		errs <- s.ListenAndServe()
	}()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-errs:
		s.Close()
		return err
	case sig := <-sigs:
		log.Info("Received", sig, ", shutting down")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

func newClient(c *cli.Context) *watercompany.Client {
	return watercompany.NewClient(c.GlobalString("url"))
}

// loggedIn returns a client holding a token for --user.
func loggedIn(c *cli.Context) (*watercompany.Client, error) {
	user := c.GlobalString("user")
	if user == "" {
		return nil, xerrors.New("please give --user and --password")
	}
	client := newClient(c)
	if _, err := client.Login(context.Background(), user, c.GlobalString("password")); err != nil {
		return nil, xerrors.Errorf("login as %s: %w", user, err)
	}
	return client, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
