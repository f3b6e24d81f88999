package main

import (
	"context"
	"fmt"

	watercompany "github.com/favour-abass/waterCompanyBackend"
	"github.com/favour-abass/waterCompanyBackend/service"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v1"
)

var cmds = cli.Commands{
	{
		Name:    "server",
		Usage:   "Run the water pack service.",
		Aliases: []string{"s"},
		Action:  runServer,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "config, c",
				Usage: "configuration file of the server, .toml or .yaml",
			},
			cli.StringFlag{
				Name:  "addr",
				Value: service.DEFAULT_HTTP_ADDR,
				Usage: "listen address of the HTTP API",
			},
			cli.StringFlag{
				Name:  "db",
				Value: service.DEFAULT_DB_PATH,
				Usage: "bbolt file holding packs and users",
			},
			cli.IntFlag{
				Name:  "difficulty",
				Usage: "leading '0' hex characters of a block hash",
			},
			cli.DurationFlag{
				Name:  "interval",
				Usage: "commit pending transactions periodically, 0 mines on demand",
			},
			cli.BoolFlag{
				Name:  "no-seal",
				Usage: "do not sign mined blocks",
			},
			cli.StringFlag{
				Name:   "admin-user",
				Usage:  "create this approved ADMIN account at startup",
				EnvVar: "WATERCOMPANY_ADMIN_USER",
			},
			cli.StringFlag{
				Name:   "admin-password",
				Usage:  "password of --admin-user",
				EnvVar: "WATERCOMPANY_ADMIN_PASSWORD",
			},
		},
	},
	{
		Name:      "register",
		Usage:     "Create a user.",
		ArgsUsage: "USERNAME PASSWORD ADMIN|INSPECTOR",
		Action:    register,
	},
	{
		Name:      "approve",
		Usage:     "Approve a registered user, needs an admin --user.",
		ArgsUsage: "USERNAME",
		Action:    approveUser,
	},
	{
		Name:    "pack",
		Usage:   "Move water packs through their lifecycle, needs --user.",
		Aliases: []string{"p"},
		Description: fmt.Sprint(`
            app --user alice --password secret pack create
            app --user alice --password secret pack test WAT-...
            app --user alice --password secret pack reject WAT-... EXPIRED
	    `),
		Subcommands: cli.Commands{
			{
				Name:   "create",
				Usage:  "Create a new pack",
				Action: createPack,
			},
			{
				Name:      "test",
				Usage:     "Send a pack to the inspector",
				ArgsUsage: "SERIAL",
				Action:    transition((*watercompany.Client).Test),
			},
			{
				Name:      "approve",
				Usage:     "Approve an inspected pack",
				ArgsUsage: "SERIAL",
				Action:    transition((*watercompany.Client).Approve),
			},
			{
				Name:      "reject",
				Usage:     "Reject an inspected pack",
				ArgsUsage: "SERIAL CONTAMINATED|EXPIRED",
				Action:    rejectPack,
			},
			{
				Name:      "distribute",
				Usage:     "Distribute an approved pack",
				ArgsUsage: "SERIAL",
				Action:    transition((*watercompany.Client).Distribute),
			},
			{
				Name:      "sell",
				Usage:     "Sell a distributed pack",
				ArgsUsage: "SERIAL",
				Action:    transition((*watercompany.Client).Sell),
			},
		},
	},
	{
		Name:      "verify",
		Usage:     "Show the ledger history of a pack",
		Aliases:   []string{"v"},
		ArgsUsage: "SERIAL",
		Action:    verifyPack,
	},
	{
		Name:    "chain",
		Usage:   "Show the ledger or one block of it",
		Aliases: []string{"b"},
		Action:  showChain,
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  "index",
				Value: -1,
				Usage: "give this block index",
			},
		},
	},
	{
		Name:   "validate",
		Usage:  "Check the integrity of the ledger",
		Action: validateChain,
	},
	{
		Name:   "stats",
		Usage:  "Show pack and ledger counters",
		Action: showStats,
	},
	{
		Name:   "pending",
		Usage:  "Show transactions waiting for a block",
		Action: showPending,
	},
}

func register(c *cli.Context) error {
	if c.NArg() != 3 {
		return xerrors.New("please give the following arguments: USERNAME PASSWORD ROLE")
	}
	args := c.Args()
	reply, err := newClient(c).Register(context.Background(), args.Get(0), args.Get(1), args.Get(2))
	if err != nil {
		return err
	}
	log.Info(reply.Message, reply.Username, "as", reply.Role)
	return nil
}

func approveUser(c *cli.Context) error {
	if c.NArg() != 1 {
		return xerrors.New("please give the username to approve")
	}
	client, err := loggedIn(c)
	if err != nil {
		return err
	}
	reply, err := client.ApproveUser(context.Background(), c.Args().First())
	if err != nil {
		return err
	}
	log.Info(reply.Message, reply.Username)
	return nil
}

func createPack(c *cli.Context) error {
	client, err := loggedIn(c)
	if err != nil {
		return err
	}
	reply, err := client.CreatePack(context.Background())
	if err != nil {
		return err
	}
	return printJSON(reply)
}

type transitionFunc func(*watercompany.Client, context.Context, string) (*watercompany.PackReply, error)

func transition(fn transitionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return xerrors.New("please give the serial code of the pack")
		}
		client, err := loggedIn(c)
		if err != nil {
			return err
		}
		reply, err := fn(client, context.Background(), c.Args().First())
		if err != nil {
			return err
		}
		return printJSON(reply)
	}
}

func rejectPack(c *cli.Context) error {
	if c.NArg() != 2 {
		return xerrors.New("please give the following arguments: SERIAL REASON")
	}
	client, err := loggedIn(c)
	if err != nil {
		return err
	}
	reply, err := client.Reject(context.Background(), c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	return printJSON(reply)
}

func verifyPack(c *cli.Context) error {
	if c.NArg() != 1 {
		return xerrors.New("please give the serial code of the pack")
	}
	reply, err := newClient(c).Verify(context.Background(), c.Args().First())
	if err != nil {
		return err
	}
	return printJSON(reply)
}

// showChain prints every block, or only the one given by --index.
func showChain(c *cli.Context) error {
	reply, err := newClient(c).Chain(context.Background())
	if err != nil {
		return err
	}
	index := c.Int("index")
	if index < 0 {
		return printJSON(reply)
	}
	if index >= len(reply.Blocks) {
		return xerrors.Errorf("no block at index %d, chain length is %d", index, reply.Length)
	}
	return printJSON(reply.Blocks[index])
}

func validateChain(c *cli.Context) error {
	reply, err := newClient(c).Validate(context.Background())
	if err != nil {
		return err
	}
	if !reply.Valid {
		return xerrors.Errorf("ledger is invalid: %s", reply.Error)
	}
	log.Info("Ledger is valid,", reply.Length, "blocks")
	return nil
}

func showStats(c *cli.Context) error {
	reply, err := newClient(c).Stats(context.Background())
	if err != nil {
		return err
	}
	return printJSON(reply)
}

func showPending(c *cli.Context) error {
	reply, err := newClient(c).Pending(context.Background())
	if err != nil {
		return err
	}
	return printJSON(reply)
}
