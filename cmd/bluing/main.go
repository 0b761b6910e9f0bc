//go:build linux

// Command bluing is a Bluetooth intelligence gathering tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/config"
	"github.com/XC-/bluing/linux"
)

var cfg *config.Config

func main() {
	app := cli.NewApp()

	app.Name = "bluing"
	app.Usage = "A Bluetooth intelligence gathering tool"
	app.Version = "0.1.0"
	app.Action = cli.ShowAppHelp
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "YAML configuration file"},
		cli.IntFlag{Name: "hci, i", Value: -1, Usage: "HCI device index (overrides the configuration)"},
		cli.StringFlag{Name: "store", Usage: "SQLite file to store results in"},
		cli.BoolFlag{Name: "debug", Usage: "debug logging"},
	}
	addrFlags := []cli.Flag{
		cli.StringFlag{Name: "type, t", Value: "public", Usage: "address type of the target (public / random)"},
	}

	app.Commands = []cli.Command{
		{
			Name:   "br",
			Usage:  "Discover BR/EDR devices",
			Action: cmdBR,
			Flags: []cli.Flag{
				cli.IntFlag{Name: "units, u", Usage: "inquiry length in units of 1.28 s"},
				cli.BoolFlag{Name: "no-names", Usage: "skip the remote name pass"},
			},
		},
		{
			Name:   "le",
			Usage:  "Discover LE devices",
			Action: cmdLE,
			Flags: []cli.Flag{
				cli.DurationFlag{Name: "timeout, d", Usage: "scan length"},
				cli.StringFlag{Name: "mode, m", Usage: "active / passive"},
				cli.StringFlag{Name: "sort, s", Usage: "rssi / none"},
			},
		},
		{Name: "sdp", Usage: "Browse the SDP records of a BR/EDR device", ArgsUsage: "ADDR", Action: cmdSDP},
		{Name: "gatt", Usage: "Walk the GATT database of an LE device", ArgsUsage: "ADDR", Action: cmdGATT, Flags: addrFlags},
		{Name: "lmp", Usage: "Read the LMP features of a BR/EDR device", ArgsUsage: "ADDR", Action: cmdLMP},
		{Name: "ll", Usage: "Read the LL features of an LE device", ArgsUsage: "ADDR", Action: cmdLL, Flags: addrFlags},
		{Name: "smp", Usage: "Probe the pairing features of an LE device", ArgsUsage: "ADDR", Action: cmdSMP, Flags: addrFlags},
		{
			Name:   "sniff",
			Usage:  "Capture advertising channel PDUs with serial sniffers",
			Action: cmdSniff,
			Flags: []cli.Flag{
				cli.DurationFlag{Name: "timeout, d", Usage: "capture length; zero runs until interrupted"},
			},
		},
		{
			Name:      "infer",
			Usage:     "Complete sniffed lower address bytes with an organization's prefixes",
			ArgsUsage: "LOW...",
			Action:    cmdInfer,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "org, o", Usage: "organization name"},
				cli.StringFlag{Name: "match", Usage: "substring / prefix / exact / word"},
			},
		},
		{Name: "devices", Usage: "List local HCI devices", Action: cmdDevices},
	}

	app.Before = setup
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "bluing:", err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) error {
	var err error
	if cfg, err = config.Load(c.GlobalString("config")); err != nil {
		return err
	}
	if n := c.GlobalInt("hci"); n >= 0 {
		cfg.Device = n
	}
	if p := c.GlobalString("store"); p != "" {
		cfg.Store.Path = p
	}
	if c.GlobalBool("debug") {
		cfg.Logging.Level = "debug"
	}
	return cfg.Logging.Apply()
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openController opens the configured device and stops anything left
// running on it by an earlier session.
func openController(ctx context.Context) (*linux.HCI, error) {
	h, err := linux.Open(ctx, cfg.Device)
	if err != nil {
		return nil, errors.Wrapf(err, "hci%d", cfg.Device)
	}
	if err := h.Prepare(ctx); err != nil {
		h.Close()
		return nil, errors.Wrapf(err, "hci%d", cfg.Device)
	}
	return h, nil
}

// prepareController readies the device for commands that reach the peer
// through kernel L2CAP sockets.
func prepareController(ctx context.Context) error {
	h, err := openController(ctx)
	if err != nil {
		return err
	}
	return h.Close()
}

func targetArg(c *cli.Context) (bluing.BDAddr, bluing.AddrType, error) {
	if c.NArg() != 1 {
		return bluing.BDAddr{}, 0, errors.Wrap(bluing.ErrInvalid, "expected one ADDR argument")
	}
	a, err := bluing.ParseBDAddr(c.Args().First())
	if err != nil {
		return bluing.BDAddr{}, 0, err
	}
	typ := bluing.AddrPublic
	if s := c.String("type"); s != "" {
		if typ, err = bluing.ParseAddrType(s); err != nil {
			return bluing.BDAddr{}, 0, err
		}
	}
	return a, typ, nil
}

// chkErr treats the end of the requested duration as success.
func chkErr(err error) error {
	switch errors.Cause(err) {
	case context.DeadlineExceeded:
		return nil
	case context.Canceled:
		fmt.Printf("\n(Canceled)\n")
		return nil
	}
	if err != nil {
		log.WithField("err", err).Debug("command failed")
	}
	return err
}
