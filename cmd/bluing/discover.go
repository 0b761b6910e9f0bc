//go:build linux

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"golang.org/x/time/rate"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/infer"
	"github.com/XC-/bluing/linux"
	"github.com/XC-/bluing/oui"
	"github.com/XC-/bluing/scan"
	"github.com/XC-/bluing/store"
)

func cmdBR(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()
	h, err := openController(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	units := cfg.Inquiry.DurationUnits
	if u := c.Int("units"); u > 0 {
		units = uint8(u)
	}
	q := &scan.Inquirer{C: h, NameTimeout: cfg.Inquiry.NameTimeout}
	if c.Bool("no-names") {
		q.NameTimeout = -1
	}
	if cfg.Inquiry.NameRate > 0 {
		q.NameLimiter = rate.NewLimiter(rate.Limit(cfg.Inquiry.NameRate), 1)
	}

	fmt.Printf("Inquiring for %v...\n", time.Duration(units)*scan.InquiryUnit)
	started := time.Now()
	res, err := q.Inquiry(ctx, units)
	if err != nil {
		return err
	}
	vendors := vendorTable()
	for i, d := range res.Devices {
		fmt.Printf("%3d %s  %s\n", i+1, d.Addr, vendors.Vendor(d.Addr))
		if d.NameResolved {
			fmt.Printf("      Name: %s\n", d.Name)
		} else if n, ok := d.EIR.LocalName(); ok {
			fmt.Printf("      Name (EIR): %s\n", n)
		}
		if d.HasRSSI {
			fmt.Printf("      RSSI: %d dBm\n", d.RSSI)
		}
		fmt.Printf("      Class: %s\n", d.Class)
		if sc := d.Class.ServiceClasses(); len(sc) > 0 {
			fmt.Printf("      Services: %s\n", strings.Join(sc, ", "))
		}
		for _, u := range d.EIR.Services() {
			fmt.Printf("      UUID: %s\n", bluing.DefaultUUIDNames().Describe(u))
		}
	}
	if res.Partial {
		fmt.Println("(partial)")
	}
	return saveDevices(store.KindBR, started, res.Partial, res.Devices)
}

func cmdLE(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	opt := scan.Options{Timeout: cfg.LEScan.Timeout, FilterDuplicates: cfg.LEScan.FilterDuplicates}
	if d := c.Duration("timeout"); d > 0 {
		opt.Timeout = d
	}
	mode := cfg.LEScan.Mode
	if m := c.String("mode"); m != "" {
		mode = m
	}
	var err error
	if opt.Mode, err = scan.ParseMode(mode); err != nil {
		return err
	}
	sort := cfg.LEScan.Sort
	if s := c.String("sort"); s != "" {
		sort = s
	}
	if opt.Sort, err = scan.ParseSortKey(sort); err != nil {
		return err
	}

	h, err := openController(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	fmt.Printf("LE scanning (%s) for %v...\n", opt.Mode, opt.Timeout)
	started := time.Now()
	res, err := (&scan.LEScanner{C: h}).Scan(ctx, opt)
	if err != nil {
		return err
	}
	vendors := vendorTable()
	for i, d := range res.Devices {
		fmt.Printf("%3d %s (%s)  %s\n", i+1, d.Addr, d.AddrType, vendors.Vendor(d.Addr))
		if d.AddrType == bluing.AddrRandom {
			fmt.Printf("      Random: %s\n", d.Addr.RandomKind())
		}
		if d.HasRSSI {
			fmt.Printf("      RSSI: %d dBm\n", d.RSSI)
		}
		r := d.Report
		if r == nil {
			continue
		}
		fmt.Printf("      Event: %s, connectable: %v\n", r.EventType, r.Connectable)
		if n, ok := r.LocalName(); ok {
			fmt.Printf("      Name: %s\n", n)
		}
		if f, ok := r.Flags(); ok {
			fmt.Printf("      Flags: %s\n", strings.Join(f.Names(), ", "))
		}
		if p, ok := r.TxPower(); ok {
			fmt.Printf("      Tx power: %d dBm\n", p)
		}
		for _, u := range r.Services() {
			fmt.Printf("      UUID: %s\n", bluing.DefaultUUIDNames().Describe(u))
		}
		if company, data, ok := r.ManufacturerData(); ok {
			fmt.Printf("      Manufacturer: 0x%04X [ % X ]\n", company, data)
		}
		for _, err := range r.FieldErrors() {
			fmt.Printf("      ! %v\n", err)
		}
	}
	if res.Partial {
		fmt.Println("(partial)")
	}
	return saveDevices(store.KindLE, started, res.Partial, res.Devices)
}

func cmdDevices(c *cli.Context) error {
	dd, err := linux.Devices()
	if err != nil {
		return err
	}
	for _, d := range dd {
		state := "down"
		if d.Up {
			state = "up"
		}
		fmt.Printf("hci%d  %s  %s  %s\n", d.ID, d.Name, d.Addr, state)
	}
	return nil
}

func cmdInfer(c *cli.Context) error {
	org := c.String("org")
	if org == "" || c.NArg() == 0 {
		return errors.Wrap(bluing.ErrInvalid, "need --org and at least one LOW")
	}
	match := cfg.Infer.Match
	if m := c.String("match"); m != "" {
		match = m
	}
	policy, err := oui.ParsePolicy(match)
	if err != nil {
		return err
	}
	var obs []infer.Observation
	for _, s := range c.Args() {
		o, err := infer.ParseObservation(s)
		if err != nil {
			return err
		}
		o.Time = time.Now()
		obs = append(obs, o)
	}

	started := time.Now()
	e := &infer.Engine{Table: vendorTable(), Policy: policy}
	groups := e.InferGroups(obs, org)
	for _, g := range groups {
		fmt.Printf("%s (%d observations): %d candidates\n", g.Low(), len(g.Observations), len(g.Candidates))
		for _, a := range g.Candidates {
			fmt.Printf("    %s\n", a)
		}
	}

	st, err := openStore()
	if err != nil || st == nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()
	id, err := st.SaveSession(ctx, store.KindInfer, started, time.Now(), false)
	if err != nil {
		return err
	}
	return st.SaveCandidates(ctx, id, groups)
}

// vendorTable is the configured OUI table, or the bundled one when the
// configured file cannot be read.
func vendorTable() *oui.Table {
	if cfg.Infer.OUIFile == "" {
		return oui.Default()
	}
	t, err := oui.LoadFile(cfg.Infer.OUIFile)
	if err != nil {
		fmt.Printf("(using the bundled OUI table: %v)\n", err)
		return oui.Default()
	}
	return t
}

func openStore() (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	return store.Open(cfg.Store.Path)
}

func saveDevices(kind string, started time.Time, partial bool, devs []scan.Device) error {
	st, err := openStore()
	if err != nil || st == nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()
	id, err := st.SaveSession(ctx, kind, started, time.Now(), partial)
	if err != nil {
		return err
	}
	if err := st.SaveDevices(ctx, id, devs); err != nil {
		return err
	}
	fmt.Printf("Stored as session %s\n", id)
	return nil
}
