//go:build linux

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/att"
	"github.com/XC-/bluing/feature"
	"github.com/XC-/bluing/gatt"
	"github.com/XC-/bluing/linux"
	"github.com/XC-/bluing/sdp"
	"github.com/XC-/bluing/smp"
)

// connectTimeout bounds L2CAP connection setup.
const connectTimeout = 20 * time.Second

func dialCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, connectTimeout)
}

func cmdSDP(c *cli.Context) error {
	addr, _, err := targetArg(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if err := prepareController(ctx); err != nil {
		return err
	}
	dctx, dcancel := dialCtx(ctx)
	conn, err := linux.DialL2CAP(dctx, addr, bluing.AddrPublic, false, linux.PSMSDP, 0)
	dcancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	cl := &sdp.Client{T: conn, Decoder: sdp.Decoder{MaxDepth: cfg.SDP.MaxNesting}}
	res, err := cl.BrowseAll(ctx)
	if res != nil {
		for i, r := range res.Records {
			fmt.Printf("Record %d\n", i)
			for _, l := range r.Describe() {
				fmt.Printf("    %s\n", l)
			}
		}
		for _, e := range res.Errors {
			fmt.Printf("! %v\n", e)
		}
	}
	return chkErr(err)
}

func cmdGATT(c *cli.Context) error {
	addr, typ, err := targetArg(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if err := prepareController(ctx); err != nil {
		return err
	}
	dctx, dcancel := dialCtx(ctx)
	conn, err := linux.DialL2CAP(dctx, addr, typ, true, 0, linux.CIDATT)
	dcancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	cl := att.NewClient(conn)
	if _, err := cl.ExchangeMTU(ctx, att.MaxMTU); err != nil {
		fmt.Printf("(MTU exchange failed: %v)\n", err)
	}
	w := &gatt.Walker{Client: cl, RequestTimeout: cfg.GATT.RequestTimeout}
	svcs, err := w.DiscoverAll(ctx)
	for _, s := range svcs {
		fmt.Printf("Service %d  0x%04X-0x%04X  %s %s\n", s.Index, s.Handle, s.EndHandle, s.UUID, s.Name)
		if s.Err != nil {
			fmt.Printf("    ! %v\n", s.Err)
		}
		for _, ch := range s.Characteristics {
			fmt.Printf("    Characteristic %d  0x%04X  %s %s  [%s]\n", ch.Index, ch.ValueHandle, ch.UUID, ch.Name, ch.Properties)
			fmt.Printf("        Value (%s): %s\n", ch.Status, formatValue(ch.Value, ch.Err))
			for _, d := range ch.Descriptors {
				fmt.Printf("        Descriptor 0x%04X  %s %s (%s): %s\n", d.Handle, d.UUID, d.Name, d.Status, formatValue(d.Value, d.Err))
			}
		}
	}
	return chkErr(err)
}

func formatValue(v []byte, err error) string {
	if err != nil {
		return err.Error()
	}
	printable := len(v) > 0
	for _, b := range v {
		if b < 0x20 || b > 0x7E {
			printable = false
			break
		}
	}
	if printable {
		return fmt.Sprintf("%q", v)
	}
	return fmt.Sprintf("[ % X ]", v)
}

func cmdLMP(c *cli.Context) error {
	addr, _, err := targetArg(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	h, err := openController(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	pages, err := (&feature.Scanner{C: h}).ReadLMP(ctx, addr)
	for _, fs := range pages {
		printFeatures(fs)
	}
	return chkErr(err)
}

func cmdLL(c *cli.Context) error {
	addr, typ, err := targetArg(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	h, err := openController(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	fs, err := (&feature.Scanner{C: h}).ReadLL(ctx, addr, typ)
	if err != nil {
		return chkErr(err)
	}
	printFeatures(fs)
	return nil
}

func printFeatures(fs feature.FeatureSet) {
	fmt.Printf("%s page %d: [ % X ]\n", fs.Kind, fs.Page, fs.Raw)
	for _, b := range fs.Bits {
		if b.Reserved && !b.Supported {
			continue
		}
		fmt.Printf("    %2d %-45s %v\n", b.Index, b.Name, b.Supported)
	}
}

func cmdSMP(c *cli.Context) error {
	addr, typ, err := targetArg(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if err := prepareController(ctx); err != nil {
		return err
	}
	dctx, dcancel := dialCtx(ctx)
	conn, err := linux.DialL2CAP(dctx, addr, typ, true, 0, linux.CIDSMP)
	dcancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	p, err := smp.Probe(ctx, conn, smp.DefaultRequest)
	if err != nil {
		return chkErr(err)
	}
	fmt.Printf("IO capability:   %s\n", p.IOCapability)
	fmt.Printf("OOB data:        %s\n", p.OOB)
	fmt.Printf("AuthReq:         %s\n", strings.Join(p.AuthReq.Names(), ", "))
	fmt.Printf("Max key size:    %d\n", p.MaxEncKeySize)
	fmt.Printf("Initiator keys:  %s\n", p.InitiatorKeyDist)
	fmt.Printf("Responder keys:  %s\n", p.ResponderKeyDist)
	return nil
}
