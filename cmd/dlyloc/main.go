// Command dlyloc is a passive, capture-point delay estimator for TCP
// flows. It derives passive-ping RTTs and per-packet delay-variation
// metrics from a stream of captured TCP/IP packets carrying the TCP
// Timestamps option.
//
// Usage:
//
//	dlyloc -i interfacename -m
//	dlyloc -r pcapfilename
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/pollere/dlyloc/adapter/emit"
	"github.com/pollere/dlyloc/adapter/pcap"
	"github.com/pollere/dlyloc/adapter/summary"
	"github.com/pollere/dlyloc/usecase"
)

func main() {
	var (
		iface       = flag.String("i", "", "do live capture from interface `ifname`")
		readFile    = flag.String("r", "", "process capture file `pcap`")
		filterExpr  = flag.String("f", "", "pcap filter `expr` appended to the base 'tcp' filter")
		count       = flag.Int("c", 0, "stop after capturing `num` packets")
		seconds     = flag.Float64("s", 0, "stop after capturing for `num` seconds")
		quiet       = flag.Bool("q", false, "don't print summary reports to stderr")
		verbose     = flag.Bool("v", true, "print summary reports to stderr every sumInt seconds")
		showLocal   = flag.Bool("l", false, "show RTTs through local host applications")
		machine     = flag.Bool("m", false, "machine-readable output")
		sumInt      = flag.Float64("sumInt", 10, "summary report print interval, seconds")
		tsvalMaxAge = flag.Float64("tsvalMaxAge", usecase.DefaultConfig().TsvalMaxAge, "max age of an unmatched tsval, seconds")
		flowMaxIdle = flag.Float64("flowMaxIdle", usecase.DefaultConfig().FlowMaxIdle, "flows idle longer than this are deleted, seconds")
	)
	flag.Parse()

	if flag.NArg() > 0 || (*iface == "" && *readFile == "") || (*iface != "" && *readFile != "") {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] -i interface | -r pcapFile\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *quiet {
		*sumInt = 0
	}
	_ = *verbose // summary reporting is on by default; -v is a no-op flag kept for CLI parity

	bpfFilter := "tcp"
	if *filterExpr != "" {
		bpfFilter = fmt.Sprintf("tcp and (%s)", *filterExpr)
	}

	cfg := usecase.DefaultConfig()
	cfg.TsvalMaxAge = *tsvalMaxAge
	cfg.FlowMaxIdle = *flowMaxIdle
	cfg.FiltLocal = !*showLocal

	var src *pcap.Source
	var err error
	if *iface != "" {
		src, err = pcap.OpenLive(*iface, bpfFilter)
		if err == nil && cfg.FiltLocal {
			cfg.LocalIP = pcap.LocalAddrOf(*iface)
			if cfg.LocalIP == "" {
				cfg.FiltLocal = false
			}
		}
	} else {
		src, err = pcap.OpenOffline(*readFile, bpfFilter)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "couldn't open %s: %v\n", firstNonEmpty(*iface, *readFile), err)
		os.Exit(1)
	}
	defer src.Close()

	writer := emit.NewWriter(os.Stdout, *machine, 0)
	defer writer.Close()

	orch := usecase.NewOrchestrator(cfg, writer)
	rep := summary.Reporter{FlowCount: orch.FlowCount}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		<-sigc
		writer.Close()
		os.Exit(0)
	}()

	var (
		startm     float64
		haveOrigin bool
		nextSum    float64
		nextClean  float64
		pktTotal   int // packets read since start; not reset by summaries
	)

	for {
		raw, epochSec, fracSec, ok := src.Next()
		if !ok {
			break
		}
		capTm := orch.NormalizeCaptureTime(epochSec, fracSec)
		if !haveOrigin {
			haveOrigin = true
			startm = capTm
			writer.SetOrigin(orch.OriginSeconds())
			if *sumInt > 0 {
				log.Printf("first packet at %s", time.Unix(epochSec, 0))
			}
		}
		raw.PI.CapTm = capTm

		orch.ProcessPacket(raw)
		pktTotal++

		if (*seconds > 0 && capTm-startm >= *seconds) || (*count > 0 && pktTotal >= *count) {
			if *sumInt > 0 {
				rep.Print(orch.Counters)
			}
			log.Printf("captured %d packets in %.3f seconds", pktTotal, capTm-startm)
			break
		}

		if *sumInt > 0 && capTm >= nextSum {
			if nextSum > 0 {
				rep.Print(orch.Counters)
				orch.Counters = usecase.Counters{}
			}
			nextSum = capTm + *sumInt
		}

		if capTm >= nextClean {
			orch.AgeOut(capTm)
			nextClean = capTm + cfg.TsvalMaxAge
		}
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
