// Command icachesim is a thin, deliberately minimal entry point: it
// loads a config.Config, reads a placeholder line-oriented trace format
// from stdin or a file, drives a sim.Simulator, and writes the report to
// the configured output path. The real instrumentation harness (Pin,
// eBPF, or similar) that produces a fetch-event stream is out of scope;
// this reader exists only so the simulator is runnable end-to-end.
package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/shyammurthy12/icachesim/config"
	"github.com/shyammurthy12/icachesim/sim"
	"github.com/shyammurthy12/icachesim/trace"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file (defaults used when empty)")
	tracePath := flag.String("trace", "", "path to a trace file (reads stdin when empty)")
	flag.Parse()

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	s, err := sim.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("constructing simulator")
	}
	defer func() {
		if err := s.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("closing simulator")
		}
	}()

	in := os.Stdin
	if *tracePath != "" {
		f, err := os.Open(*tracePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *tracePath).Msg("opening trace file")
		}
		defer f.Close()
		in = f
	}

	if err := run(s, in, &log); err != nil {
		log.Fatal().Err(err).Msg("simulation run failed")
	}

	out, err := os.Create(cfg.OutputPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.OutputPath).Msg("creating report file")
	}
	defer out.Close()

	if err := s.Report(out); err != nil {
		log.Fatal().Err(err).Msg("writing report")
	}
}

func run(s *sim.Simulator, f *os.File, log *zerolog.Logger) error {
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ev, ok := parseFetchLine(scanner.Text())
		if !ok {
			log.Warn().Str("line", scanner.Text()).Msg("skipping malformed trace line")
			continue
		}
		if err := s.Process(ev); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// parseFetchLine reads the placeholder trace format: whitespace-separated
// "addr size control_flow thread_id", e.g. "0x1000 4 direct_call 0".
// A real harness would serialize FetchEvent some other way; this exists
// only as a stand-in (spec.md §1 excludes the instrumentation mechanism
// and any real trace wire format from scope).
func parseFetchLine(line string) (trace.FetchEvent, bool) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return trace.FetchEvent{}, false
	}
	addr, err := strconv.ParseUint(fields[0], 0, 64)
	if err != nil {
		return trace.FetchEvent{}, false
	}
	size, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return trace.FetchEvent{}, false
	}
	cf, ok := parseControlFlow(fields[2])
	if !ok {
		return trace.FetchEvent{}, false
	}
	threadID, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return trace.FetchEvent{}, false
	}
	return trace.FetchEvent{
		Addr:        addr,
		Size:        uint32(size),
		ThreadID:    uint32(threadID),
		ControlFlow: cf,
	}, true
}

func parseControlFlow(s string) (trace.ControlFlow, bool) {
	switch s {
	case "none":
		return trace.None, true
	case "direct_call":
		return trace.DirectCall, true
	case "indirect_call":
		return trace.IndirectCall, true
	case "direct_jump":
		return trace.DirectJump, true
	case "indirect_jump":
		return trace.IndirectJump, true
	case "return":
		return trace.Return, true
	case "syscall":
		return trace.Syscall, true
	default:
		return trace.None, false
	}
}
