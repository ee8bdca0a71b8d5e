// Command psmctl runs one connector operation against a PSM appliance and
// prints its JSON result.
//
// Usage:
//
//	psmctl [-config file] [-params json] [-p key=value ...] <operation>
//
// Appliance, session store and logging settings come from PSM_* environment
// variables, optionally overlaid by a YAML file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/bcnelson/psm-connector/internal/config"
	"github.com/bcnelson/psm-connector/internal/logctx"
	"github.com/bcnelson/psm-connector/internal/operation"
	"github.com/bcnelson/psm-connector/internal/psm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// paramFlags collects repeated -p key=value flags.
type paramFlags []string

func (p *paramFlags) String() string { return strings.Join(*p, ",") }

func (p *paramFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	*p = append(*p, v)
	return nil
}

// invocation is the parsed command line.
type invocation struct {
	configFile string
	operation  string
	params     operation.Params
}

func parseArgs(args []string, stderr io.Writer) (*invocation, error) {
	fs := flag.NewFlagSet("psmctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", os.Getenv("PSM_CONFIG_FILE"), "YAML configuration file overlaid on the environment")
	paramsJSON := fs.String("params", "", "operation parameters as a JSON object")
	var kv paramFlags
	fs.Var(&kv, "p", "operation parameter as key=value (repeatable)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: psmctl [-config file] [-params json] [-p key=value ...] <operation>")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "operations: %s\n", strings.Join(operation.Names(), ", "))
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("exactly one operation is required")
	}

	params, err := operation.DecodeParams([]byte(*paramsJSON))
	if err != nil {
		return nil, err
	}
	for _, pair := range kv {
		k, v, _ := strings.Cut(pair, "=")
		params[strings.TrimSpace(k)] = v
	}

	return &invocation{configFile: *configFile, operation: fs.Arg(0), params: params}, nil
}

// newLogger builds the stderr logger described by the configuration.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(logctx.NewHandler(h))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	inv, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "psmctl: %v\n", err)
		return 2
	}

	cfg, err := config.LoadFile(inv.configFile)
	if err != nil {
		fmt.Fprintf(stderr, "psmctl: failed to load configuration: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Log, stderr)
	ctx = logctx.WithInvocation(ctx, &logctx.Invocation{
		ID:        uuid.New().String(),
		Operation: inv.operation,
		ConfigID:  cfg.Appliance.SessionKey(),
	})

	result, err := execute(ctx, cfg, inv, logger)
	if err != nil {
		fmt.Fprintf(stderr, "psmctl: %s: %v\n", inv.operation, err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(stderr, "psmctl: encoding result: %v\n", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, cfg *config.Config, inv *invocation, logger *slog.Logger) (any, error) {
	if _, ok := operation.Lookup(inv.operation); !ok {
		return nil, fmt.Errorf("unsupported operation %q", inv.operation)
	}

	store, err := openStore(ctx, cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	defer store.Close()

	client := psm.New(cfg.Appliance, store, psm.WithLogger(logger))
	return operation.Run(ctx, operation.NewEnv(client, logger), inv.operation, inv.params)
}
