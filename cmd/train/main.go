// Command train drives the training pipeline from a shell: one-off runs,
// consume recovery, feedback stats and admin token minting.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/wayfarer-backend/internal/app"
	httpMW "github.com/yungbote/wayfarer-backend/internal/http/middleware"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
	"github.com/yungbote/wayfarer-backend/internal/training"
)

const usage = `usage: train <command> [flags]

commands:
  run        run the pipeline once and print the summary
  consume    mark feedback ids as used (-ids 1,2,3)
  reconcile  settle a partial_failure run (-run <uuid>)
  stats      print feedback counts
  token      mint an admin JWT for the training API
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg, err := app.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, cfg, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "train %s: %v\n", os.Args[1], err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid usage")

func dispatch(ctx context.Context, cfg app.Config, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "token":
		return cmdToken(cfg, args, out)
	case "run", "consume", "reconcile", "stats":
	default:
		return fmt.Errorf("%w: unknown command %q\n%s", errUsage, cmd, usage)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	switch cmd {
	case "run":
		opts, err := parseRunFlags(cfg.Options(), args)
		if err != nil {
			return err
		}
		core, err := app.NewCore(ctx, log, cfg)
		if err != nil {
			return err
		}
		defer core.Close()
		sum, err := core.Driver.Execute(ctx, opts, nil)
		if err != nil {
			var te *training.Error
			if errors.As(err, &te) && te.Kind == training.KindPartialFailure {
				_ = writeJSON(out, map[string]any{"version": te.Version, "example_ids": te.ExampleIDs})
			}
			return err
		}
		return writeJSON(out, sum)
	case "consume":
		ids, err := parseConsumeFlags(args)
		if err != nil {
			return err
		}
		core, err := app.NewCore(ctx, log, cfg)
		if err != nil {
			return err
		}
		defer core.Close()
		n, err := core.Driver.Consume(ctx, ids)
		if err != nil {
			return err
		}
		return writeJSON(out, map[string]any{"requested": len(ids), "marked": n})
	case "reconcile":
		fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		raw := fs.String("run", "", "training run id")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		runID, err := uuid.Parse(strings.TrimSpace(*raw))
		if err != nil {
			return fmt.Errorf("%w: -run must be a uuid", errUsage)
		}
		core, err := app.NewCore(ctx, log, cfg)
		if err != nil {
			return err
		}
		defer core.Close()
		res, err := core.Aggregates.TrainingRun.ResolvePartial(ctx, runID)
		if err != nil {
			return err
		}
		return writeJSON(out, res)
	default: // stats
		core, err := app.NewCore(ctx, log, cfg)
		if err != nil {
			return err
		}
		defer core.Close()
		stats, err := core.Repos.Feedback.Stats(dbctx.Context{Ctx: ctx})
		if err != nil {
			return err
		}
		return writeJSON(out, stats)
	}
}

// parseRunFlags overrides defaults with any flags given.
func parseRunFlags(defaults training.Options, args []string) (training.Options, error) {
	opts := defaults
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Float64Var(&opts.MinScore, "min-score", defaults.MinScore, "minimum feedback score to select")
	fs.IntVar(&opts.Limit, "limit", defaults.Limit, "maximum examples to select")
	fs.Float64Var(&opts.ValidationFraction, "validation-fraction", defaults.ValidationFraction, "share of examples held out for validation")
	fs.Int64Var(&opts.Seed, "seed", defaults.Seed, "partition seed")
	fs.StringVar(&opts.BaseModel, "base-model", defaults.BaseModel, "base model passed to the trainer")
	if err := fs.Parse(args); err != nil {
		return training.Options{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	if opts.Limit <= 0 {
		return training.Options{}, fmt.Errorf("%w: -limit must be positive", errUsage)
	}
	if opts.ValidationFraction <= 0 || opts.ValidationFraction >= 1 {
		return training.Options{}, fmt.Errorf("%w: -validation-fraction must be within (0,1)", errUsage)
	}
	return opts, nil
}

func parseConsumeFlags(args []string) ([]uint64, error) {
	fs := flag.NewFlagSet("consume", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	raw := fs.String("ids", "", "comma separated feedback ids")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	var ids []uint64
	for _, part := range strings.Split(*raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad id %q", errUsage, part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: -ids is required", errUsage)
	}
	return ids, nil
}

func cmdToken(cfg app.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	subject := fs.String("subject", "cli", "token subject")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if strings.TrimSpace(cfg.AdminJWTSecret) == "" {
		return errors.New("JWT_SECRET_KEY is not configured")
	}
	tok, err := httpMW.SignAdminToken(cfg.AdminJWTSecret, *subject, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, tok)
	return err
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
