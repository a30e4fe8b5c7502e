package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/zephyrtronium/lcong/bitseq"
	"github.com/zephyrtronium/lcong/lcg"
	"github.com/zephyrtronium/lcong/metrics"
	"github.com/zephyrtronium/lcong/plot"
	"github.com/zephyrtronium/lcong/spectral"
	"github.com/zephyrtronium/lcong/store"
)

var app = cli.Command{
	Name:  "lcong",
	Usage: "Statistical and spectral tests of linear congruential generators",

	Flags: []cli.Flag{
		&flagConfig,
		&flagLog,
		&flagLogFormat,
		&cli.StringFlag{
			Name:  "x0",
			Usage: "Seed, overriding the config",
		},
		&cli.StringFlag{
			Name:  "a",
			Usage: "Multiplier or range lo:hi, overriding the config",
		},
		&cli.StringFlag{
			Name:  "c",
			Usage: "Increment or range lo:hi, overriding the config",
		},
		&cli.StringFlag{
			Name:  "m",
			Usage: "Modulus or range lo:hi, overriding the config",
		},
		&cli.IntFlag{
			Name:  "dims",
			Usage: "Highest spectral test dimension, overriding the config",
		},
		&cli.IntFlag{
			Name:  "jobs",
			Usage: "Number of parameter sets to evaluate concurrently, overriding the config",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Evaluate parameter sets even if results are stored",
		},
		&cli.StringFlag{
			Name:  "input",
			Usage: "File of binary digits to test in place of generator output",
		},
		&cli.IntFlag{
			Name:  "print",
			Usage: "Number of generator outputs to print for each parameter set",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "spectral",
			Usage: "Run the spectral test for one multiplier and modulus",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "a",
					Usage:    "Multiplier",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "m",
					Usage:    "Modulus",
					Required: true,
				},
				&cli.IntFlag{
					Name:  "dims",
					Usage: "Highest dimension",
					Value: 6,
				},
				&cli.FloatFlag{
					Name:  "merit",
					Usage: "Figure of merit threshold",
					Value: 0.1,
				},
			},
			Action: cliSpectral,
		},
		{
			Name:  "plot",
			Usage: "Render stored results as HTML heat maps",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "axis",
					Usage:    "Parameter to hold fixed, one of a, c, m",
					Required: true,
					Action: func(ctx context.Context, cmd *cli.Command, s string) error {
						_, err := plot.ParseAxis(s)
						return err
					},
				},
				&cli.StringFlag{
					Name:     "value",
					Usage:    "Value of the fixed parameter",
					Required: true,
				},
				&cli.StringFlag{
					Name:  "x0",
					Usage: "Seed of the records to plot",
					Value: "1",
				},
				&cli.StringFlag{
					Name:  "out",
					Usage: "Output HTML file",
					Value: "results.html",
				},
			},
			Action: cliPlot,
		},
		{
			Name:   "serve",
			Usage:  "Serve stored results and spectral tests over HTTP",
			Action: cliServe,
		},
	},
	Action: cliRun,

	Authors: []any{
		"Branden J Brown  @zephyrtronium",
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()
	err := app.Run(ctx, os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(ctx context.Context, cmd *cli.Command) (*Config, error) {
	r, err := os.Open(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("couldn't open config file: %w", err)
	}
	defer r.Close()
	cfg, _, err := Load(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("couldn't load config: %w", err)
	}
	return cfg, nil
}

// overrideSweep applies command-line flags to the sweep table.
func overrideSweep(cmd *cli.Command, cfg *SweepCfg) {
	for name, f := range map[string]*string{"x0": &cfg.X0, "a": &cfg.A, "c": &cfg.C, "m": &cfg.M, "input": &cfg.Input} {
		if cmd.IsSet(name) {
			*f = cmd.String(name)
		}
	}
	if cmd.IsSet("dims") {
		cfg.Dims = int(cmd.Int("dims"))
	}
	if cmd.IsSet("jobs") {
		cfg.Jobs = int(cmd.Int("jobs"))
	}
	if cmd.IsSet("force") {
		cfg.Force = cmd.Bool("force")
	}
}

func cliRun(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	overrideSweep(cmd, &cfg.Sweep)
	x0, a, c, m, err := cfg.Sweep.ranges()
	if err != nil {
		return err
	}
	st, err := loadStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()
	met := metrics.New("lcong")
	sw := &Sweep{
		X0:      x0,
		A:       a,
		C:       c,
		M:       m,
		Dims:    cfg.Sweep.Dims,
		Jobs:    cfg.Sweep.Jobs,
		Force:   cfg.Sweep.Force,
		Merit:   cfg.Thresholds.Merit,
		Limits:  cfg.Limits.Options(),
		Timeout: fseconds(cfg.Limits.Timeout),
		Print:   int(cmd.Int("print")),
		Out:     os.Stdout,
		Store:   st,
		Metrics: met,
	}
	if cfg.Sweep.Input != "" {
		f, err := os.Open(cfg.Sweep.Input)
		if err != nil {
			return fmt.Errorf("couldn't open input: %w", err)
		}
		sw.Bits, err = bitseq.Read(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("couldn't read input: %w", err)
		}
		slog.InfoContext(ctx, "testing bits from file", slog.String("file", cfg.Sweep.Input))
	}
	if cfg.HTTP.Listen == "" {
		return sw.Run(ctx)
	}
	// Serve metrics and results while the sweep runs.
	srv := newServer(st, met, cfg)
	group, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	group.Go(func() error {
		defer cancel()
		return sw.Run(ctx)
	})
	group.Go(func() error {
		return srv.listen(ctx, cfg.HTTP.Listen)
	})
	return group.Wait()
}

func cliSpectral(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	a, err := lcg.ParseValue(cmd.String("a"))
	if err != nil {
		return fmt.Errorf("bad multiplier: %w", err)
	}
	m, err := lcg.ParseValue(cmd.String("m"))
	if err != nil {
		return fmt.Errorf("bad modulus: %w", err)
	}
	res, err := spectral.Run(ctx, a, m, int(cmd.Int("dims")), spectral.Options{})
	if res != nil {
		// The printer groups the digits of ν_t.
		p := message.NewPrinter(language.English)
		p.Println("t\tν_t\tν²_t\tμ_t\tpass")
		for _, d := range dims(res, cmd.Float("merit")) {
			n, _ := res.Norm(d.T)
			p.Printf("%d\t%.6f\t%s\t%.6f\t%t\n", d.T, d.V, n, d.Merit, d.Pass)
		}
	}
	if err != nil {
		return fmt.Errorf("spectral test of a=%d m=%d stopped: %w", a, m, err)
	}
	return nil
}

func cliPlot(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	axis, err := plot.ParseAxis(cmd.String("axis"))
	if err != nil {
		return err
	}
	value, err := lcg.ParseValue(cmd.String("value"))
	if err != nil {
		return fmt.Errorf("bad value: %w", err)
	}
	x0, err := lcg.ParseValue(cmd.String("x0"))
	if err != nil {
		return fmt.Errorf("bad x0: %w", err)
	}
	st, err := loadStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()
	var recs []*store.Record
	for r, err := range st.Records(ctx) {
		if err != nil {
			return err
		}
		if r.Key.X0 == x0 && r.Key.Source == store.SourceLCG {
			recs = append(recs, r)
		}
	}
	g := plot.NewGrid(recs, axis, value)
	if len(g.Cells) == 0 {
		return fmt.Errorf("no results with x0=%d and %s=%d", x0, axis, value)
	}
	out := cmd.String("out")
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("couldn't create plot file: %w", err)
	}
	if err := plot.Render(f, g); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("couldn't write plot file: %w", err)
	}
	slog.InfoContext(ctx, "plot", slog.String("out", out), slog.Int("cells", len(g.Cells)))
	return nil
}

func cliServe(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	if cfg.HTTP.Listen == "" {
		return errors.New("no listen address in config")
	}
	st, err := loadStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()
	return newServer(st, metrics.New("lcong"), cfg).listen(ctx, cfg.HTTP.Listen)
}

var (
	flagConfig = cli.StringFlag{
		Name:       "config",
		Usage:      "TOML config file",
		Persistent: true,
		Action: func(ctx context.Context, cmd *cli.Command, s string) error {
			i, err := os.Stat(s)
			if err != nil {
				return err
			}
			if !i.Mode().IsRegular() {
				return errors.New("config must be a regular file")
			}
			return nil
		},
	}

	flagLog = cli.StringFlag{
		Name:       "log",
		Usage:      "Logging level, one of debug, info, warn, error",
		Value:      "info",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			var l slog.Level
			return l.UnmarshalText([]byte(s))
		},
	}

	flagLogFormat = cli.StringFlag{
		Name:       "log-format",
		Usage:      "Logging format, either text or json",
		Value:      "text",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			switch strings.ToLower(s) {
			case "text", "json":
				return nil
			default:
				return errors.New("unknown logging format")
			}
		},
	}
)

func loggerFromFlags(cmd *cli.Command) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cmd.String("log"))); err != nil {
		panic(err)
	}
	var h slog.Handler
	switch strings.ToLower(cmd.String("log-format")) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	case "json":
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	}
	return slog.New(h)
}
