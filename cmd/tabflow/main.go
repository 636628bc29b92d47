// Command tabflow trains tabular models, serves predictions from the stored
// runs and renders holdout reports.
//
//	tabflow train  -config pipeline.yaml [-data path] [-cpuprofile dir]
//	tabflow serve  -config pipeline.yaml [-addr :8080] [-run id|latest] [-form house]
//	tabflow report -run id -out report.svg
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/profile"

	"github.com/YuminosukeSato/tabflow/artifact"
	"github.com/YuminosukeSato/tabflow/pipeline"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/pkg/log"
	"github.com/YuminosukeSato/tabflow/predict"
	"github.com/YuminosukeSato/tabflow/predict/handlers"
	"github.com/YuminosukeSato/tabflow/report"
)

const usage = `usage: tabflow <command> [flags]

commands:
  train    run the training pipeline and store the run
  serve    serve predictions from a stored run
  report   render the holdout report of a stored run
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "tabflow:", err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return flag.ErrHelp
	}
	switch args[0] {
	case "train":
		return train(ctx, args[1:], stdout, stderr)
	case "serve":
		return serve(ctx, args[1:], stderr)
	case "report":
		return renderReport(ctx, args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	fmt.Fprint(stderr, usage)
	return errors.Newf("unknown command %q", args[0])
}

// common holds the flags shared by every command. Flags override the
// environment, which overrides the config file.
type common struct {
	fs          *flag.FlagSet
	config      string
	store       string
	artifactDir string
	loglevel    string
}

func newCommon(name string, stderr io.Writer) *common {
	c := &common{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.SetOutput(stderr)
	c.fs.StringVar(&c.config, "config", "", "pipeline config file (YAML)")
	c.fs.StringVar(&c.store, "store", "", "artifact store: file|sqlite")
	c.fs.StringVar(&c.artifactDir, "artifact-dir", "", "artifact store root directory")
	c.fs.StringVar(&c.loglevel, "loglevel", "", "log level. debug|info|warn|error")
	return c
}

// load reads the config file, applies the environment and then every flag
// that was given on the command line. extra applies command specific flags.
func (c *common) load(stderr io.Writer, extra func(cfg *pipeline.Config, name string)) (pipeline.Config, error) {
	cfg, err := pipeline.LoadConfig(c.config)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "store":
			cfg.Store = c.store
		case "artifact-dir":
			cfg.ArtifactDir = c.artifactDir
		case "loglevel":
			cfg.LogLevel = c.loglevel
		default:
			if extra != nil {
				extra(&cfg, f.Name)
			}
		}
	})
	if _, err := log.SetupLogger(cfg.LogLevel, stderr); err != nil {
		return cfg, errors.NewValidationError("log_level", err.Error(), cfg.LogLevel)
	}
	return cfg, nil
}

func train(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := newCommon("train", stderr)
	data := c.fs.String("data", "", "dataset path (.csv, .csv.gz, .csv.xz, .csv.zst, .zip, .tar, .tar.gz)")
	target := c.fs.String("target", "", "target column")
	strategy := c.fs.String("strategy", "", "model strategy")
	cpuprofile := c.fs.String("cpuprofile", "", "write a CPU profile into this directory")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.load(stderr, func(cfg *pipeline.Config, name string) {
		switch name {
		case "data":
			cfg.DataPath = *data
		case "target":
			cfg.Target = *target
		case "strategy":
			cfg.Strategy = *strategy
		}
	})
	if err != nil {
		return err
	}

	if *cpuprofile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*cpuprofile), profile.Quiet, profile.NoShutdownHook).Stop()
	}

	store, err := artifact.Open(cfg.Store, cfg.ArtifactDir)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := pipeline.New(cfg, store)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\t%s\n", res.RunID, res.Metric)
	return nil
}

func serve(ctx context.Context, args []string, stderr io.Writer) error {
	c := newCommon("serve", stderr)
	addr := c.fs.String("addr", "", "listen address")
	runID := c.fs.String("run", "", "run id to serve, or latest")
	form := c.fs.String("form", "", "input form: "+strings.Join(predict.FormNames(), "|"))
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.load(stderr, func(cfg *pipeline.Config, name string) {
		switch name {
		case "addr":
			cfg.Addr = *addr
		case "run":
			cfg.RunID = *runID
		case "form":
			cfg.Form = *form
		}
	})
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	logger := log.GetLoggerWithName("serve")
	inner, err := artifact.Open(cfg.Store, cfg.ArtifactDir)
	if err != nil {
		return err
	}
	var store artifact.Store = inner
	cached := artifact.NewCachedStore(inner)
	if err := cached.Watch(ctx, cfg.ArtifactDir); err != nil {
		logger.Warn("Serving without artifact cache", log.ErrorKey, err.Error())
	} else {
		store = cached
	}
	defer store.Close()

	surface := predict.NewSurface(store, predict.WithRun(cfg.RunID))
	e, err := handlers.BuildServer(surface, store, cfg.Form, cfg.LogLevel, log.GetLoggerWithName("http"))
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Serving predictions", "http.addr", cfg.Addr, log.RunIDKey, cfg.RunID, "form", cfg.Form)
		errc <- e.Start(cfg.Addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(graceful)
}

func renderReport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := newCommon("report", stderr)
	runID := c.fs.String("run", artifact.Latest, "run id, or latest")
	out := c.fs.String("out", "", "output file; .svg renders a static chart, anything else HTML. Empty writes HTML to stdout")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.load(stderr, nil)
	if err != nil {
		return err
	}

	store, err := artifact.Open(cfg.Store, cfg.ArtifactDir)
	if err != nil {
		return err
	}
	defer store.Close()
	a, err := store.Get(ctx, *runID)
	if err != nil {
		return err
	}

	if *out == "" {
		return report.WriteHTML(stdout, a)
	}
	f, err := os.Create(*out)
	if err != nil {
		return errors.Wrapf(err, "create %s", *out)
	}
	if strings.EqualFold(filepath.Ext(*out), ".svg") {
		err = report.WriteSVG(f, a)
	} else {
		err = report.WriteHTML(f, a)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "close %s", *out)
	}
	return err
}
