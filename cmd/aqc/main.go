package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/navikt/asset-query-converter/pkg/config"
	"github.com/navikt/asset-query-converter/pkg/converter"
	"github.com/navikt/asset-query-converter/pkg/errs"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

const (
	envPrefix = "AQC"

	registryWire   = "wire"
	registryNative = "native"
)

type options struct {
	ConfigFile    string
	Input         string
	Output        string
	Statement     string
	Parent        string
	BigQueryQuery string
	Project       string
	Registry      string
}

func (o options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Parent, validation.Required.When(o.Statement != "").Error("is required with --statement")),
		validation.Field(&o.Project, validation.Required.When(o.BigQueryQuery != "").Error("is required with --bigquery-query")),
		validation.Field(&o.BigQueryQuery, validation.Empty.When(o.Statement != "").Error("cannot be combined with --statement")),
		validation.Field(&o.Registry, validation.In(registryWire, registryNative)),
	)
}

func newFlagSet(out io.Writer) (*flag.FlagSet, *options) {
	opts := &options{}

	flags := flag.NewFlagSet("aqc", flag.ContinueOnError)
	flags.SetOutput(out)

	flags.StringVar(&opts.ConfigFile, "config", "", "path to config file, defaults are used when empty")
	flags.StringVarP(&opts.Input, "input", "i", "-", "query response to convert: a file, - for stdin, or a gs:// object or prefix")
	flags.StringVarP(&opts.Output, "output", "o", "-", "where to write the converted rows: a file, - for stdout, or a gs:// object")
	flags.StringVar(&opts.Statement, "statement", "", "run this Cloud Asset Inventory query instead of reading --input")
	flags.StringVar(&opts.Parent, "parent", "", "scope of --statement: projects/<id>, folders/<id> or organizations/<id>")
	flags.StringVar(&opts.BigQueryQuery, "bigquery-query", "", "run this BigQuery query instead of reading --input")
	flags.StringVar(&opts.Project, "project", "", "project to run --bigquery-query in")
	flags.StringVar(&opts.Registry, "registry", registryWire, "decoders to use: wire keeps scalars as JSON friendly values, native decodes to Go types")
	flags.Bool("pretty-print", false, "indent the output")
	flags.Int64("page-size", 0, "rows per page when querying")
	flags.String("log-level", "", "log level")

	return flags, opts
}

func loadConfig(flags *flag.FlagSet, opts *options) (config.Config, error) {
	var name, path string

	if opts.ConfigFile != "" {
		fileParts, err := config.ProcessConfigPath(opts.ConfigFile)
		if err != nil {
			return config.Config{}, err
		}

		name, path = fileParts.FileName, fileParts.Path
	}

	binder := config.Binders{
		config.NewDefaultEnvBinder(),
		config.NewFlagBinder(flags, map[string]string{
			"pretty-print": "output.pretty_print",
			"page-size":    "cloud_asset.page_size",
			"log-level":    "log_level",
		}),
	}

	cfg, err := config.NewFileSystemLoader().Load(name, path, envPrefix, binder)
	if err != nil {
		return config.Config{}, err
	}

	err = cfg.Validate()
	if err != nil {
		return config.Config{}, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func registry(name string) converter.Registry {
	if name == registryNative {
		return converter.NativeRegistry()
	}

	return converter.WireRegistry()
}

// run converts the whole input before writing anything, so a failure never
// leaves partial output behind.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	const op errs.Op = "aqc.run"

	flags, opts := newFlagSet(stderr)

	err := flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}

		return errs.E(errs.InvalidRequest, op, err)
	}

	err = opts.Validate()
	if err != nil {
		return errs.E(errs.InvalidRequest, op, err)
	}

	cfg, err := loadConfig(flags, opts)
	if err != nil {
		return errs.E(errs.Invalid, op, errs.Parameter("config"), err)
	}

	log := newLogger(stderr, cfg.LogLevel)

	conv := converter.New(registry(opts.Registry))

	src := &source{
		cfg:   cfg,
		opts:  opts,
		stdin: stdin,
		log:   log,
	}

	objects := []converter.Object{}

	pages := 0

	for page, err := range src.Pages(ctx) {
		if err != nil {
			return errs.E(op, err)
		}

		converted, err := converter.Collect(conv.QueryResult(page))
		if err != nil {
			log.Debug().Int("page", pages).Msg("converting page failed")

			return errs.E(op, err)
		}

		objects = append(objects, converted...)
		pages++
	}

	log.Debug().Int("pages", pages).Int("rows", len(objects)).Msg("converted query result")

	data, err := converter.Marshal(objects, cfg.Output.PrettyPrint)
	if err != nil {
		return errs.E(errs.Internal, op, err)
	}

	err = (&sink{cfg: cfg, stdout: stdout}).Write(ctx, opts.Output, data)
	if err != nil {
		return errs.E(op, err)
	}

	return nil
}

func newLogger(out io.Writer, level string) zerolog.Logger {
	log := zerolog.New(out).With().Timestamp().Logger()

	l, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Err(err).Msg("parsing log level, using info")

		l = zerolog.InfoLevel
	}

	return log.Level(l)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)

	cancel()

	if err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Error().
			Err(err).
			Str("kind", errs.KindOf(err).String()).
			Str("param", string(errs.ParamOf(err))).
			Strs("stack", errs.OpStack(err)).
			Msg("converting query result")

		os.Exit(1)
	}
}
