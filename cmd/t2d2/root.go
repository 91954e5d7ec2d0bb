package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/t2d2ai/t2d2_sdk_go/internal/logging"
	"github.com/t2d2ai/t2d2_sdk_go/internal/telemetry"
	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/storage"
)

type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	cfg    config
	logger *zap.Logger

	// extra client options, appended after the configured ones
	clientOpts []t2d2.Option

	// tracer is set by --trace-endpoint; tests inject a recorder directly.
	tracer    trace.TracerProvider
	telemetry *telemetry.Provider
}

func newApp(out, errOut io.Writer) *app {
	v := viper.New()
	applyDefaults(v)
	return &app{v: v, out: out, errOut: errOut, logger: zap.NewNop()}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "t2d2",
		Short:         "Command-line client for the T2D2 inspection API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			level := "warn"
			if cfg.Verbose {
				level = "debug"
			}
			logger, err := logging.New(logging.Config{Level: level, Format: cfg.LogFormat, Writer: a.errOut})
			if err != nil {
				return err
			}
			a.logger = logger
			if cfg.File != "" {
				logger.Debug("config loaded", zap.String("file", cfg.File))
			}
			if cfg.TraceEndpoint != "" && a.tracer == nil {
				p, err := telemetry.Init(cmd.Context(), telemetry.Config{
					ServiceName: "t2d2-cli",
					Version:     version,
					Endpoint:    cfg.TraceEndpoint,
					Insecure:    cfg.TraceInsecure,
				})
				if err != nil {
					return err
				}
				a.telemetry = p
				a.tracer = p.TracerProvider()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default ~/.t2d2/config.yaml)")
	pf.String("api-url", t2d2.DefaultBaseURL, "T2D2 API root")
	pf.String("api-key", "", "API key")
	pf.String("email", "", "account email (with --password)")
	pf.String("password", "", "account password")
	pf.String("access-token", "", "pre-issued bearer token")
	pf.Int64("project", 0, "active project id")
	pf.String("format", "json", "output format: json or yaml")
	pf.String("log-format", "console", "log format: console or json")
	pf.BoolP("verbose", "v", false, "log requests and failures")
	pf.String("s3-endpoint", "", "S3-compatible storage endpoint (for example the sandbox storage)")
	pf.String("trace-endpoint", "", "OTLP gRPC collector host:port; enables request tracing")
	pf.Bool("trace-insecure", false, "connect to the trace collector without TLS")
	_ = a.v.BindPFlags(pf)

	root.AddCommand(
		projectCmd(a),
		imagesCmd(a),
		annotationsCmd(a),
		classesCmd(a),
		inferCmd(a),
		notifyCmd(a),
		summaryCmd(a),
	)
	return root
}

// client authenticates and, when withProject is set, activates --project.
func (a *app) client(ctx context.Context, withProject bool) (*t2d2.Client, error) {
	opts := []t2d2.Option{
		t2d2.WithBaseURL(a.cfg.APIURL),
		t2d2.WithLogger(a.logger),
		t2d2.WithDebug(a.cfg.Verbose),
		t2d2.WithUserAgent("t2d2-cli/" + version),
	}
	if a.cfg.S3Endpoint != "" {
		opts = append(opts, t2d2.WithS3Config(storage.S3Config{Endpoint: a.cfg.S3Endpoint, PublicRead: true}))
	}
	if a.tracer != nil {
		opts = append(opts, t2d2.WithTracing(a.tracer))
	}
	c, err := t2d2.New(ctx, a.cfg.credentials(), append(opts, a.clientOpts...)...)
	if err != nil {
		return nil, err
	}
	if !withProject {
		return c, nil
	}
	if a.cfg.Project == 0 {
		return nil, fmt.Errorf("%w: pass --project or set T2D2_PROJECT", t2d2.ErrProjectNotSet)
	}
	if err := c.SetProject(ctx, a.cfg.Project); err != nil {
		return nil, err
	}
	return c, nil
}

// close flushes spans exported during the run.
func (a *app) close(ctx context.Context) {
	if a.telemetry == nil {
		return
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("flush traces", zap.Error(err))
	}
}

func (a *app) print(v any) error {
	return writeOutput(a.out, a.cfg.Format, v)
}
