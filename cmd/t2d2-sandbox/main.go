// Command t2d2-sandbox serves an in-memory T2D2 API for local development.
// Point the SDK or the t2d2 CLI at it with the printed exports.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/t2d2ai/t2d2_sdk_go/internal/logging"
	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/fake"
)

type failConfig struct {
	rate float64
	code int
}

func main() {
	addr := flag.String("addr", ":8787", "listen address")
	s3Addr := flag.String("s3-addr", ":8788", "listen address of the S3-compatible storage endpoint")
	seedFile := flag.String("seed", "", "path to YAML or JSON seed file")
	apiKey := flag.String("api-key", "sandbox-key", "API key accepted by the sandbox")
	prefix := flag.String("prefix", fake.DefaultPrefix, "path prefix of the API")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	logFormat := flag.String("log-format", "console", "log format: console or json")
	flag.Parse()

	logger, err := logging.New(logging.Config{Level: "info", Format: *logFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	failCfg, err := parseFailConfig(*fail)
	if err != nil {
		logger.Fatal("parse fail flag", zap.Error(err))
	}

	srv := fake.New(
		fake.WithPrefix(*prefix),
		fake.WithStorageConfig("http://"+sandboxBucket+"."+hostPort(*s3Addr), fake.DefaultRegion),
		fake.WithLatency(*latency),
		fake.WithFailures(failCfg.rate, failCfg.code),
		fake.WithLogger(logger),
	)
	srv.AddAPIKey(*apiKey)
	if *seedFile != "" {
		seed, err := fake.LoadSeed(*seedFile)
		if err != nil {
			logger.Fatal("load seed", zap.Error(err))
		}
		if err := srv.Apply(seed); err != nil {
			logger.Fatal("apply seed", zap.Error(err))
		}
	}

	server := &http.Server{Addr: *addr, Handler: srv}
	objects := &http.Server{Addr: *s3Addr, Handler: srv.StorageHandler()}
	logger.Info("t2d2-sandbox listening",
		zap.String("addr", *addr),
		zap.String("s3_addr", *s3Addr),
		zap.String("bucket", srv.Bucket()),
	)

	fmt.Println()
	for _, line := range exports(*addr, *s3Addr, *prefix, *apiKey) {
		fmt.Println(line)
	}
	fmt.Println()

	errc := make(chan error, 2)
	go func() { errc <- server.ListenAndServe() }()
	go func() { errc <- objects.ListenAndServe() }()
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}

const sandboxBucket = "t2d2-sandbox"

func hostPort(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// exports returns the shell lines that point a client at the sandbox API and
// its storage endpoint. The AWS keys are placeholders; the sandbox does not
// check signatures.
func exports(addr, s3Addr, prefix, apiKey string) []string {
	host := hostPort(addr)
	if p := strings.Trim(prefix, "/"); p != "" {
		host += "/" + p
	}
	return []string{
		fmt.Sprintf("export %s=http://%s/", t2d2.EnvAPIURL, host),
		fmt.Sprintf("export %s=%s", t2d2.EnvAPIKey, apiKey),
		fmt.Sprintf("export %s=http://%s", t2d2.EnvS3Endpoint, hostPort(s3Addr)),
		"export AWS_ACCESS_KEY_ID=" + sandboxBucket,
		"export AWS_SECRET_ACCESS_KEY=" + sandboxBucket,
	}
}

func parseFailConfig(raw string) (failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	cfg := failConfig{code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "rate":
			rate, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return failConfig{}, err
			}
			if rate < 0 || rate > 1 {
				return failConfig{}, fmt.Errorf("fail rate %v outside [0,1]", rate)
			}
			cfg.rate = rate
		case "code":
			code, err := strconv.Atoi(val)
			if err != nil {
				return failConfig{}, err
			}
			cfg.code = code
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", key)
		}
	}
	return cfg, nil
}
