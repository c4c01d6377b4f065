package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/testweave/internal/a2a"
	"github.com/dusk-indust/testweave/internal/agent"
	"github.com/dusk-indust/testweave/internal/mcptools"
	"github.com/dusk-indust/testweave/internal/pipeline"
	"github.com/dusk-indust/testweave/internal/status"
)

var serveFlags struct {
	http        string
	addr        string
	metricsAddr string
}

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve the synthesis and generation tools over MCP",
	Long: `Starts an MCP server over stdin/stdout, or over streamable HTTP with --http.
Generation tools are available when providers are configured; the
sanitize, validate and merge tools always are.`,
	Args: cobra.NoArgs,
	RunE: runServeMCP,
}

var serveA2ACmd = &cobra.Command{
	Use:   "serve-a2a",
	Short: "Expose suite generation as an A2A agent",
	Long: `Starts an A2A JSON-RPC server. Each message/send names one Go source file,
relative to the project root, and completes with the verified suite as an
artifact. Prometheus metrics are served on --metrics-addr when set.`,
	Args: cobra.NoArgs,
	RunE: runServeA2A,
}

func init() {
	serveMCPCmd.Flags().StringVar(&serveFlags.http, "http", "", "listen address for streamable HTTP instead of stdio")
	serveA2ACmd.Flags().StringVar(&serveFlags.addr, "addr", "127.0.0.1:8741", "listen address")
	serveA2ACmd.Flags().StringVar(&serveFlags.metricsAddr, "metrics-addr", "", "listen address for /metrics")
}

func runServeMCP(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	ledger, err := a.openLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	opts := []mcptools.ServiceOption{mcptools.WithLedger(ledger), mcptools.WithLogger(a.logger)}
	sess, err := a.newSession(ctx)
	switch {
	case errors.Is(err, errNoProviders):
		a.logger.Warn("testweave: generate_suite disabled", zap.Error(err))
	case err != nil:
		return err
	default:
		opts = append(opts, mcptools.WithPipeline(a.pipelineFactory(sess, pipeline.Config{})))
	}

	server := mcptools.NewServer(mcptools.NewService(a.root, opts...))
	if serveFlags.http != "" {
		a.logger.Info("testweave: mcp over http", zap.String("addr", serveFlags.http))
		return mcptools.RunHTTP(ctx, server, serveFlags.http)
	}
	return mcptools.RunStdio(ctx, server)
}

func runServeA2A(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	sess, err := a.newSession(ctx)
	if err != nil {
		return err
	}

	ledger, err := a.openLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	factory := a.pipelineFactory(sess, pipeline.Config{})
	srv := a2a.NewServer(agent.Card(version), a2a.NewAgent(a.processMessage(factory, ledger)),
		a2a.WithServerLogger(a.logger))
	bound, err := srv.Start(ctx, serveFlags.addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "testweave agent listening on http://%s\n", bound)

	if serveFlags.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(sess.metrics.Registry, promhttp.HandlerOpts{}))
		ms := &http.Server{Addr: serveFlags.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("testweave: metrics server", zap.Error(err))
			}
		}()
		defer func() { _ = ms.Shutdown(context.Background()) }()
	}

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return srv.Stop(shutdownCtx)
}

// processMessage runs one pipeline per A2A message. The message text is the
// source path; the completed task carries the suite body.
func (a *app) processMessage(factory pipeline.Factory, ledger *status.Ledger) a2a.ProcessFunc {
	return func(ctx context.Context, msg a2a.Message) ([]a2a.Artifact, error) {
		path := strings.TrimSpace(msg.Text())
		if path == "" {
			return nil, errors.New("message must name a source file")
		}
		data, err := os.ReadFile(filepath.Join(a.root, path))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		p, err := factory()
		if err != nil {
			return nil, err
		}
		res, runErr := p.Run(ctx, path, string(data))
		if res != nil {
			if err := ledger.Record(ctx, status.FromResult(res, runErr)); err != nil {
				a.logger.Warn("testweave: record run", zap.String("run", res.RunID), zap.Error(err))
			}
		}
		if runErr != nil {
			return nil, runErr
		}
		if !res.Verified {
			return nil, fmt.Errorf("%s: suite not verified (%s after %d attempts)", path, res.Phase, res.Attempts)
		}
		return []a2a.Artifact{a2a.NewArtifact(res.Artifact.FileName(), a2a.Part{
			Text:      res.Artifact.Body,
			Filename:  res.Artifact.FileName(),
			MediaType: "text/x-go",
		})}, nil
	}
}
