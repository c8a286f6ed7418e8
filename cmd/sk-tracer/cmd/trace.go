package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/simkube-go/sk-tracer/internal/common"
	"github.com/simkube-go/sk-tracer/internal/config"
	"github.com/simkube-go/sk-tracer/internal/domain/entity"
	"github.com/simkube-go/sk-tracer/internal/factory"
	"github.com/simkube-go/sk-tracer/internal/log"
	"github.com/simkube-go/sk-tracer/internal/trace"
	"github.com/simkube-go/sk-tracer/internal/version"
)

var conf *config.Config

// traceCmd represents the trace command
var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Watch the tracked kubernetes objects and record their history",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		conf, err = config.Parse(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to parse config %s: %w", cfgFile, err)
		}

		// Init logger
		err = log.Init(conf.Logs)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}

		logger := log.Logger()

		// Dump generic information
		logger.Info("Starting sk-tracer",
			"version", version.Info(),
			"buildContext", version.BuildContext(),
		)
		logger.Info("Using config", "config", fmt.Sprintf("%+v", *conf))

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.Logger()

		// Set max procs and max memory based on container limits
		err := common.TuneRuntime()
		if err != nil {
			logger.Error(err, "failed to tune runtime")

			return err
		}

		// Listen to sigterm and interrupt signals
		ctx := common.SetupSignalHandler(context.Background())

		err = run(ctx, *conf)
		if err != nil {
			logger.Error(err, "Tracing stopped with an error")

			return err
		}

		logger.V(2).Info("Tracing stopped")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
}

func run(ctx context.Context, conf config.Config) error {
	logger := log.Logger()
	clock := clockwork.NewRealClock()

	registry := factory.CreateRegistry()

	// Kubernetes
	client, mapper, err := factory.CreateKubeClients(conf.Kubernetes)
	if err != nil {
		return err
	}

	// Journal
	journal, closeJournal, err := factory.CreateJournal(ctx, conf.Journal)
	if err != nil {
		return fmt.Errorf("failed to create journal: %w", err)
	}

	// Tracer
	tracer := trace.NewTracer(trackedObjects(conf.Tracer), clock).
		WithRetention(conf.Tracer.Retention).
		WithLogger(logger.WithName("tracer"))

	if journal != nil {
		tracer = tracer.WithJournal(journal)
	}

	recorder, err := factory.DecorateRecorder(tracer, registry, clock)
	if err != nil {
		return errors.Join(err, common.Shutdown(conf.GracefulDuration, closeJournal))
	}

	// Watcher
	watcher, err := factory.CreateWatcher(ctx, conf.Tracer, client, mapper, recorder, registry, clock)
	if err != nil {
		return errors.Join(err, common.Shutdown(conf.GracefulDuration, closeJournal))
	}

	// Exporter
	var exporter *trace.Exporter

	if conf.Export.Enabled() {
		writer, err := factory.CreateTraceWriter(ctx, conf.Export.S3)
		if err != nil {
			return errors.Join(err, common.Shutdown(conf.GracefulDuration, closeJournal))
		}

		exporter = trace.NewExporter(tracer, writer, clock, conf.Export.Interval).
			WithLogger(logger.WithName("exporter"))
	}

	// Metrics server
	server := factory.CreateMetricsServer(conf.Metrics, registry)

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "Metrics server failed")
		}
	}()

	// Run watcher and exporter until the first of them stops
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return watcher.Start(groupCtx)
	})

	if exporter != nil {
		group.Go(func() error {
			return exporter.Start(groupCtx)
		})
	}

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	return errors.Join(err, common.Shutdown(conf.GracefulDuration, server.Shutdown, closeJournal))
}

func trackedObjects(conf config.Tracer) []entity.TrackedObject {
	ret := make([]entity.TrackedObject, 0, len(conf.TrackedObjects))

	for _, obj := range conf.TrackedObjects {
		ret = append(ret, entity.TrackedObject{
			APIVersion: obj.APIVersion,
			Kind:       obj.Kind,
			StripPaths: obj.StripPaths,
		})
	}

	return ret
}
