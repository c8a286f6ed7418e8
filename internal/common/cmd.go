package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/dustin/go-humanize"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/simkube-go/sk-tracer/internal/log"
)

const (
	// default ratio from the memlimit pkg
	memLimitRatio = 0.9
)

// SetupSignalHandler cancels the returned context on the first SIGTERM or interrupt, and exits on the second one.
func SetupSignalHandler(ctx context.Context) context.Context {
	ret, cancel := context.WithCancel(ctx)

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		logger := log.Logger()

		sig := <-c
		logger.V(1).Info("Signal received to stop", "signal", sig.String())
		cancel()

		<-c
		logger.V(0).Info("Re-receiving stop signal, exit directly")
		os.Exit(1)
	}()

	return ret
}

// TuneRuntime sets GOMAXPROCS and GOMEMLIMIT from the container limits.
func TuneRuntime() error {
	err := setMaxProcs()
	if err != nil {
		return err
	}

	return setMemLimit()
}

func setMaxProcs() error {
	logger := log.Logger()

	// maxprocs uses a logger with parameters: $template, $arg1, $arg2, ... whereas logr has the same signature but different meaning: $msg, $key1, $value1, $key2, $value2, ...
	_, err := maxprocs.Set(maxprocs.Logger(func(msg string, args ...interface{}) {
		logger.Info(fmt.Sprintf(msg, args...))
	}))
	if err != nil {
		return fmt.Errorf("failed to set max procs: %w", err)
	}

	return nil
}

func setMemLimit() error {
	logger := log.Logger()

	limit, err := memlimit.SetGoMemLimit(memLimitRatio)
	if err != nil {
		return fmt.Errorf("failed to set go mem limit: %w", err)
	}

	logger.V(1).Info("Go memlimit configured", "ratio", memLimitRatio, "limit", humanize.IBytes(uint64(limit)))

	return nil
}

// Shutdown calls every CloseFunc, in order, sharing a deadline of gracefulDuration.
// All of them are called even if some fail.
func Shutdown(gracefulDuration time.Duration, closers ...CloseFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), gracefulDuration)
	defer cancel()

	errs := make([]error, 0, len(closers))

	for _, closer := range closers {
		if closer == nil {
			continue
		}

		err := closer(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
