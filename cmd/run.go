package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/hoard/internal/output"
	"github.com/tanq16/hoard/internal/scheduler"
	"github.com/tanq16/hoard/internal/utils"
)

func newRunCmd() *cobra.Command {
	var keepAlive bool
	var logFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the queue until it is idle",
		Long: `Start downloads and removals for everything queued. The command returns
once every task has completed, failed or been removed, or on interrupt.
Interrupted downloads stay queued and resume on the next run.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err != nil {
					output.PrintError(err.Error())
					os.Exit(1)
				}
				defer f.Close()
				utils.SetLogOutput(f)
			}
			if err := runQueue(ctx, keepAlive); err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
		},
	}

	cmd.Flags().BoolVar(&keepAlive, "keep-alive", false, "Keep running after the queue is idle until interrupted")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
	return cmd
}

func runQueue(ctx context.Context, keepAlive bool) error {
	idle := make(chan struct{}, 1)
	watcher := &scheduler.ListenerFuncs{
		Idle: func() {
			select {
			case idle <- struct{}{}:
			default:
			}
		},
	}
	var source func() []scheduler.TaskSnapshot
	display := output.NewDisplay(os.Stdout, func() []scheduler.TaskSnapshot {
		if source == nil {
			return nil
		}
		return source()
	})
	s, err := openSession(display, watcher)
	if err != nil {
		return err
	}
	source = s.manager.Tasks
	display.StartDisplay()
	err = s.manager.StartDownloads()
	if err == nil {
		if keepAlive {
			<-ctx.Done()
		} else {
			select {
			case <-idle:
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			log.Info().Str("op", "cmd/run").Msg("interrupted, pending work stays queued")
		}
	}
	if cerr := s.close(); err == nil {
		err = cerr
	}
	display.StopDisplay()
	return err
}
