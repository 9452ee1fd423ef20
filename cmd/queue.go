package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/output"
	"github.com/tanq16/hoard/internal/scheduler"
	"github.com/tanq16/hoard/internal/utils"
)

func newAddCmd() *cobra.Command {
	var keys []string
	var data string

	cmd := &cobra.Command{
		Use:   "add [FORMAT] [CONTENT_ID]",
		Short: "Queue content for download",
		Long: `Queue content, or more keys of queued content, for download.
Keys are PERIOD.GROUP.TRACK triples; without --keys every key is downloaded.
Nothing is fetched until "hoard run".

Examples:
  hoard add hls https://example.com/stream/master.m3u8 --keys 0.0.1
  hoard add s3 s3://mybucket/shows/episode-1 --profile media`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			subKeys, err := action.ParseSubKeys(keys)
			if err != nil {
				output.PrintError(fmt.Sprintf("Invalid keys: %v", err))
				os.Exit(1)
			}
			s, err := openSession()
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			a, err := s.newAction(args[0], args[1], subKeys, []byte(data), false)
			if err == nil {
				var snap scheduler.TaskSnapshot
				if snap, err = s.manager.AddAction(a); err == nil {
					output.PrintTasks(os.Stdout, []scheduler.TaskSnapshot{snap})
				}
			}
			finish(s, err)
		},
	}

	cmd.Flags().StringSliceVarP(&keys, "keys", "K", nil, "Sub keys to download (PERIOD.GROUP.TRACK), comma separated")
	cmd.Flags().StringVar(&data, "data", "", "Opaque data stored with the action")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "remove [CONTENT_ID]",
		Short: "Queue removal of downloaded content",
		Long: `Queue removal of everything cached for the content.
Content that is no longer queued, for example because it completed in an
earlier run, needs its format.

Examples:
  hoard remove https://example.com/stream/master.m3u8
  hoard remove s3://mybucket/shows/episode-1 --format s3`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s, err := openSession()
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			snap, err := s.manager.RemoveAction(format, args[0])
			if err == nil {
				output.PrintTasks(os.Stdout, []scheduler.TaskSnapshot{snap})
			}
			finish(s, err)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Content format, defaults to the format of the queued task")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show queued tasks",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			s, err := openSession()
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			tasks := s.manager.Tasks()
			output.PrintTasks(os.Stdout, tasks)
			var used int64
			for _, t := range tasks {
				n, err := s.cache.Usage(t.Action.ContentID)
				if err != nil {
					finish(s, err)
					return
				}
				used += n
			}
			output.PrintInfo(fmt.Sprintf("Cache at %s holds %s for listed content", s.cache.Root(), utils.FormatBytes(uint64(used))))
			finish(s, nil)
		},
	}
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop completed and failed tasks from the queue",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			s, err := openSession()
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			n, err := s.manager.Prune()
			if err == nil {
				output.PrintSuccess(fmt.Sprintf("Pruned %d task(s)", n))
			}
			finish(s, err)
		},
	}
}

// finish releases the session and exits non-zero if err or the release failed.
func finish(s *session, err error) {
	if cerr := s.close(); err == nil {
		err = cerr
	}
	if err != nil {
		output.PrintError(err.Error())
		os.Exit(1)
	}
}
