package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/output"
	"github.com/tanq16/hoard/internal/scheduler"
	"gopkg.in/yaml.v3"
)

type BatchEntry struct {
	Link   string   `yaml:"link"`
	Keys   []string `yaml:"keys,omitempty"`
	Data   string   `yaml:"data,omitempty"`
	Remove bool     `yaml:"remove,omitempty"`
}

// BatchFile maps a format name to its entries.
type BatchFile map[string][]BatchEntry

type actionQueue interface {
	AddAction(a action.Action) (scheduler.TaskSnapshot, error)
}

type actionBuilder func(format, contentID string, keys []action.SubKey, data []byte, remove bool) (action.Action, error)

func newBatchCmd() *cobra.Command {
	var run bool

	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Queue many actions from a YAML file",
		Long: `Queue actions listed in a YAML file keyed by format:

  hls:
    - link: https://example.com/show/master.m3u8
      keys: ["0.0.0", "0.0.2"]
  s3:
    - link: s3://mybucket/shows/episode-1
    - link: s3://mybucket/shows/episode-0
      remove: true`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				output.PrintError(fmt.Sprintf("Error reading YAML file: %v", err))
				os.Exit(1)
			}
			batchFile, err := parseBatch(data)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			s, err := openSession()
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			actions, errs := buildActions(batchFile, s.newAction)
			for _, err := range errs {
				output.PrintWarning(fmt.Sprintf("Skipping: %v", err))
			}
			if len(actions) == 0 {
				finish(s, fmt.Errorf("no valid actions found in the batch file"))
				return
			}
			queued, errs := queueActions(s.manager, actions)
			for _, err := range errs {
				output.PrintWarning(fmt.Sprintf("Skipping %v", err))
			}
			output.PrintSuccess(fmt.Sprintf("Queued %d of %d action(s)", queued, len(actions)))
			finish(s, nil)
			if !run {
				return
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := runQueue(ctx, false); err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
		},
	}

	cmd.Flags().BoolVar(&run, "run", false, "Process the queue after adding the batch")
	return cmd
}

func parseBatch(data []byte) (BatchFile, error) {
	var batchFile BatchFile
	if err := yaml.Unmarshal(data, &batchFile); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	return batchFile, nil
}

// buildActions turns the batch into actions in a stable order: formats by
// name, entries as listed. Invalid entries are reported and skipped.
func buildActions(batchFile BatchFile, build actionBuilder) ([]action.Action, []error) {
	formats := make([]string, 0, len(batchFile))
	for format := range batchFile {
		formats = append(formats, format)
	}
	slices.Sort(formats)

	var actions []action.Action
	var errs []error
	for _, format := range formats {
		name := strings.ToLower(strings.TrimSpace(format))
		for i, entry := range batchFile[format] {
			if entry.Link == "" {
				errs = append(errs, fmt.Errorf("%s entry %d: empty link", format, i+1))
				continue
			}
			if entry.Remove && len(entry.Keys) > 0 {
				errs = append(errs, fmt.Errorf("%s entry %d: remove takes no keys", format, i+1))
				continue
			}
			keys, err := action.ParseSubKeys(entry.Keys)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s entry %d: %w", format, i+1, err))
				continue
			}
			var data []byte
			if entry.Data != "" {
				data = []byte(entry.Data)
			}
			a, err := build(name, entry.Link, keys, data, entry.Remove)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s entry %d: %w", format, i+1, err))
				continue
			}
			actions = append(actions, a)
		}
	}
	return actions, errs
}

// queueActions hands every action, adds and removes alike, to the queue and
// returns how many were accepted.
func queueActions(q actionQueue, actions []action.Action) (int, []error) {
	queued := 0
	var errs []error
	for _, a := range actions {
		if _, err := q.AddAction(a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.ContentID, err))
			continue
		}
		queued++
	}
	return queued, errs
}
