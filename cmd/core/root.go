package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fitri99main/itongPOS-sub000/internal/app"
	"github.com/fitri99main/itongPOS-sub000/internal/config"
	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"

	// open builds the core; replaced in tests
	open func(ctx context.Context, cfg *config.Config) (*app.Core, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the itongPOS CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "itongpos",
		Short: "itongPOS core",
		Long:  "Offline transaction queue and sync daemon for the itongPOS register.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := logging.LevelWarn
			if opts.Verbose {
				level = logging.LevelDebug
			}
			logging.Init(cmd.ErrOrStderr(), level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", os.Getenv("POS_CONFIG"), "config file (YAML)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewOfflineCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// openCore loads the configuration and opens the core without starting
// background work.
func (o *RootOptions) openCore(ctx context.Context) (*app.Core, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	open := o.open
	if open == nil {
		open = func(ctx context.Context, cfg *config.Config) (*app.Core, error) {
			return app.New(ctx, cfg, app.Options{})
		}
	}
	core, err := open(ctx, cfg)
	if apperrors.CodeOf(err) == apperrors.ErrRegisterBusy {
		return nil, apperrors.Wrap(apperrors.ErrRegisterBusy,
			"stop the running register or use the desktop API at "+cfg.HTTP.Addr, err)
	}
	return core, err
}

// withCore runs fn against an opened core and closes it afterwards.
func (o *RootOptions) withCore(cmd *cobra.Command, fn func(ctx context.Context, core *app.Core) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	core, err := o.openCore(ctx)
	if err != nil {
		return err
	}
	defer core.Close()
	return fn(ctx, core)
}

// emit writes v as JSON, or calls text for the text format.
func (o *RootOptions) emit(w io.Writer, v interface{}, text func(w io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "itongPOS Core v%s\n", Version)
			return nil
		},
	}
}
