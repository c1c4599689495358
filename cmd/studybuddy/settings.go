package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/studybuddy/internal/config"
	"github.com/kalambet/studybuddy/internal/settings"
)

var showFormat string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and change the stored user settings",
}

// withSettings runs fn against the configured store.
func withSettings(fn func(store *settings.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, closeFn, err := openSettings(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(store)
}

// loadForDisplay returns the stored document, warning when storage could
// not be reached and the defaults are shown instead.
func loadForDisplay(cmd *cobra.Command, store *settings.Store) (settings.Document, error) {
	doc, err := store.Load(cmd.Context())
	if err != nil {
		if doc == nil {
			return nil, err
		}
		printWarning("showing defaults: %v", err)
	}
	return doc, nil
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(store *settings.Store) error {
			doc, err := loadForDisplay(cmd, store)
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), doc, showFormat)
		})
	},
}

func writeDocument(w io.Writer, doc settings.Document, format string) error {
	switch format {
	case "json", "":
		b, err := settings.Encode(doc)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any(doc)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting; nested keys use dots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(store *settings.Store) error {
			doc, err := loadForDisplay(cmd, store)
			if err != nil {
				return err
			}
			v, ok := doc.Lookup(args[0])
			if !ok {
				return fmt.Errorf("setting %q not found", args[0])
			}
			if s, ok := v.(string); ok {
				fmt.Fprintln(cmd.OutOrStdout(), s)
				return nil
			}
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting. The value is parsed as JSON when possible and
stored as a plain string otherwise.

Examples:
  studybuddy settings set grade 7
  studybuddy settings set notifications false
  studybuddy settings set reminders.hour 8
  studybuddy settings set theme dark`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, raw := args[0], args[1]
		return withSettings(func(store *settings.Store) error {
			value := settings.ParseValue(raw)
			if _, err := store.Update(cmd.Context(), func(d settings.Document) error {
				return d.SetPath(key, value)
			}); err != nil {
				return err
			}
			printSuccess("Set %s = %s", key, raw)
			return nil
		})
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(store *settings.Store) error {
			if _, err := store.Reset(cmd.Context()); err != nil {
				return err
			}
			printSuccess("Settings reset to defaults")
			return nil
		})
	},
}

var settingsWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show which backend and location hold the settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(store *settings.Store) error {
			fmt.Fprintf(cmd.OutOrStdout(), "backend: %s\n", store.Backend().Name())
			target, err := store.Target(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "target:  %s\n", target)
			return nil
		})
	},
}

var settingsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the settings every time they change on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return withSettings(func(store *settings.Store) error {
			out := cmd.OutOrStdout()
			return store.Watch(ctx, func(doc settings.Document, err error) {
				if err != nil {
					printWarning("%v", err)
				}
				if doc == nil {
					return
				}
				b, encErr := json.Marshal(doc)
				if encErr != nil {
					printError("%v", encErr)
					return
				}
				fmt.Fprintln(out, string(b))
			})
		})
	},
}

func init() {
	settingsShowCmd.Flags().StringVar(&showFormat, "format", "json", "output format: json or yaml")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	settingsCmd.AddCommand(settingsWhereCmd)
	settingsCmd.AddCommand(settingsWatchCmd)
}
