package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cumulus/internal/logging"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and CUMULUS_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → CUMULUS_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("cumulus")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/cumulus/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "cumulus"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("CUMULUS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	logging.Setup(
		logging.ParseFormat(v.GetString("log-format")),
		logging.Resolve(interactive, v.GetString("log-level")),
	)
}

// runKeys are the config-file keys of "cumulus run", in output order.
var runKeys = []struct {
	name string
	kind string // bool, duration or string
}{
	{"enabled", "bool"},
	{"clear-on-paste", "bool"},
	{"newline", "bool"},
	{"poll-interval", "duration"},
	{"paste-delay", "duration"},
	{"backend", "string"},
	{"listen", "string"},
	{"token", "string"},
	{"no-ipc", "bool"},
	{"log-format", "string"},
	{"log-level", "string"},
}

func newConfigCmd() *cobra.Command {
	run := newRunCmd()
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective daemon configuration as TOML",
		Long: `Resolves the settings "cumulus run" would start with (defaults, config file,
CUMULUS_* env vars) and prints them as TOML, ready to save as cumulus.toml.
The token is masked unless --show-token is given.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindViper(cmd, v); err != nil {
				return err
			}
			return v.BindPFlags(run.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			showToken, _ := cmd.Flags().GetBool("show-token")
			if file := v.ConfigFileUsed(); file != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# from %s\n", file)
			}
			return writeConfig(cmd.OutOrStdout(), v, showToken)
		},
	}
	cmd.Flags().Bool("show-token", false, "print the token instead of masking it")
	addConfigFlag(cmd)
	return cmd
}

// writeConfig encodes the run keys resolved by v as TOML.
func writeConfig(w io.Writer, v *viper.Viper, showToken bool) error {
	enc := toml.NewEncoder(w)
	for _, k := range runKeys {
		var val any
		switch k.kind {
		case "bool":
			val = v.GetBool(k.name)
		case "duration":
			val = v.GetDuration(k.name).String()
		default:
			s := v.GetString(k.name)
			if k.name == "token" && s != "" && !showToken {
				s = "********"
			}
			val = s
		}
		if err := enc.Encode(map[string]any{k.name: val}); err != nil {
			return fmt.Errorf("encode %s: %w", k.name, err)
		}
	}
	return nil
}
