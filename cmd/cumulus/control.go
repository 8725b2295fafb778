package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"go.klb.dev/cumulus/internal/message"
)

var errNothingToSet = errors.New("nothing to set: pass --enabled, --clear-on-paste or --newline")

func newClearCmd() *cobra.Command {
	return clientCommand("clear", "Empty the buffer and the clipboard",
		`Empties the accumulated buffer and the system clipboard.`,
		func(cmd *cobra.Command, v *viper.Viper, c *conn) error {
			ctx, cancel := requestContext(cmd, v)
			defer cancel()
			if _, err := c.Clear(ctx); err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Buffer cleared.")
			return nil
		})
}

func newPasteSignalCmd() *cobra.Command {
	cmd := clientCommand("paste-signal", "Tell the daemon a paste just happened",
		`Reports a paste to the daemon. With accumulation and clear-on-paste on,
the buffer and clipboard are cleared shortly afterwards, giving the paste time
to read them first.

Bind this to the same hotkey as paste, e.g. with skhd:
  cmd - v : cumulus paste-signal --quiet`,
		func(cmd *cobra.Command, v *viper.Viper, c *conn) error {
			ctx, cancel := requestContext(cmd, v)
			defer cancel()
			resp, err := c.PasteSignal(ctx, v.GetString("source"))
			if err != nil {
				return fmt.Errorf("paste-signal: %w", err)
			}
			if v.GetBool("quiet") {
				return nil
			}
			if resp.Scheduled {
				fmt.Fprintf(cmd.OutOrStdout(), "Clear scheduled in %dms.\n", resp.DelayMS)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Ignored: accumulation or clear-on-paste is off.")
			}
			return nil
		})
	cmd.Flags().BoolP("quiet", "q", false, "print nothing")
	return cmd
}

func newSetCmd() *cobra.Command {
	cmd := clientCommand("set", "Change the daemon's toggles",
		`Changes one or more toggles on the running daemon. Only the flags given
are changed:

  cumulus set --enabled=false
  cumulus set --clear-on-paste --newline=false

Disabling empties the buffer but leaves the clipboard alone.`,
		func(cmd *cobra.Command, v *viper.Viper, c *conn) error {
			req, err := setRequest(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd, v)
			defer cancel()
			resp, err := c.SetOptions(ctx, req)
			if err != nil {
				return fmt.Errorf("set: %w", err)
			}
			st := resp.State
			fmt.Fprintf(cmd.OutOrStdout(), "enabled=%s clear_on_paste=%s newline=%s\n",
				onOff(st.Enabled), onOff(st.ClearOnPaste), onOff(st.InsertNewline))
			return nil
		})
	f := cmd.Flags()
	f.Bool("enabled", true, "accumulate clipboard copies")
	f.Bool("clear-on-paste", true, "clear the buffer after each paste signal")
	f.Bool("newline", true, "separate accumulated copies with a newline")
	return cmd
}

// setRequest builds a SetOptionsRequest from the toggle flags given on the
// command line. Values from config or env are ignored so that only what the
// user typed changes.
func setRequest(f *pflag.FlagSet) (*message.SetOptionsRequest, error) {
	req := &message.SetOptionsRequest{}
	for name, dst := range map[string]**bool{
		"enabled":        &req.Enabled,
		"clear-on-paste": &req.ClearOnPaste,
		"newline":        &req.InsertNewline,
	} {
		if !f.Changed(name) {
			continue
		}
		b, err := f.GetBool(name)
		if err != nil {
			return nil, err
		}
		*dst = message.Bool(b)
	}
	if req.Empty() {
		return nil, errNothingToSet
	}
	return req, nil
}
