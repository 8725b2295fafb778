package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cumulus/internal/message"
)

// previewRunes bounds the buffer preview in human-readable output.
const previewRunes = 50

func newStatusCmd() *cobra.Command {
	cmd := clientCommand("status", "Show the daemon's toggles and buffer",
		`Displays the accumulator state of the running daemon.

The request goes over the local IPC socket unless --server is given.`,
		func(cmd *cobra.Command, v *viper.Viper, c *conn) error {
			ctx, cancel := requestContext(cmd, v)
			defer cancel()
			resp, err := c.Status(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			if v.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printStatus(cmd.OutOrStdout(), resp, c.transport)
			return nil
		})
	cmd.Flags().Bool("json", false, "output raw JSON")
	return cmd
}

func newBufferCmd() *cobra.Command {
	return clientCommand("buffer", "Print the accumulated buffer (like pbpaste)",
		`Writes the accumulated buffer to stdout exactly as it would be pasted.`,
		func(cmd *cobra.Command, v *viper.Viper, c *conn) error {
			ctx, cancel := requestContext(cmd, v)
			defer cancel()
			resp, err := c.Status(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), resp.State.Buffer)
			return err
		})
}

func newWatchCmd() *cobra.Command {
	cmd := clientCommand("watch", "Stream state changes until interrupted",
		`Prints one line per accumulator state change, starting with the current
state. Use --json for one JSON object per line.`,
		func(cmd *cobra.Command, v *viper.Viper, c *conn) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			jsonOut := v.GetBool("json")
			enc := json.NewEncoder(out)
			err := c.Watch(ctx, func(st message.State) error {
				if jsonOut {
					return enc.Encode(st)
				}
				_, err := fmt.Fprintln(out, formatWatchLine(st))
				return err
			})
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		})
	cmd.Flags().Bool("json", false, "output one JSON object per line")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(enc))
	return err
}

func printStatus(out io.Writer, resp *message.StatusResponse, transport string) {
	st := resp.State
	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Transport:\t%s\n", transport)
	fmt.Fprintf(w, "Daemon:\t%s\n", resp.Version)
	fmt.Fprintf(w, "Backend:\t%s\n", st.Backend)
	fmt.Fprintf(w, "Enabled:\t%s\n", onOff(st.Enabled))
	fmt.Fprintf(w, "Clear on paste:\t%s\n", onOff(st.ClearOnPaste))
	fmt.Fprintf(w, "Insert newline:\t%s\n", onOff(st.InsertNewline))
	fmt.Fprintf(w, "Change count:\t%d\n", st.ChangeCount)
	if st.PendingClears > 0 {
		fmt.Fprintf(w, "Pending clears:\t%d\n", st.PendingClears)
	}
	fmt.Fprintf(w, "Watchers:\t%d\n", resp.Watchers)
	if !st.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated:\t%s\n", fmtAge(st.UpdatedAt))
	}
	fmt.Fprintln(w)
	_ = w.Flush()

	if st.Buffer == "" {
		fmt.Fprintln(out, "Buffer is empty.")
		return
	}
	fmt.Fprintf(out, "Buffer (%d chars):\n%s\n", utf8.RuneCountInString(st.Buffer), message.Preview(st.Buffer, previewRunes))
}

func formatWatchLine(st message.State) string {
	ts := st.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("%s enabled=%s clear_on_paste=%s newline=%s pending=%d len=%d %q",
		ts.Format("15:04:05"),
		onOff(st.Enabled), onOff(st.ClearOnPaste), onOff(st.InsertNewline),
		st.PendingClears, utf8.RuneCountInString(st.Buffer), message.Preview(st.Buffer, previewRunes),
	)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Format("15:04:05")
}
