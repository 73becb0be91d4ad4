package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/message"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and open channels",
		Long: `Displays whether a popup is open, how full the history is, and every channel
currently connected to the daemon.

If the local daemon socket exists the request goes over it. Pass --addr to
target a daemon directly over TCP.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd, v) },
	}

	cmd.Flags().StringP("output", "o", "table", "output format: table|json|yaml")
	addClientFlags(cmd)
	return cmd
}

func runStatus(cmd *cobra.Command, v *viper.Viper) error {
	format, err := parseOutputFormat(v.GetString("output"))
	if err != nil {
		return err
	}

	svc, transport, err := dialService(cmd, v)
	if err != nil {
		return err
	}
	defer svc.Close()

	st, err := svc.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if format != formatTable {
		return writeStructured(os.Stdout, format, st)
	}
	printStatus(os.Stdout, st, transport)
	return nil
}

func printStatus(out io.Writer, st *message.StatusInfo, transport string) {
	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	popup := "closed"
	if st.PopupOpen {
		popup = "open"
	}
	fmt.Fprintf(w, "Transport:\t%s\n", transport)
	fmt.Fprintf(w, "Popup:\t%s\n", popup)
	fmt.Fprintf(w, "Items:\t%d/%d\n", st.Items, st.Capacity)
	fmt.Fprintln(w)
	_ = w.Flush()

	if len(st.Peers) == 0 {
		fmt.Fprintln(out, "No channels connected.")
		return
	}

	tw := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "NAME\tSOURCE\tADDR\tCONNECTED\tLAST EVENT\n")
	_, _ = fmt.Fprintf(tw, "----\t------\t----\t---------\t----------\n")
	for _, p := range st.Peers {
		last := "-"
		if !p.LastSent.IsZero() {
			last = fmtAge(p.LastSent)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.Name, p.Source, p.Addr, fmtAge(p.ConnectedAt), last)
	}
	_ = tw.Flush()
}
