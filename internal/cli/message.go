package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"agentmesh/internal/mailbox"
)

var sendCmd = &cobra.Command{
	Use:   "send [to] [text]",
	Short: "Send a direct message to a live agent",
	Args:  cobra.ExactArgs(2),
	RunE:  runSend,
}

var broadcastCmd = &cobra.Command{
	Use:   "broadcast [text]",
	Short: "Send a message to every live agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runBroadcast,
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Print and consume pending messages (--watch to keep draining)",
	Args:  cobra.NoArgs,
	RunE:  runInbox,
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Read the shared message log",
}

var logTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recent log events",
	Args:  cobra.NoArgs,
	RunE:  runLogTail,
}

var logThreadCmd = &cobra.Command{
	Use:   "thread [peerA] [peerB]",
	Short: "Show direct messages between two agents",
	Args:  cobra.ExactArgs(2),
	RunE:  runLogThread,
}

func init() {
	sendCmd.Flags().Bool("urgent", false, "Request interrupt delivery instead of queueing")
	sendCmd.Flags().String("reply-to", "", "Message ID this replies to")
	broadcastCmd.Flags().Bool("urgent", false, "Request interrupt delivery instead of queueing")
	inboxCmd.Flags().Bool("watch", false, "Keep watching the inbox and drain as messages arrive")
	logTailCmd.Flags().Int("n", 20, "Number of events")
	logThreadCmd.Flags().Int("n", 20, "Number of events")

	logCmd.AddCommand(logTailCmd, logThreadCmd)
	rootCmd.AddCommand(sendCmd, broadcastCmd, inboxCmd, logCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	from, err := selfName(cmd, m)
	if err != nil {
		return err
	}
	urgent, _ := cmd.Flags().GetBool("urgent")
	replyTo, _ := cmd.Flags().GetString("reply-to")

	msg, err := m.box.SendDirect(from, args[0], args[1], replyTo, urgent)
	if err != nil {
		return err
	}
	fmt.Printf("%ssent%s %s -> %s (%s delivery, id %s)\n",
		colorGreen, colorReset, from, msg.To, msg.Delivery(), msg.ID)
	return nil
}

func runBroadcast(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	from, err := selfName(cmd, m)
	if err != nil {
		return err
	}
	urgent, _ := cmd.Flags().GetBool("urgent")

	res, err := m.box.SendBroadcast(from, args[0], urgent)
	if err != nil {
		return err
	}
	fmt.Printf("%sbroadcast%s delivered to %d agent(s)\n", colorGreen, colorReset, len(res.Delivered))
	for _, f := range res.Failed {
		fmt.Printf("  %sfailed%s %s: %v\n", colorRed, colorReset, f.Recipient, f.Err)
	}
	return nil
}

func runInbox(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	self, err := selfName(cmd, m)
	if err != nil {
		return err
	}

	handler := func(msg mailbox.Message) error {
		urgency := ""
		if msg.Urgent {
			urgency = colorRed + " [urgent]" + colorReset
		}
		fmt.Printf("%s%s%s%s (%s): %s\n",
			colorCyan, msg.From, colorReset, urgency,
			msg.Timestamp.Local().Format("15:04:05"), msg.Text)
		return nil
	}

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		w := mailbox.NewWatcher(m.box, self, handler, m.cfg.Debounce())
		fmt.Printf("%swatching inbox for %s%s\n", colorDim, self, colorReset)
		return w.Run(cmd.Context())
	}

	n, err := m.box.Drain(self, handler)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println(colorDim + "inbox empty" + colorReset)
	}
	return nil
}

func runLogTail(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	n, _ := cmd.Flags().GetInt("n")

	events, err := m.box.Tail(n)
	if err != nil {
		return err
	}
	printLogEvents(events)
	return nil
}

func runLogThread(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	n, _ := cmd.Flags().GetInt("n")

	events, err := m.box.Thread(args[0], args[1], n)
	if err != nil {
		return err
	}
	printLogEvents(events)
	return nil
}

func printLogEvents(events []mailbox.LogEvent) {
	if len(events) == 0 {
		fmt.Println(colorDim + "  (no messages)" + colorReset)
		return
	}
	for _, ev := range events {
		to := ev.To
		if ev.Kind == mailbox.KindBroadcast {
			to = "*" + strings.Join(ev.Recipients, ",")
		}
		fmt.Printf("%s %s%s -> %s%s %s\n",
			ev.Timestamp.Local().Format("15:04:05"),
			colorCyan, ev.From, to, colorReset,
			ev.Text)
	}
}
