package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/overlay/internal/adapter/input"
	"github.com/jmylchreest/overlay/internal/dbus"
	"github.com/jmylchreest/overlay/internal/model"
)

var notifyOpts struct {
	source         string
	title          string
	typ            string
	duration       string
	replace        uint32
	notDismissible bool
	wait           bool
	timeout        time.Duration
	stdin          bool
}

var notifyCmd = &cobra.Command{
	Use:   "notify <message>",
	Short: "Send a notification over D-Bus",
	Long: `Send a notification to the running notification daemon.

The type is sent as the x-overlay-type hint and mapped to an urgency for
other daemons. A duration of "0" never expires; an empty duration uses the
daemon's default for the type.

Examples:
  # Send a success toast
  overlay notify --type success --title Build "All tests passed"

  # Update a loading notification in place
  id=$(overlay notify --type loading "Deploying...")
  overlay notify --replace "$id" --type success "Deployed"

  # Block until the notification is closed and print why
  overlay notify --wait "Coffee is ready"

  # Send a batch read as JSON from stdin
  echo '{"type": "info", "message": "hello"}' | overlay notify --stdin`,
	Args: func(cmd *cobra.Command, args []string) error {
		if notifyOpts.stdin {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)

	notifyCmd.Flags().StringVar(&notifyOpts.source, "source", "overlay",
		"Application name")
	notifyCmd.Flags().StringVarP(&notifyOpts.title, "title", "t", "",
		"Notification title (summary)")
	notifyCmd.Flags().StringVar(&notifyOpts.typ, "type", string(model.TypeDefault),
		fmt.Sprintf("Notification type %v", model.Types()))
	notifyCmd.Flags().StringVarP(&notifyOpts.duration, "duration", "d", "",
		"Lifetime (e.g. 4s, 500ms; 0 = never expire; empty = type default)")
	notifyCmd.Flags().Uint32VarP(&notifyOpts.replace, "replace", "r", 0,
		"D-Bus id of a notification to replace")
	notifyCmd.Flags().BoolVar(&notifyOpts.notDismissible, "not-dismissible", false,
		"Ask the daemon not to allow user dismissal")
	notifyCmd.Flags().BoolVarP(&notifyOpts.wait, "wait", "w", false,
		"Wait until the notification is closed and print the reason")
	notifyCmd.Flags().DurationVar(&notifyOpts.timeout, "timeout", 0,
		"Give up waiting after this long (0 = wait forever)")
	notifyCmd.Flags().BoolVar(&notifyOpts.stdin, "stdin", false,
		"Read notifications as JSON from stdin instead of arguments")
}

func runNotify(cmd *cobra.Command, args []string) error {
	if notifyOpts.stdin {
		return notifyFromStdin(cmd)
	}

	n, err := notificationFromFlags(strings.Join(args, " "))
	if err != nil {
		return err
	}

	client, err := dbus.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx := cmd.Context()
	if notifyOpts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, notifyOpts.timeout)
		defer cancel()
	}

	var closed <-chan dbus.Closed
	if notifyOpts.wait {
		var stop func()
		closed, stop, err = client.WatchClosed()
		if err != nil {
			return err
		}
		defer stop()
	}

	id, err := client.Notify(ctx, n, notifyOpts.replace)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)

	if !notifyOpts.wait {
		return nil
	}
	logger.Debug("waiting for close", "id", id)
	for {
		select {
		case c, ok := <-closed:
			if !ok {
				return fmt.Errorf("signal subscription ended before notification %d closed", id)
			}
			if c.ID == id {
				fmt.Fprintln(cmd.OutOrStdout(), c.Reason)
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// notificationFromFlags builds the notification described by notifyOpts.
func notificationFromFlags(message string) (model.Notification, error) {
	t, err := model.ParseType(notifyOpts.typ)
	if err != nil {
		return model.Notification{}, err
	}

	n := model.Notification{
		Source:      notifyOpts.source,
		Title:       notifyOpts.title,
		Message:     message,
		Type:        t,
		Dismissible: !notifyOpts.notDismissible,
	}

	switch notifyOpts.duration {
	case "":
	case "0":
		n.Duration = model.Infinite
	default:
		d, err := time.ParseDuration(notifyOpts.duration)
		if err != nil {
			return model.Notification{}, fmt.Errorf("invalid duration: %w", err)
		}
		if d <= 0 {
			return model.Notification{}, fmt.Errorf("duration must be positive, got %s", d)
		}
		n.Duration = d
	}
	return n, nil
}

// notifyFromStdin sends every notification read from stdin and prints the
// assigned ids one per line.
func notifyFromStdin(cmd *cobra.Command) error {
	notifications, err := input.NewStdinAdapterWithReader(cmd.InOrStdin()).Import(cmd.Context())
	if err != nil {
		return err
	}
	if len(notifications) == 0 {
		return fmt.Errorf("no notifications read from stdin")
	}

	client, err := dbus.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	for _, n := range notifications {
		id, err := client.Notify(cmd.Context(), n, 0)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
