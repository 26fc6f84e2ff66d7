package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/overlay/internal/dbus"
)

var closeCmd = &cobra.Command{
	Use:   "close <id>...",
	Short: "Close notifications by D-Bus id",
	Long: `Ask the notification daemon to close one or more notifications.

Ids are the numbers printed by "overlay notify". Unknown ids are ignored by
the daemon.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClose,
}

func init() {
	rootCmd.AddCommand(closeCmd)
}

func runClose(cmd *cobra.Command, args []string) error {
	ids := make([]uint32, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 32)
		if err != nil || id == 0 {
			return fmt.Errorf("invalid notification id %q", arg)
		}
		ids = append(ids, uint32(id))
	}

	client, err := dbus.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	for _, id := range ids {
		if err := client.CloseNotification(cmd.Context(), id); err != nil {
			return err
		}
		logger.Debug("close requested", "id", id)
	}
	return nil
}
