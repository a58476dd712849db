package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Show recorded alert notifications",
	RunE:  runNotifications,
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.Flags().StringP("instance", "i", "", "Filter by instance")
	notificationsCmd.Flags().StringP("kind", "k", "", "Filter by kind (new, upgraded, resolved)")
	notificationsCmd.Flags().Duration("since", 0, "Only show notifications newer than this (e.g. 24h)")
	notificationsCmd.Flags().IntP("limit", "n", 50, "Maximum number of notifications")
}

func runNotifications(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	instance, _ := cmd.Flags().GetString("instance")
	kind, _ := cmd.Flags().GetString("kind")
	since, _ := cmd.Flags().GetDuration("since")
	limit, _ := cmd.Flags().GetInt("limit")

	switch model.NotificationKind(kind) {
	case "", model.NotificationNew, model.NotificationUpgraded, model.NotificationResolved:
	default:
		return fmt.Errorf("unknown kind %q: expected new, upgraded or resolved", kind)
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	filter := model.NotificationFilter{
		InstanceID: instance,
		Kind:       model.NotificationKind(kind),
		Limit:      limit,
	}
	if since > 0 {
		filter.Since = time.Now().Add(-since)
	}

	records, err := store.QueryNotifications(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("query notifications: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No notifications recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TIME\tINSTANCE\tKIND\tTYPE\tREGION\tTITLE\n")
	for _, n := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			n.CreatedAt.In(model.Oslo).Format("2006-01-02 15:04"),
			n.InstanceID, n.Kind, n.WarningType,
			truncate(n.Region, 30), n.Title,
		)
	}
	return w.Flush()
}
