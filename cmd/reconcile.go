package cmd

import (
	"context"
	"encoding/json"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/nordforge/scim-ad-bridge/config"
	"github.com/nordforge/scim-ad-bridge/directory"
	"github.com/nordforge/scim-ad-bridge/store"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-run the directory read for every row not currently synced.",
	Long: `Walks scim_users rows with sync_status in (pending, error), re-reads the
corresponding Active Directory object, and refreshes ad_resource. Rows still
failing after the read are left as-is for the next sweep; this is an
operator-triggered, request-path-independent version of the best-effort
refresh a successful create/replace/patch already performs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(cmd.Context())
	},
}

func runReconcile(ctx context.Context) error {
	log := rootLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	cache := db.Cache()
	audit := db.Audit(log)
	executor := directory.NewExecutor(cfg.ToolExecutable, cfg.DefaultPassword, audit, log)
	executor.Timeout = cfg.ToolTimeout

	rows, err := cache.FindPendingOrError(ctx)
	if err != nil {
		return err
	}
	level.Info(log).Log("msg", "reconcile sweep starting", "rows", len(rows))

	refreshed := 0
	for _, row := range rows {
		identity := identityOf(row)
		if identity == "" {
			level.Error(log).Log("msg", "row has no known identity, skipping", "id", row.ID)
			continue
		}

		adUser := executor.Read(ctx, identity, row.ID)
		if adUser == nil {
			level.Error(log).Log("msg", "directory read failed during reconcile", "id", row.ID, "identity", identity)
			continue
		}

		adJSON, err := json.Marshal(adUser)
		if err != nil {
			level.Error(log).Log("msg", "marshal ad view failed", "id", row.ID, "err", err)
			continue
		}
		row.AdResource = adJSON

		if _, err := cache.Update(ctx, row); err != nil {
			level.Error(log).Log("msg", "cache update failed during reconcile", "id", row.ID, "err", err)
			continue
		}
		refreshed++
	}

	level.Info(log).Log("msg", "reconcile sweep complete", "refreshed", refreshed, "total", len(rows))
	return nil
}

// identityOf mirrors provisioner's rule: AD object GUID when known, else
// sAMAccountName. Duplicated rather than imported so cmd never depends on
// provisioner's internal helpers.
func identityOf(row store.Row) string {
	if row.ADObjectGUID != nil && *row.ADObjectGUID != "" {
		return *row.ADObjectGUID
	}
	if row.SamAccountName != nil && *row.SamAccountName != "" {
		return *row.SamAccountName
	}
	return ""
}
