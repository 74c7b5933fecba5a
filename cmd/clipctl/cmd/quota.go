package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/clipforge/internal/quota"
)

var (
	quotaDBPath          string
	quotaUsername        string
	quotaFreeGenerations int64
	quotaFreeStorage     string
	quotaMaxUpload       string
)

// quotaCmd represents the quota command group
var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Quota inspection commands",
	Long: `Commands for inspecting per-account quotas.

Limits default to the built-in values. Pass the same limits the server
runs with to see the decisions it would make.

Example:
  clipctl quota show --username maria --free-storage "10 GiB"`,
}

type quotaReport struct {
	Username           string               `json:"username"`
	Generation         quota.Decision       `json:"generation"`
	GenerationsLeft    any                  `json:"generations_remaining"`
	Storage            quota.UploadDecision `json:"storage"`
	StorageRemaining   any                  `json:"storage_remaining"`
	StorageUsedHuman   string               `json:"storage_used_human"`
	StorageLimitHuman  string               `json:"storage_ceiling_human"`
	MaxUploadSizeHuman string               `json:"max_item_human"`
}

var quotaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show an account's generation and storage quota",
	RunE: func(cmd *cobra.Command, args []string) error {
		limits, err := quotaLimits()
		if err != nil {
			return err
		}

		store, err := openDatabase(quotaDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		user, err := findUser(ctx, store.Users(), quotaUsername)
		if err != nil {
			return err
		}

		tracker := quota.NewTracker(store.Profiles(), store.Usage(), store.Objects(), limits)
		gen, err := tracker.CheckGeneration(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("check generations: %w", err)
		}
		st, err := tracker.CheckUpload(ctx, user.ID, 0)
		if err != nil {
			return fmt.Errorf("check storage: %w", err)
		}

		report := newQuotaReport(user.Username, gen, st)
		out := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return writeJSON(out, report)
		}
		fmt.Fprintln(out, renderQuota(report))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.AddCommand(quotaShowCmd)

	defaults := quota.DefaultLimits()
	quotaShowCmd.Flags().StringVar(&quotaDBPath, "db", defaultDBPath, "path to SQLite database file")
	quotaShowCmd.Flags().StringVar(&quotaUsername, "username", "", "account to inspect (required)")
	quotaShowCmd.Flags().Int64Var(&quotaFreeGenerations, "free-generations", defaults.FreeGenerations, "monthly generations for free accounts")
	quotaShowCmd.Flags().StringVar(&quotaFreeStorage, "free-storage", humanize.IBytes(uint64(defaults.FreeStorageBytes)), "storage ceiling for free accounts")
	quotaShowCmd.Flags().StringVar(&quotaMaxUpload, "max-upload", humanize.IBytes(uint64(defaults.MaxUploadBytes)), "largest single upload")
	quotaShowCmd.MarkFlagRequired("username")
}

// quotaLimits builds limits from the command-line flags.
func quotaLimits() (quota.Limits, error) {
	storageBytes, err := humanize.ParseBytes(quotaFreeStorage)
	if err != nil {
		return quota.Limits{}, fmt.Errorf("invalid --free-storage: %w", err)
	}
	uploadBytes, err := humanize.ParseBytes(quotaMaxUpload)
	if err != nil {
		return quota.Limits{}, fmt.Errorf("invalid --max-upload: %w", err)
	}
	limits := quota.Limits{
		FreeGenerations:  quotaFreeGenerations,
		FreeStorageBytes: int64(storageBytes),
		MaxUploadBytes:   int64(uploadBytes),
	}
	if err := limits.Validate(); err != nil {
		return quota.Limits{}, err
	}
	return limits, nil
}

func newQuotaReport(username string, gen quota.Decision, st quota.UploadDecision) quotaReport {
	return quotaReport{
		Username:           username,
		Generation:         gen,
		GenerationsLeft:    gen.RemainingValue(),
		Storage:            st,
		StorageRemaining:   st.RemainingValue(),
		StorageUsedHuman:   humanize.IBytes(uint64(st.UsedBytes)),
		StorageLimitHuman:  humanize.IBytes(uint64(st.CeilingBytes)),
		MaxUploadSizeHuman: humanize.IBytes(uint64(st.MaxItemBytes)),
	}
}

func renderQuota(r quotaReport) string {
	genLimit := strconv.FormatInt(r.Generation.Limit, 10)
	genLeft := fmt.Sprint(r.GenerationsLeft)
	storageLimit := r.StorageLimitHuman
	storageLeft := quota.Unlimited
	if !r.Storage.Unlimited {
		storageLeft = humanize.IBytes(uint64(r.Storage.RemainingBytes))
	}
	if r.Generation.Unlimited {
		genLimit = quota.Unlimited
	}
	if r.Storage.Unlimited {
		storageLimit = quota.Unlimited
	}

	rows := [][]string{
		{"generations", strconv.FormatInt(r.Generation.EffectiveUsage, 10), genLimit, genLeft},
		{"storage", r.StorageUsedHuman, storageLimit, storageLeft},
	}
	header := fmt.Sprintf("Account %s (%s tier), max upload %s\n", r.Username, r.Generation.Tier, r.MaxUploadSizeHuman)
	return header + renderTable(
		[]string{"RESOURCE", "USED", "LIMIT", "REMAINING"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	)
}
