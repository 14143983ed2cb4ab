package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/presenter"
	"github.com/skillminer/skillminer/pkg/store"
	"github.com/skillminer/skillminer/pkg/types/mining"
)

var candidateCmd = &cobra.Command{
	Use:   "candidate",
	Short: "Inspect and review mined candidates",
	Long:  `Commands for listing, inspecting and reviewing skill-update candidates.`,
}

var candidateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all candidates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		return withStore(cmd, func(st store.CandidateStore) error {
			candidates, err := st.List(ctx)
			if err != nil {
				return err
			}

			if len(candidates) == 0 {
				presenter.Info("No candidates found")
				return nil
			}

			statusFilter, _ := cmd.Flags().GetString("status")

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tSOURCE\tTARGET\tSELECTORS\tWORKFLOWS\tCREATED")
			shown := 0
			for _, c := range candidates {
				if statusFilter != "" && string(c.Status) != statusFilter {
					continue
				}
				target := c.TargetSkillID
				if target == "" {
					target = c.VirtualDomain + " (new)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					c.ID, c.Status, c.Source, target,
					len(c.Selectors), len(c.Workflows),
					c.CreatedAt.Format("2006-01-02 15:04"))
				shown++
			}
			w.Flush()

			presenter.Info(fmt.Sprintf("%d candidate(s)", shown))
			return nil
		})
	},
}

var candidateShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a candidate in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		return withStore(cmd, func(st store.CandidateStore) error {
			candidate, err := st.Get(ctx, args[0])
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(candidate, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		})
	},
}

var candidateApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a candidate for application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCandidateStatus(cmd, args[0], mining.StatusApproved)
	},
}

var candidateRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCandidateStatus(cmd, args[0], mining.StatusRejected)
	},
}

var candidateNoteCmd = &cobra.Command{
	Use:   "note <id> <notes>",
	Short: "Attach reviewer notes to a candidate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		return withStore(cmd, func(st store.CandidateStore) error {
			if err := st.SetNotes(ctx, args[0], args[1]); err != nil {
				return err
			}
			presenter.Success(fmt.Sprintf("Updated notes for candidate %s", args[0]))
			return nil
		})
	},
}

func setCandidateStatus(cmd *cobra.Command, id string, status mining.Status) error {
	ctx := cmd.Context()

	return withStore(cmd, func(st store.CandidateStore) error {
		if err := st.SetStatus(ctx, id, status); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Candidate %s is now %s", id, status))
		return nil
	})
}

// withStore opens the configured store, runs fn and closes the store.
func withStore(cmd *cobra.Command, fn func(st store.CandidateStore) error) error {
	ctx := cmd.Context()

	config, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.G(ctx).WithError(closeErr).Error("failed to close candidate store")
		}
	}()

	return fn(st)
}

func init() {
	candidateListCmd.Flags().String("status", "", "Only show candidates with this status")

	candidateCmd.AddCommand(candidateListCmd)
	candidateCmd.AddCommand(candidateShowCmd)
	candidateCmd.AddCommand(withTracing(candidateApproveCmd))
	candidateCmd.AddCommand(withTracing(candidateRejectCmd))
	candidateCmd.AddCommand(candidateNoteCmd)
}
