package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/presenter"
)

var proposeCmd = &cobra.Command{
	Use:   "propose <candidate-id>",
	Short: "Generate a change proposal for a candidate",
	Long: `Synthesize a concrete change proposal from a candidate's accumulated
statistics and print it. The proposal is also cached so a later apply
reuses it without re-synthesizing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		service, err := newService(config, st)
		if err != nil {
			return err
		}

		proposal, err := service.GenerateProposal(ctx, args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(proposal, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		presenter.Success(fmt.Sprintf("Proposal for skill %q: %s", proposal.NewSkillID, proposal.Summary))
		return nil
	},
}
