package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/presenter"
)

var applyCmd = &cobra.Command{
	Use:   "apply <candidate-id>",
	Short: "Apply an approved candidate's proposal to the skill registry",
	Long: `Submit the change proposal of an approved candidate to the registry
gateway. On a confirmed merge the candidate moves to merged; if the
gateway rejects or fails, the candidate stays approved and the error
is printed for the reviewer to act on.`,
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

		if err := service.ApplyProposal(ctx, args[0]); err != nil {
			return err
		}

		presenter.Success(fmt.Sprintf("Candidate %s merged into the skill registry", args[0]))
		return nil
	},
}

func init() {
	applyCmd.Flags().String("endpoint", "", "Registry gateway endpoint URL")
	applyCmd.Flags().String("token", "", "Bearer token for the registry gateway")

	viper.BindPFlag("gateway.endpoint", applyCmd.Flags().Lookup("endpoint"))
	viper.BindPFlag("gateway.token", applyCmd.Flags().Lookup("token"))
}
