package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pathkey-service/internal/config"
	"pathkey-service/internal/domain"
	pgstore "pathkey-service/internal/infra/postgres"
	"pathkey-service/internal/pathkey"
)

// NewPathkeyCmd groups pathkey inspection commands.
func NewPathkeyCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pathkey",
		Short: "Inspect pathkey progress",
	}
	cmd.AddCommand(newPathkeyStatusCmd(configPath))
	return cmd
}

func newPathkeyStatusCmd(configPath *string) *cobra.Command {
	var studentID, careerID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a student's progress toward a career pathkey",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			rules, err := cfg.Pathkey.Rules()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			o := pathkey.NewOrchestrator(pgstore.NewStore(db), rules, newLogger(cfg))
			st, err := o.Status(cmd.Context(), studentID, careerID)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), studentID, careerID, rules, st)
			return nil
		},
	}
	cmd.Flags().StringVar(&studentID, "student", "", "student id")
	cmd.Flags().StringVar(&careerID, "career", "", "career id")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("career")
	return cmd
}

func printStatus(w io.Writer, studentID, careerID string, rules pathkey.Rules, st pathkey.Status) {
	rec := st.Record
	fmt.Fprintf(w, "student %s, career %s\n", studentID, careerID)
	fmt.Fprintf(w, "  section 1 (career mastery):   %s\n", mark(rec.CareerMasteryUnlocked))
	fmt.Fprintf(w, "  section 2 (industry/cluster): %s  industry %d/%d, cluster %d/%d\n",
		mark(rec.SectionTwoUnlocked()), st.Industry, rules.SectionTwoRequired, st.Cluster, rules.SectionTwoRequired)
	fmt.Fprintf(w, "  section 3 (business drivers): %s  %d/%d drivers mastered\n",
		mark(rec.BusinessDriverMasteryUnlocked), st.DriversMastered(), len(domain.BusinessDrivers))
	for _, p := range st.Drivers {
		fmt.Fprintf(w, "    %-9s %-8s chunk %d/%d correct\n", p.Driver, p.State(), p.ChunkCorrect, p.ChunkQuestions)
	}
}

func mark(unlocked bool) string {
	if unlocked {
		return "unlocked"
	}
	return "locked"
}
