package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/upstream-sh/upstream/internal/doctor"
	"github.com/upstream-sh/upstream/internal/output"
)

var (
	doctorFlagRepair bool
	doctorFlagWatch  bool
	doctorFlagVerify bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the managed tree for problems",
	Long: `Check every installed package against the managed tree: missing
artifacts, broken or hijacked symlinks, orphaned files, stale locks,
and an unparseable config.

With --repair, the fixable findings are fixed: symlinks are recreated,
orphaned symlinks and stale locks removed.

With --verify, installed single-file artifacts are re-hashed against
the checksums recorded at install time.

With --watch, doctor keeps running and reports new problems as they
appear, which catches other tools interfering with the managed tree.

Examples:
  upstream doctor
  upstream doctor --repair
  upstream doctor --verify
  upstream doctor --watch`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFlagRepair, "repair", false, "fix repairable findings")
	doctorCmd.Flags().BoolVar(&doctorFlagWatch, "watch", false, "keep checking and report changes live")
	doctorCmd.Flags().BoolVar(&doctorFlagVerify, "verify", false, "re-hash installed artifacts against recorded checksums")
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	d := doctor.New(e.store, e.paths, logger)
	opts := doctor.Options{VerifyChecksums: doctorFlagVerify}

	if doctorFlagWatch {
		fmt.Println("Watching the managed tree. Ctrl-C to stop.")
		return d.Watch(cmd.Context(), opts, func(f doctor.Finding) {
			fmt.Println(output.RenderFinding(f))
		})
	}

	findings, err := d.Run(opts)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		fmt.Println("No problems found.")
		return nil
	}

	for _, f := range findings {
		fmt.Println(output.RenderFinding(f))
	}

	if doctorFlagRepair {
		var repaired []doctor.Finding
		err := e.withLock("doctor", func() error {
			var repairErr error
			repaired, repairErr = d.Repair(findings)
			return repairErr
		})
		if err != nil {
			return err
		}
		fmt.Printf("Repaired %d of %d finding(s).\n", len(repaired), len(findings))
		if len(repaired) == len(findings) {
			return nil
		}
	}

	errorCount := 0
	for _, f := range findings {
		if f.Severity == doctor.SeverityError {
			errorCount++
		}
	}
	if errorCount > 0 {
		return fmt.Errorf("%d error finding(s)", errorCount)
	}
	return nil
}
