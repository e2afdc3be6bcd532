package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/upstream-sh/upstream/internal/doctor"
	"github.com/upstream-sh/upstream/internal/output"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [package...]",
	Short: "Verify installed artifacts against recorded checksums",
	Long: `Re-hash installed artifacts and compare them against the checksums
recorded at install time, and confirm each package's files and symlink
are intact. Extracted archives cannot be re-hashed; for those only the
structural checks run.

Examples:
  upstream verify
  upstream verify bat fd`,
	RunE: runVerify,
}

func init() {
	RootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	// Verifying specific names still needs their records to exist.
	for _, name := range args {
		if _, err := e.store.Get(name); err != nil {
			return err
		}
	}

	// Re-hashing reads every artifact, which can take a moment.
	spin := output.NewSpinner("verifying installed artifacts")
	spin.Start()
	d := doctor.New(e.store, e.paths, logger)
	findings, err := d.Run(doctor.Options{VerifyChecksums: true})
	spin.Stop()
	if err != nil {
		return err
	}

	wanted := func(pkg string) bool {
		if len(args) == 0 {
			return pkg != ""
		}
		for _, name := range args {
			if name == pkg {
				return true
			}
		}
		return false
	}

	count := 0
	for _, f := range findings {
		if !wanted(f.Package) {
			continue
		}
		fmt.Println(output.RenderFinding(f))
		count++
	}
	if count > 0 {
		return fmt.Errorf("%d finding(s)", count)
	}
	fmt.Println("All packages verified.")
	return nil
}
