/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"sync"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/notargets/gamr/InputParameters"
	"github.com/notargets/gamr/mesh"
	"github.com/notargets/gamr/parallel"
	"github.com/notargets/gamr/solver"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: `
Builds the mesh from an input file (or a restart dump), launches one
goroutine per rank and advances the passive scalar solver to the time
limit, refining adaptively along the way.

gamr run -i input.yaml -n 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		restart, _ := cmd.Flags().GetString("restart")
		output, _ := cmd.Flags().GetString("output")
		nranks, _ := cmd.Flags().GetInt("nranks")
		amrInterval, _ := cmd.Flags().GetInt("amr-interval")
		doProfile, _ := cmd.Flags().GetBool("profile")
		if doProfile {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		if input == "" {
			return fmt.Errorf("an input file is required, even on restart")
		}
		pin, err := InputParameters.ReadParameterFile(input)
		if err != nil {
			return err
		}
		return runCohort(nranks, func(r parallel.Rank, c *parallel.Comm,
			board *solver.ExchangeBoard) error {
			return runRank(pin, restart, output, amrInterval, r, c, board)
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("input", "i", "", "input parameter file (YAML)")
	runCmd.Flags().StringP("restart", "r", "", "restart file to resume from")
	runCmd.Flags().StringP("output", "o", "", "restart file to write at the end")
	runCmd.Flags().IntP("nranks", "n", 1, "number of ranks (goroutines)")
	runCmd.Flags().Int("amr-interval", 5, "cycles between refinement passes")
	runCmd.Flags().Bool("profile", false, "write a CPU profile")
}

// runCohort launches fn on nranks goroutines sharing one communicator and
// one exchange board, and returns the first error any rank produced.
func runCohort(nranks int, fn func(parallel.Rank, *parallel.Comm,
	*solver.ExchangeBoard) error) error {
	comm := parallel.NewComm(nranks)
	board := solver.NewExchangeBoard()
	errs := make([]error, nranks)
	var wg sync.WaitGroup
	for id := 0; id < nranks; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			errs[id] = fn(parallel.NewRank(id, nranks), comm, board)
		}(id)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func runRank(pin *InputParameters.ParameterInput, restart, output string,
	amrInterval int, r parallel.Rank, c *parallel.Comm,
	board *solver.ExchangeBoard) error {
	phys := solver.NewScalar(pin, board)

	var m *mesh.Mesh
	var err error
	resFlag := 0
	if restart != "" {
		m, err = mesh.NewMeshFromRestart(restart, pin, phys, r, c)
		resFlag = 1
	} else {
		m, err = mesh.NewMesh(pin, phys, r, c)
	}
	if err != nil {
		return err
	}
	if err = m.Initialize(resFlag); err != nil {
		return err
	}
	if r.Root() {
		fmt.Print(m.StructureReport())
	}
	mass0 := phys.TotalIntegral(m)

	for m.Time < m.TLim && (m.NLim < 0 || m.NCycle < m.NLim) {
		m.UpdateOneStep()
		m.NewTimeStep()
		if amrInterval > 0 && m.NCycle%amrInterval == 0 {
			stats, err := m.Refine()
			if err != nil {
				return err
			}
			if stats.Refined+stats.Derefined > 0 {
				r.RootLogf("cycle %d: refined %d, derefined %d, %d -> %d blocks",
					m.NCycle, stats.Refined, stats.Derefined,
					stats.OldNBTotal, stats.NewNBTotal)
			}
		}
	}
	mass := phys.TotalIntegral(m)
	r.RootLogf("finished at cycle %d, t=%g, conserved integral drift %g",
		m.NCycle, m.Time, mass-mass0)

	if output != "" {
		if err = m.WriteRestart(output); err != nil {
			return err
		}
		r.RootLogf("wrote restart file %s", output)
	}
	return nil
}
