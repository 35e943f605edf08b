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

	"github.com/spf13/cobra"

	"github.com/notargets/gamr/InputParameters"
	"github.com/notargets/gamr/mesh"
	"github.com/notargets/gamr/parallel"
)

// meshtestCmd represents the meshtest command
var meshtestCmd = &cobra.Command{
	Use:   "meshtest",
	Short: "Build the mesh and report its structure without running",
	Long: `
Constructs the mesh for the given input and rank count, prints the block
distribution and balance statistics, and optionally dumps every block's
outline for plotting. No solver is attached and no time steps run.

gamr meshtest -i input.yaml -n 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		nranks, _ := cmd.Flags().GetInt("nranks")
		structFile, _ := cmd.Flags().GetString("structure")
		if input == "" {
			return fmt.Errorf("an input file is required")
		}
		pin, err := InputParameters.ReadParameterFile(input)
		if err != nil {
			return err
		}
		// Construction is deterministic, so one rank's view stands in for
		// the whole cohort.
		comm := parallel.NewComm(1)
		rank := parallel.NewRank(0, 1)
		m, err := newMeshTestMesh(pin, nranks, rank, comm)
		if err != nil {
			return err
		}
		fmt.Print(m.StructureReport())
		if structFile != "" {
			if err = m.WriteStructure(structFile); err != nil {
				return err
			}
			fmt.Println("wrote block outlines to", structFile)
		}
		return nil
	},
}

// newMeshTestMesh builds the mesh as rank 0 of a simulated nranks cohort.
func newMeshTestMesh(pin *InputParameters.ParameterInput, nranks int,
	rank parallel.Rank, comm *parallel.Comm) (*mesh.Mesh, error) {
	m, err := mesh.NewMesh(pin, nil, rank, comm)
	if err != nil {
		return nil, err
	}
	if nranks > 1 {
		if err = m.Redistribute(nranks); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func init() {
	rootCmd.AddCommand(meshtestCmd)
	meshtestCmd.Flags().StringP("input", "i", "", "input parameter file (YAML)")
	meshtestCmd.Flags().IntP("nranks", "n", 1, "rank count to simulate")
	meshtestCmd.Flags().StringP("structure", "s", "", "write block outlines to this file (zstd)")
}
