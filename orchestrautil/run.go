/*
Copyright © 2017 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package orchestrautil

import (
	"fmt"

	"github.com/spatialmodel/orchestra"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the solver over a batch of nodes.",
	Long: `run parses the configured input program, loads a batch of nodes from
NodesFile, processes them across Threads worker(s), and prints every
variable value of each node.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile, err := checkInputFile(Cfg.GetString("InputFile"))
		if err != nil {
			return err
		}
		nodesText, err := orchestra.LoadInputText(Cfg.GetString("NodesFile"))
		if err != nil {
			return err
		}
		rows, err := parseNodeLines(nodesText)
		if err != nil {
			return err
		}

		// CalculatorFromCache memoizes the load+parse+optimize pipeline by
		// inputFile in this process's memory, so NewNodeProcessorFromInput
		// below, which resolves the same inputFile again, reuses the
		// already-optimized expression graph instead of re-parsing it.
		calc, err := orchestra.CalculatorFromCache(inputFile)
		if err != nil {
			return err
		}

		nodes := make([]*orchestra.Node, len(rows))
		for i, row := range rows {
			n := orchestra.NewNode(calc.Type)
			for j, v := range row {
				if j >= len(n.Values) {
					break
				}
				n.SetValue(j, v)
			}
			nodes[i] = n
		}

		stop := orchestra.NewStopFlag()
		proc, err := orchestra.NewNodeProcessorFromInput(inputFile, GetInt("Threads"), stop, nodes)
		if err != nil {
			return err
		}
		defer proc.Close()

		memOpt := orchestra.MemoryNone
		if Cfg.GetBool("Warm") {
			memOpt = orchestra.MemoryWarm
		}
		proc.ProcessNodes(nodes, memOpt)

		for i, n := range nodes {
			cmd.Printf("node %d:", i)
			for j := 0; j < calc.Type.Len(); j++ {
				cmd.Printf(" %s=%s", calc.Type.Name(j), fmt.Sprintf("%g", n.GetValue(j)))
			}
			cmd.Printf("\n")
		}
		return nil
	},
	DisableAutoGenTag: true,
}
