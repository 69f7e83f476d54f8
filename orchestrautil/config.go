/*
Copyright © 2013 the InMAP authors.
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
	"os"
	"strconv"
	"strings"
)

// checkInputFile expands environment variables in path and makes sure
// it is non-empty.
func checkInputFile(path string) (string, error) {
	path = os.ExpandEnv(path)
	if path == "" {
		return "", fmt.Errorf("orchestra: no InputFile specified. Please set the InputFile " +
			"configuration and try again")
	}
	return path, nil
}

// parseNodeLines splits text into newline-delimited rows of
// whitespace-separated floats -- the per-node values a NodesFile
// supplies, one node per line, in the same slot order the Calculator's
// NodeType assigns.
func parseNodeLines(text string) ([][]float64, error) {
	var rows [][]float64
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		row := make([]float64, len(fields))
		for j, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("orchestra: NodesFile line %d field %d: %v", i+1, j+1, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
