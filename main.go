// =============================================================================
// COVID Scenes - Main Entry Point
// =============================================================================
//
// USAGE:
//   scenes render      - Draw scenes to files in the output directory
//   scenes serve       - Serve a shared scene session over HTTP
//   scenes present     - Step through scenes in the terminal
//   scenes validate    - Parse the dataset and report malformed rows
//   scenes export      - Write the aggregations as an .xlsx workbook
//   scenes version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : loading, parsing, aggregation, scenes and renderers
//   - pkg/       : shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/covid-scenes/cmd"
)

func main() {
	cmd.Execute()
}
