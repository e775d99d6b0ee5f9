// Command calcbot runs the two-operand calculator bot.
package main

import (
	"log"

	"github.com/m3rciful/calcbot/core/cmd"
	"github.com/m3rciful/calcbot/internal/calc"
)

func main() {
	if err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		Table:             calc.Table,
	}); err != nil {
		log.Fatalf("calcbot: %v", err)
	}
}
