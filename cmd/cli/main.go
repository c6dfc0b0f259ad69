package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "adwatch",
	Short: "Adwatch CLI - manage ad report schedules and alert rules",
	Long: `Adwatch CLI administers the ads dashboard from the server box:
list and edit alert rules and report schedules, and run the schedule or
alert engine once by hand.`,
}

func init() {
	rootCmd.AddCommand(newRuleCommand())
	rootCmd.AddCommand(newScheduleCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newUserCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
