package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"annotify/internal/annotator/scenarios"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the embedded scripted scenarios",
	RunE: func(_ *cobra.Command, _ []string) error {
		for _, name := range scenarios.List() {
			s, err := scenarios.Load(name)
			if err != nil {
				return err
			}
			fmt.Printf("%-20s %s\n", name, s.Description)
		}
		return nil
	},
}
