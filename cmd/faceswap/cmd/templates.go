package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/huynhanhkhoa2895/face-swap/pkg/catalog"
)

var (
	filterCharacter string
	filterGender    string
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage video templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)

		cat, err := catalog.NewFileCatalog(cfg.Paths.Templates, log)
		if err != nil {
			return err
		}

		templates := cat.List(catalog.Filter{
			Character: filterCharacter,
			Gender:    filterGender,
		})

		if IsJSONOutput() {
			output, err := json.MarshalIndent(templates, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			fmt.Println(string(output))
			return nil
		}

		if len(templates) == 0 {
			fmt.Println("No templates found")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("ID", "Name", "Character", "Gender", "FPS", "Resolution", "Placements")
		for _, t := range templates {
			table.Append(
				t.ID,
				t.Name,
				t.Character,
				t.Gender,
				fmt.Sprintf("%g", t.FPS),
				fmt.Sprintf("%dx%d", t.Resolution.Width, t.Resolution.Height),
				fmt.Sprintf("%d", len(t.Placements)),
			)
		}
		table.Render()
		return nil
	},
}

func init() {
	templatesListCmd.Flags().StringVar(&filterCharacter, "character", "", "filter by character")
	templatesListCmd.Flags().StringVar(&filterGender, "gender", "", "filter by gender")
	templatesCmd.AddCommand(templatesListCmd)
	rootCmd.AddCommand(templatesCmd)
}
