package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pubcredit/internal/model"
	"github.com/ppiankov/pubcredit/internal/registry"
)

// registryCmd represents the registry command
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect venue registries",
}

var registryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective registry as YAML",
	Long: `Print the effective registry (registry.path, or the embedded taxonomy)
in the YAML layout accepted by registry.path. A CSV registry is shown with
the rules it inherits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, map[string]string{"registry": "registry.path"}); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := registry.Load(cfg.Registry.Path)
		if err != nil {
			return err
		}
		data, err := registry.Marshal(reg)
		if err != nil {
			return fmt.Errorf("marshal registry: %w", err)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var registryCheckCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Validate registry files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			reg, err := registry.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "✗ %v\n", err)
				failed++
				continue
			}
			next := 0
			for _, a := range reg.Areas() {
				if a.Tier == model.TierNext {
					next++
				}
			}
			fmt.Printf("✓ %s: %d venues, %d areas (%d next tier)\n", path, reg.Len(), len(reg.Areas()), next)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d registries invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryShowCmd)
	registryCmd.AddCommand(registryCheckCmd)

	registryShowCmd.Flags().String("registry", "", "registry file (YAML or CSV; default: embedded)")
}
