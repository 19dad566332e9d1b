package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd checks configuration files without running a simulation.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate cluster and policy configuration files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if clusterPath != "" {
			cfg, err := LoadClusterConfig(clusterPath)
			if err != nil {
				return err
			}
			cluster, err := cfg.Build()
			if err != nil {
				return err
			}
			total := cluster.TotalCapacity()
			fmt.Printf("cluster ok: %d nodes, %d cores, %d MB, %d GPUs\n",
				len(cluster.Nodes()), total.Cores, total.MemoryMB, total.GPUs)
		}
		if _, err := LoadPolicyConfig(policyPath); err != nil {
			return err
		}
		fmt.Println("policy ok")
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&clusterPath, "cluster", "", "Cluster topology YAML")
	validateCmd.Flags().StringVar(&policyPath, "policy", "", "Scheduling policy YAML")
	rootCmd.AddCommand(validateCmd)
}
