package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/cli/output"
	"github.com/wardenhq/warden/internal/cli/prompt"
	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/panel/models"
	"github.com/wardenhq/warden/pkg/panel/store"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage nodes (list, add, remove)",
	Long: `Manage the node registry directly against the panel database.

These commands are intended for initial setup and recovery; day-to-day
node management goes through the REST API.`,
}

var nodeListOutput string

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered nodes with committed usage",
	RunE:  runNodeList,
}

var (
	nodeAddFQDN    string
	nodeAddMemory  int64
	nodeAddCPU     int64
	nodeAddDisk    int64
	nodeAddPrivate bool
)

var nodeAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new node",
	Args:  cobra.ExactArgs(1),
	RunE:  runNodeAdd,
}

var nodeRemoveForce bool

var nodeRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a node from the registry",
	Long: `Remove a node from the registry.

Nodes that still host servers cannot be removed; decommission the
servers first.`,
	Args: cobra.ExactArgs(1),
	RunE: runNodeRemove,
}

func init() {
	nodeListCmd.Flags().StringVarP(&nodeListOutput, "output", "o", "table", "Output format (table, json, yaml)")

	nodeAddCmd.Flags().StringVar(&nodeAddFQDN, "fqdn", "", "Node FQDN or address")
	nodeAddCmd.Flags().Int64Var(&nodeAddMemory, "memory-mb", 0, "Memory capacity in MiB")
	nodeAddCmd.Flags().Int64Var(&nodeAddCPU, "cpu-percent", 0, "CPU capacity in percent (100 per core)")
	nodeAddCmd.Flags().Int64Var(&nodeAddDisk, "disk-mb", 0, "Disk capacity in MiB")
	nodeAddCmd.Flags().BoolVar(&nodeAddPrivate, "private", false, "Exclude the node from automatic placement")

	nodeRemoveCmd.Flags().BoolVar(&nodeRemoveForce, "force", false, "Skip the confirmation prompt")

	nodeCmd.AddCommand(nodeListCmd)
	nodeCmd.AddCommand(nodeAddCmd)
	nodeCmd.AddCommand(nodeRemoveCmd)
}

// openStore loads configuration and opens the panel store for CLI use.
func openStore() (*store.GORMStore, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open panel store: %w", err)
	}
	return st, nil
}

func runNodeList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(nodeListOutput)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	nodes, err := st.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	if format != output.FormatTable {
		printer := output.NewPrinter(os.Stdout, format)
		return printer.Print(nodes)
	}

	if len(nodes) == 0 {
		fmt.Println("No nodes registered")
		return nil
	}

	table := output.NewTableData("NAME", "FQDN", "MEMORY (MB)", "CPU (%)", "DISK (MB)", "SCHEDULABLE")
	for _, n := range nodes {
		committed, err := st.NodeCommittedUsage(ctx, n.ID)
		if err != nil {
			committed = models.Resources{}
		}
		table.AddRow(
			n.Name,
			n.FQDN,
			fmt.Sprintf("%d/%d", committed.MemoryMB, n.Capacity.MemoryMB),
			fmt.Sprintf("%d/%d", committed.CPUPercent, n.Capacity.CPUPercent),
			fmt.Sprintf("%d/%d", committed.DiskMB, n.Capacity.DiskMB),
			strconv.FormatBool(n.Schedulable()),
		)
	}
	return output.PrintTable(os.Stdout, table)
}

func runNodeAdd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	node := &models.Node{
		Name: args[0],
		FQDN: nodeAddFQDN,
		Capacity: models.Resources{
			MemoryMB:   nodeAddMemory,
			CPUPercent: nodeAddCPU,
			DiskMB:     nodeAddDisk,
		},
		Active: true,
		Public: !nodeAddPrivate,
	}
	if err := node.Validate(); err != nil {
		return err
	}

	if _, err := st.CreateNode(context.Background(), node); err != nil {
		return fmt.Errorf("failed to register node: %w", err)
	}

	fmt.Printf("Node %q registered (id: %s)\n", node.Name, node.ID)
	return nil
}

func runNodeRemove(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	node, err := st.GetNodeByName(ctx, args[0])
	if err != nil {
		return fmt.Errorf("unknown node %q: %w", args[0], err)
	}

	confirmed, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Remove node %q from the registry?", node.Name),
		nodeRemoveForce,
	)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Aborted")
		return nil
	}

	if err := st.DeleteNode(ctx, node.ID); err != nil {
		if errors.Is(err, models.ErrNodeInUse) {
			return fmt.Errorf("node %q still hosts servers; decommission them first", node.Name)
		}
		return fmt.Errorf("failed to remove node: %w", err)
	}

	fmt.Printf("Node %q removed\n", node.Name)
	return nil
}
