package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cuemby/frontier/pkg/controller"
	"github.com/cuemby/frontier/pkg/storage"
	"github.com/cuemby/frontier/pkg/ts"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect ID",
	Short: "Print a collection's since, capabilities, frontiers and shard ids",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("controllerd: invalid collection id %q: %w", args[0], err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	shardStore, err := storage.NewBoltShardStore(filepath.Join(cfg.DataDir, "shards.db"), ts.Int64Domain)
	if err != nil {
		return fmt.Errorf("controllerd: open shard store: %w", err)
	}
	defer shardStore.Close()

	catalog, err := storage.NewBoltCatalog(filepath.Join(cfg.DataDir, "catalog.db"))
	if err != nil {
		return fmt.Errorf("controllerd: open catalog: %w", err)
	}
	defer catalog.Close()

	channel := controller.NewChannelWorkerChannel[int64](1)
	ctrl := controller.New[int64](ts.Int64Domain, shardStore, catalog, channel)
	defer ctrl.Shutdown()

	cs, err := ctrl.Collection(controller.CollectionID(id))
	if err != nil {
		return err
	}

	fmt.Printf("Collection: %d\n", id)
	fmt.Printf("  Description:       %s\n", cs.Description)
	fmt.Printf("  Since:             %v\n", cs.Since.Elements())
	fmt.Printf("  Read capabilities: %v\n", cs.ReadCapabilities.Frontier().Elements())
	fmt.Printf("  Implied capability: %v\n", cs.ImpliedCapability.Elements())
	fmt.Printf("  Write frontier:    %v\n", cs.WriteFrontier.Frontier().Elements())
	fmt.Printf("  Persist shard:     %s\n", cs.PersistShardID)
	fmt.Printf("  Timestamp shard:   %s\n", cs.TimestampShardID)
	return nil
}
