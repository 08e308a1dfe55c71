// tablet-inspect opens a tablet's block directory, loads its superblock
// through the master anchors and prints the rowset layout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/INLOpen/tabletstore/blockstore"
	"github.com/INLOpen/tabletstore/core"
	"github.com/INLOpen/tabletstore/metadata"
)

func main() {
	dataDir := flag.String("data-dir", "", "The tablet's block directory (required)")
	tabletID := flag.String("tablet-id", "", "The tablet id recorded in the superblock (required)")
	anchorA := flag.Uint64("anchor-a", 0, "Block id of the first superblock anchor (required)")
	anchorB := flag.Uint64("anchor-b", 0, "Block id of the second superblock anchor (required)")
	verbose := flag.Bool("v", false, "Log at debug level")
	flag.Parse()

	if *dataDir == "" || *tabletID == "" || *anchorA == 0 || *anchorB == 0 {
		fmt.Fprintln(os.Stderr, "Error: -data-dir, -tablet-id, -anchor-a and -anchor-b are required.")
		flag.Usage()
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := blockstore.Open(*dataDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening block store: %v\n", err)
		os.Exit(1)
	}

	tm, err := metadata.New(metadata.Options{
		TabletID: *tabletID,
		MasterBlock: metadata.MasterBlock{
			AnchorA: core.BlockID(*anchorA),
			AnchorB: core.BlockID(*anchorB),
		},
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := tm.Load(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading superblock: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Tablet:    %s\n", tm.TabletID())
	fmt.Printf("Start key: %q\n", tm.StartKey())
	fmt.Printf("End key:   %q\n", tm.EndKey())

	rowsets := tm.Rowsets()
	if len(rowsets) == 0 {
		fmt.Println("No rowsets.")
		return
	}
	fmt.Printf("Rowsets:   %d\n\n", len(rowsets))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tCOLUMNS\tBLOOM\tAD-HOC INDEX\tDELTAS")
	fmt.Fprintln(w, "--\t-------\t-----\t------------\t------")
	for _, rs := range rowsets {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\n",
			rs.ID(),
			rs.ColumnBlocksCount(),
			rs.BloomBlockID(),
			rs.AdHocIndexBlockID(),
			rs.DeltaBlocksCount(),
		)
	}
	w.Flush()
}
