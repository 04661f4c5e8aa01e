package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/StarshatterWars/SSW-UE55-sub001/tools/replay_catalog"
)

func main() {
	root := flag.String("dir", ".", "directory containing mission recordings")
	mission := flag.String("mission", "", "only list bundles for this mission")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	flag.Parse()

	entries, err := replaycatalog.List(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	entries = replaycatalog.Filter(entries, *mission)

	if *jsonFlag {
		payload, err := replaycatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		recorded := entry.Manifest.CreatedAt
		if recorded == "" {
			recorded = "unknown time"
		}
		fmt.Printf("%s  %s  %d KiB\n", entry.Header.Mission, recorded, entry.Bytes/1024)
		if entry.Header.Seed != "" {
			fmt.Printf("  seed: %s\n", entry.Header.Seed)
		}
		if len(entry.Header.Regions) > 0 {
			fmt.Printf("  regions: %s\n", strings.Join(entry.Header.Regions, ", "))
		}
		fmt.Printf("  bundle: %s\n", entry.Dir)
	}
}
