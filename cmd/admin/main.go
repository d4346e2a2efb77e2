package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "bootstrap":
			getCmd("bootstrap", "/observer/bootstrap", os.Args[2:])
			return
		case "metrics":
			getCmd("metrics", "/metrics", os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the episode ids that have tick logs under the data dir.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	ids, err := listEpisodes(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

func listEpisodes(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dataDir, "episodes"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
