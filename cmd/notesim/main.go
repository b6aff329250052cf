// Command notesim drives the notes hover core headlessly: it sweeps a list
// of entries the way a user would, against AniList or a synthetic fetcher,
// and inspects or purges the persisted cache.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
