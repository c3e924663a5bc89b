package main

import (
	"fmt"
	"os"

	"github.com/memflow/memflow-registry/internal/pluginuri"
	"github.com/memflow/memflow-registry/internal/registryclient"
)

func runDownload(args []string) error {
	fs := newFlagSet("download")
	out := fs.String("out", "", "output path; defaults to the plugin's digest")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: memflow-sign download <name[:version]|registry/name[:version]>")
	}
	uri := pluginuri.Parse(fs.Arg(0))

	client := registryclient.NewClient()
	variants, err := client.Variants(uri)
	if err != nil {
		return err
	}
	if len(variants) == 0 {
		return fmt.Errorf("no variant found for %s", uri.String())
	}

	// Variants come back in the registry's stored order (highest plugin
	// version first, newest first within a version), so the first entry is
	// the newest match at the highest plugin version.
	variant := variants[0]

	destPath := *out
	if destPath == "" {
		destPath = variant.Digest
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer f.Close()

	if err := client.Download(uri.Registry(), variant.Digest, f); err != nil {
		return err
	}

	fmt.Printf("downloaded %s (digest %s) to %s\n", uri.Name(), variant.Digest, destPath)
	return nil
}
