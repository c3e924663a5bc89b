package main

import (
	"fmt"
	"os"

	"github.com/memflow/memflow-registry/internal/pluginuri"
	"github.com/memflow/memflow-registry/internal/registryclient"
)

func runDelete(args []string) error {
	fs := newFlagSet("delete")
	registry := fs.String("registry", pluginuri.DefaultRegistry, "registry base URL")
	token := fs.String("bearer-token", os.Getenv("MEMFLOW_BEARER_TOKEN"), "bearer token for the write endpoint")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: memflow-sign delete -registry <url> <digest>")
	}

	client := registryclient.NewClient()
	if err := client.Delete(*registry, fs.Arg(0), *token); err != nil {
		return err
	}

	fmt.Println("deleted")
	return nil
}
