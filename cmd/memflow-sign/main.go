// Command memflow-sign is the operator-facing client for the memflow plugin
// registry: it generates signing keypairs, signs plugin binaries, and
// uploads/downloads/deletes them against a running registry.
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "keygen":
		err = runKeygen(os.Args[2:])
	case "sign":
		err = runSign(os.Args[2:])
	case "upload":
		err = runUpload(os.Args[2:])
	case "download":
		err = runDownload(os.Args[2:])
	case "delete":
		err = runDelete(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "memflow-sign: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "memflow-sign: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: memflow-sign <command> [flags]

commands:
  keygen    generate a secp256k1 signing keypair
  sign      sign a plugin binary, producing a detached hex signature
  upload    sign (optional) and upload a plugin binary to a registry
  download  download a plugin binary from a registry by name[:version]
  delete    delete a plugin binary from a registry by digest`)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs
}
