package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kbukum/diarkit/version"
)

func runVersion(_ context.Context, g *globalOptions, args []string) error {
	fs := newFlagSet(g, "version", "[--json]")
	asJSON := fs.Bool("json", false, "print build information as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	info := version.Get()
	if *asJSON {
		return json.NewEncoder(g.stdout).Encode(info)
	}
	fmt.Fprintf(g.stdout, "diarkit %s\n", info)
	return nil
}
