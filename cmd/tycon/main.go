package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/broady/tycon"
	"github.com/broady/tycon/cmd/tycon/internal/annotations"
)

type CLI struct {
	Version     VersionCmd      `cmd:"" help:"Print version information."`
	Resolve     ResolveCmd      `cmd:"" help:"Resolve type declarations and print their normalized form."`
	Annotations annotations.Cmd `cmd:"" help:"List and check //tycon: type annotations in a Go package."`
	Config      ConfigCmd       `cmd:"" help:"Print the feature set loaded from TYCON_* environment variables."`
}

type VersionCmd struct {
	Verbose bool `help:"Include the Go version and VCS revision." short:"v"`
}

func (c *VersionCmd) Run() error {
	if !c.Verbose {
		fmt.Println(Version())
		return nil
	}
	info, ok := debug.ReadBuildInfo()
	fmt.Print(newBuildInfo(embeddedVersion, info, ok).details())
	return nil
}

type ResolveCmd struct {
	Decls []string `arg:"" help:"Type declarations, e.g. '?Promise<Iterable<integer|float>>'."`
	Param bool     `help:"Resolve in parameter position." short:"p"`
}

func (c *ResolveCmd) Run() error {
	r := tycon.NewResolver(annotations.Placeholder)
	failed := 0
	for _, decl := range c.Decls {
		td, err := r.Resolve(tycon.T(decl), nil, c.Param)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", decl, err)
			failed++
			continue
		}
		fmt.Printf("✓ %s => %s\n", decl, td)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d declarations failed to resolve", failed, len(c.Decls))
	}
	return nil
}

type ConfigCmd struct{}

func (c *ConfigCmd) Run() error {
	cfg, err := tycon.ConfigFromEnv()
	if err != nil {
		return err
	}
	fmt.Println(cfg.Features())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("tycon"),
		kong.Description("tycon CLI for inspecting type contracts."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
