package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/inject"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/server"
	"github.com/samber/do"
)

func printUsage() {
	program := os.Args[0]
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", program)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  serve      Serve the image generation form over HTTP")
	fmt.Fprintln(os.Stderr, "  generate   Generate a single image and save it")
	fmt.Fprintf(os.Stderr, "Use \"%s <command> -h\" for more information about a command.\n", program)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printUsage()
		return 1
	}
	switch args[0] {
	case "help", "--help", "-h":
		printUsage()
		return 0
	}

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	level, err := log.ParseLevel(settings.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(log.NewContext(context.Background(), log.New(os.Stderr, level)),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	injector := inject.Setup(ctx, settings)
	defer func() {
		_ = injector.Shutdown()
	}()

	switch args[0] {
	case "serve":
		err = do.MustInvoke[*server.Server](injector).Run(ctx)
	case "generate":
		err = generate(ctx, injector, settings, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		printUsage()
		return 1
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
