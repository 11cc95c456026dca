package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/wsd/internal/debug"
	"github.com/standardbeagle/wsd/internal/mcp"
)

func mcpCommand(c *cli.Context) error {
	// Enable MCP mode to suppress all debug output on stdio
	debug.SetMCPMode(true)

	if debug.EnableDebug == "true" || os.Getenv("WSD_MCP_DEBUG") != "" {
		if logPath, err := debug.InitDebugLogFile(); err == nil {
			defer debug.CloseDebugLog()
			debug.EnableDebug = "true"
			// the log file is not stdio, so debug output may flow again
			debug.SetMCPMode(false)
			debug.LogMCP("debug log: %s\n", logPath)
		}
	}

	env, err := openEnvironment(c, false, true)
	if err != nil {
		return debug.Fatal("failed to initialize: %v\n", err)
	}
	defer env.Close()

	mcpServer := mcp.NewServer(env.cfg, env.scanner, env.source, env.suite)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- mcpServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return debug.Fatal("MCP server error: %v\n", err)
		}
		return nil
	case sig := <-sigChan:
		debug.LogMCP("Received signal %v, shutting down gracefully...\n", sig)
		cancel()

		shutdownTimer := time.NewTimer(2 * time.Second)
		defer shutdownTimer.Stop()

		select {
		case err := <-errChan:
			debug.LogMCP("Server shutdown completed\n")
			return err
		case <-shutdownTimer.C:
			debug.LogMCP("Graceful shutdown timeout, closing stdin\n")
			// Force close stdin to break the stdio transport loop
			os.Stdin.Close()
			return nil
		}
	}
}

