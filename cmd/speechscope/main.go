package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"speechscope/internal/app"
)

const version = "1.0"

// main is the service entry point
func main() {
	var (
		helpFlag    = flag.Bool("help", false, "Show help message")
		versionFlag = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	if err := runApplication(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// runApplication contains the core application logic that can be tested
func runApplication() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("speechscope starting up",
		zap.String("component", "main"),
		zap.String("version", version))

	application, err := app.NewApplication()
	if err != nil {
		logger.Error("failed to create application", zap.Error(err))
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal",
			zap.String("signal", sig.String()),
			zap.String("component", "main"))
		cancel()
	}()

	if err := application.Run(ctx); err != nil {
		logger.Error("application runtime error", zap.Error(err))
		return fmt.Errorf("application runtime error: %w", err)
	}

	if err := application.Shutdown(); err != nil {
		logger.Error("error during application shutdown", zap.Error(err))
		return fmt.Errorf("application shutdown error: %w", err)
	}

	logger.Info("speechscope stopped successfully", zap.String("component", "main"))
	return nil
}

// printHelp displays command line usage information
func printHelp() {
	fmt.Println("speechscope - Speech Analysis Pipeline")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    speechscope [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("    -help      Show this help message")
	fmt.Println("    -version   Show version information")
	fmt.Println()
	fmt.Println("CONFIGURATION:")
	fmt.Println("    Set CONFIG_PATH to load settings from a YAML file,")
	fmt.Println("    otherwise SPEECHSCOPE_* environment variables are used.")
	fmt.Println()
	fmt.Println("ENDPOINTS:")
	fmt.Println("    POST /analyze   multipart audio upload with optional start/end trim range")
	fmt.Println("    GET  /healthz   liveness probe")
}

// printVersion displays version and build information
func printVersion() {
	fmt.Println("speechscope")
	fmt.Printf("Version: %s\n", version)
	fmt.Println("Pipeline: transcription -> alignment -> diarization -> emotion -> report")
}
