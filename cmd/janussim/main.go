package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"janussim/pkg/config"
	"janussim/pkg/experiment"
	"janussim/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "YAML experiment configuration (defaults apply when empty or missing)")
	presetName := flag.String("preset", "", "Named experiment preset: "+strings.Join(config.PresetNames(), ", "))
	modeName := flag.String("mode", "both", "Experiments to run: steering, sensitivity, or both")
	engineKind := flag.String("engine", "", "Override the transport engine: synthetic or external")
	engineCmd := flag.String("engine-cmd", "", "Command line of the external engine bridge (space separated)")
	outputDir := flag.String("output", "", "Override the output directory")
	workers := flag.Int("workers", -1, "Concurrent sweep points (0 = all cores, 1 = sequential)")
	initConfig := flag.String("init-config", "", "Write the selected configuration to this path and exit")
	extractSlices := flag.Bool("extract-slices", false, "Save every cross section of the steering flux along all axes")
	slicesDir := flag.String("slices-dir", "flux_slices", "Directory, inside the output directory, for extracted sections")
	quiet := flag.Bool("quiet", false, "Suppress progress output")
	flag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error
	if *presetName != "" {
		cfg, err = config.Preset(*presetName)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Apply overrides
	if *engineKind != "" {
		cfg.Engine.Kind = *engineKind
	}
	if *engineCmd != "" {
		cfg.Engine.Command = strings.Fields(*engineCmd)
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *workers >= 0 {
		cfg.Sweep.Workers = *workers
	}
	if *quiet {
		cfg.Output.Verbose = false
	}

	if *initConfig != "" {
		if err := config.SaveConfig(cfg, *initConfig); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Configuration written to: %s\n", *initConfig)
		return
	}

	mode, err := experiment.ParseMode(*modeName)
	if err != nil {
		log.Fatalf("Invalid mode: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	eng, err := experiment.NewEngine(cfg)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	logger := experiment.NewLogger(os.Stdout, cfg.Output.Verbose)
	pipeline := experiment.NewPipeline(cfg, eng, visualization.NewRenderer(), logger)

	fmt.Println("================================")
	fmt.Println("JANUS OPTICAL STEERING AND ANOMALY SENSITIVITY EXPERIMENTS")
	fmt.Printf("Run %s, %s engine\n", pipeline.RunID(), cfg.Engine.Kind)
	fmt.Println("================================")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startTime := time.Now()
	report, err := pipeline.Run(ctx, mode)
	if err != nil {
		log.Fatalf("Experiment failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nCompleted in %.2f seconds\n", processingTime.Seconds())

	if s := report.Steering; s != nil {
		fmt.Printf("\nSTEERING RESULTS:\n")
		fmt.Printf("=================\n")
		fmt.Printf("Exit plane: z=%d\n", s.ExitPlane)
		fmt.Printf("Centroid (%s): %.4f mm\n", s.Axis, s.Centroid)
		fmt.Printf("Measured Lateral Shift: %.4f mm\n", s.Displacement)
		if s.Target != nil {
			fmt.Printf("Target Displacement: %.3f mm (deviation %.4f mm)\n", *s.Target, *s.Deviation)
		}
		if s.TrailingDepth > 0 {
			fmt.Printf("Note: %d planes beyond the slab stack are ambient medium\n", s.TrailingDepth)
		}
		if s.Figure != "" {
			fmt.Printf("Figure saved as: %s\n", s.Figure)
		}
	}

	if s := report.Sensitivity; s != nil {
		fmt.Printf("\nSENSITIVITY RESULTS:\n")
		fmt.Printf("====================\n")
		fmt.Printf("%-12s %s\n", "Size (mm)", "Contrast")
		for _, p := range s.Points {
			fmt.Printf("%-12.2f %.6f\n", p.Size, p.Contrast)
		}
		if s.Figure != "" {
			fmt.Printf("Figure saved as: %s\n", s.Figure)
		}
	}

	reportPath := filepath.Join(cfg.Output.Dir, cfg.Output.Report)
	if err := experiment.SaveReport(report, reportPath); err != nil {
		log.Fatalf("Failed to save report: %v", err)
	}
	fmt.Printf("\nReport saved to: %s\n", reportPath)

	// Extract and save sections if requested
	if *extractSlices {
		if report.Steering == nil {
			log.Printf("Warning: -extract-slices needs the steering experiment, skipping")
			return
		}
		fmt.Println("\nExtracting flux sections along all axes...")
		viewer := visualization.NewViewer(report.Steering.Field, 0)
		renderer := visualization.NewRenderer()
		renderer.TargetWidth = 300

		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(cfg.Output.Dir, *slicesDir, axis)
			fmt.Printf("Saving %s-axis sections to: %s\n", axis, axisDir)

			if _, err := viewer.SaveSliceSequence(renderer, axis, axisDir); err != nil {
				log.Printf("Warning: Failed to save %s-axis sections: %v", axis, err)
			}
		}

		fmt.Println("Section extraction completed!")
	}
}
