package cmd

import (
	"fmt"

	"github.com/go-drift/mend/cmd/mend/internal/config"
)

func init() {
	RegisterCommand(&Command{
		Name:  "doctor",
		Short: "Validate and print the effective configuration",
		Long: `Load mend.yaml from the project directory, validate it, and print
the effective policy after defaults are applied.

The project root is the nearest directory with a go.mod, or the
--dir override.`,
		Usage: "mend doctor",
		Run:   runDoctor,
	})
}

func runDoctor(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("doctor takes no arguments")
	}

	dir := projectDir
	if dir == "." {
		dir = config.FindProjectRoot()
	}
	cfg, err := config.Resolve(dir)
	if err != nil {
		return err
	}

	fmt.Printf("Project:  %s\n", config.ProjectName(cfg.ModulePath, cfg.Root))
	if cfg.ModulePath != "" {
		fmt.Printf("Module:   %s\n", cfg.ModulePath)
	} else {
		fmt.Println("Module:   (no go.mod found)")
	}
	fmt.Printf("Root:     %s\n", cfg.Root)
	fmt.Println()

	fmt.Println("Policy:")
	fmt.Printf("  window:      %s\n", cfg.Policy.Window.Std())
	fmt.Printf("  traceDepth:  %d\n", cfg.Policy.TraceDepth)
	if cfg.Policy.LogCap > 0 {
		fmt.Printf("  logCap:      %d\n", cfg.Policy.LogCap)
	} else {
		fmt.Println("  logCap:      unbounded")
	}
	fmt.Printf("  debug:       %t\n", cfg.Policy.Debug)

	fmt.Println("Retry:")
	fmt.Printf("  maxRetries:  %d\n", cfg.Retry.MaxRetries)
	fmt.Printf("  delay:       %s\n", cfg.Retry.Delay.Std())

	fmt.Println("Storm:")
	fmt.Printf("  workers:     %d\n", cfg.Storm.Workers)
	fmt.Printf("  duration:    %s\n", cfg.Storm.Duration.Std())
	fmt.Printf("  metricsAddr: %s\n", cfg.Storm.MetricsAddr)

	fmt.Println()
	fmt.Println("Configuration OK.")
	return nil
}
