package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ticketops/access"
	"github.com/ticketops/access/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "apply":
		handleApply()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("access-config - Configuration tool for the access engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  access-config convert <input> <output>  - Convert between formats")
	fmt.Println("  access-config validate <file>           - Validate configuration")
	fmt.Println("  access-config stats <file>              - Show configuration statistics")
	fmt.Println("  access-config apply <file>              - Apply configuration to an engine")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: access-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := loadConfig(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: access-config validate <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Version:     %d\n", cfg.Version)
	fmt.Printf("  Roles:       %d\n", len(cfg.Roles))
	fmt.Printf("  Assignments: %d\n", len(cfg.Assignments))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: access-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	fmt.Println("Components:")
	fmt.Printf("  Roles:       %d\n", len(cfg.Roles))
	fmt.Printf("  Assignments: %d\n", len(cfg.Assignments))
	fmt.Println()

	if len(cfg.Roles) > 0 {
		totalPerms := 0
		conditioned := 0
		for _, r := range cfg.Roles {
			totalPerms += len(r.Permissions)
			for _, p := range r.Permissions {
				if len(p.Conditions) > 0 {
					conditioned++
				}
			}
		}
		fmt.Println("Role Details:")
		fmt.Printf("  Total permissions:       %d\n", totalPerms)
		fmt.Printf("  Conditional permissions: %d\n", conditioned)
		fmt.Printf("  Avg per role:            %.1f\n", float64(totalPerms)/float64(len(cfg.Roles)))
		fmt.Println()
	}

	fmt.Println("Engine Configuration:")
	fmt.Printf("  Access log cap: %d\n", cfg.Engine.AccessLogCap)
	fmt.Printf("  Audit log cap:  %d\n", cfg.Engine.AuditLogCap)
}

func handleApply() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: access-config apply <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	var opts []access.EngineOption
	if cfg.Engine.AccessLogCap > 0 {
		opts = append(opts, access.WithAccessLogCap(cfg.Engine.AccessLogCap))
	}
	if cfg.Engine.AuditLogCap > 0 {
		opts = append(opts, access.WithAuditLogCap(cfg.Engine.AuditLogCap))
	}

	engine, err := access.NewEngine(
		stores.NewMemorySubjectStore(),
		stores.NewMemoryRoleStore(),
		stores.NewMemoryPermissionStore(),
		stores.NewMemoryAssignmentStore(),
		stores.NewMemoryAccessLogStore(),
		stores.NewMemoryAuditLogStore(),
		opts...,
	)
	if err != nil {
		fmt.Printf("Error building engine: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	meta := access.MutationMeta{PerformedBy: "access-config", Reason: "apply " + filepath.Base(filename)}
	if err := engine.ApplyConfig(ctx, cfg, meta); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration applied successfully\n")
	fmt.Printf("  Roles loaded:       %d\n", len(cfg.Roles))
	fmt.Printf("  Assignments loaded: %d\n", len(cfg.Assignments))
	fmt.Printf("  Audit entries:      %d\n", engine.AuditLog().Len())
}

func loadConfig(filename string) (*access.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	loader := access.NewConfigLoader()
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func saveConfig(cfg *access.Config, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	var data []byte
	var err error
	switch ext {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
