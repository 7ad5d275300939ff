package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/shirou/gopsutil/v3/mem"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  poharvest environment check")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	goVersion := runtime.Version()
	fmt.Printf("✅ Go version: %s\n", goVersion)
	if strings.HasPrefix(goVersion, "go1.21") || strings.HasPrefix(goVersion, "go1.22") {
		fmt.Println("⚠️  warning: go.mod requires Go 1.23+")
	}

	fmt.Printf("✅ OS: %s/%s, %d CPUs\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())

	// every worker holds one incognito context of a single shared browser
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Printf("✅ available memory: %d MB\n", vm.Available/1024/1024)
		if vm.Available < 2*1024*1024*1024 {
			fmt.Println("⚠️  less than 2 GB free, lower run.workers")
		}
	} else {
		fmt.Printf("⚠️  cannot read memory: %v\n", err)
	}

	if path, found := launcher.LookPath(); found {
		fmt.Printf("✅ browser found: %s\n", path)
	} else {
		fmt.Println("⚠️  no local Chromium found - rod will download one on first run")
		fmt.Println("   or set browser.bin in configs/config.yaml")
	}

	fmt.Println()
	fmt.Println("checking Go modules...")
	if _, err := os.Stat("go.mod"); err == nil {
		fmt.Println("✅ go.mod present")

		fmt.Println("downloading dependencies...")
		cmd := exec.Command("go", "mod", "download")
		if err := cmd.Run(); err != nil {
			fmt.Printf("❌ go mod download failed: %v\n", err)
			allOK = false
		} else {
			fmt.Println("✅ dependencies downloaded")
		}
	} else {
		fmt.Println("❌ go.mod missing")
		allOK = false
	}

	fmt.Println()
	fmt.Println("checking project layout...")
	requiredDirs := []string{
		"cmd/poharvest",
		"internal/core",
		"internal/crawlers",
		"internal/rules",
		"internal/storage",
		"internal/utils",
		"internal/models",
		"scripts",
	}

	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ missing\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ environment ready")
		fmt.Println()
		fmt.Println("next steps:")
		fmt.Println("  1. go build -o poharvest ./cmd/poharvest")
		fmt.Println("  2. export POHARVEST_CREDENTIALS_USERNAME / POHARVEST_CREDENTIALS_PASSWORD")
		fmt.Println("  3. ./poharvest login && ./poharvest -p 3")
		os.Exit(0)
	}
	fmt.Println("❌ environment check failed, fix the issues above")
	os.Exit(1)
}
