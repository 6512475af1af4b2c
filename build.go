//go:build ignore
// +build ignore

// run from root with `go run build.go [-all]`
package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type platform struct {
	os   string
	arch string
	ext  string
}

func main() {
	fmt.Printf("%s=== Building SaveBackupManager ===%s\n", colorCyan, colorReset)

	platforms := []platform{{"linux", "amd64", ".x86_64"}}
	if len(os.Args) > 1 && os.Args[1] == "-all" {
		platforms = append(platforms, platform{"windows", "amd64", ".exe"})
	}

	for _, p := range platforms {
		fmt.Printf("%s\nBuilding for %s/%s...%s\n", colorBlue, p.os, p.arch, colorReset)

		outputPath := filepath.Join("./", "SaveBackupManager"+p.ext)
		cmd := exec.Command("go", "build", "-trimpath", "-ldflags=-s -w", "-o", outputPath, ".")
		cmd.Env = append(os.Environ(), "GOOS="+p.os, "GOARCH="+p.arch, "CGO_ENABLED=0")

		if out, err := cmd.CombinedOutput(); err != nil {
			fmt.Printf("%s✗ Build failed for %s/%s:%s %s\nOutput: %s\n",
				colorRed, p.os, p.arch, colorReset, err, string(out))
			log.Fatalf("Build process terminated")
		}

		fmt.Printf("%s✓ Build successful!%s Created: %s%s%s\n",
			colorGreen, colorReset, colorYellow, outputPath, colorReset)
	}

	fmt.Printf("%s\n=== Build Completed ===%s\n", colorCyan, colorReset)
}
