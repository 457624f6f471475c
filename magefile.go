//go:build mage

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const pkg = "./cmd/pathflow"

const ldflags = "-s -w"

// Build builds Pathflow for Linux with Green Tea GC
func Build() error {
	fmt.Println("Building Pathflow for Linux with Go 1.25 + Green Tea GC...")
	env := map[string]string{
		"GOOS":         "linux",
		"GOARCH":       "amd64",
		"GOEXPERIMENT": "greenteagc",
	}
	return sh.RunWith(env, "go", "build", "-ldflags", ldflags, "-o", "pathflow-linux-amd64", pkg)
}

// BuildDocker builds the container variant (docker build tag)
func BuildDocker() error {
	fmt.Println("Building Pathflow with the docker tag...")
	env := map[string]string{"CGO_ENABLED": "0", "GOOS": "linux"}
	return sh.RunWith(env, "go", "build", "-tags", "docker", "-ldflags", ldflags, "-o", "pathflow", pkg)
}

// BuildLocal builds Pathflow for current platform
func BuildLocal() error {
	fmt.Printf("Building Pathflow for %s/%s...\n", runtime.GOOS, runtime.GOARCH)
	return sh.Run("go", "build", "-o", "pathflow", pkg)
}

// Test runs tests
func Test() error {
	fmt.Println("Running tests...")
	return sh.Run("go", "test", "-race", "./...")
}

// TestIntegration runs tests that need TEST_DATABASE_URL
func TestIntegration() error {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		return fmt.Errorf("TEST_DATABASE_URL must point at a PostgreSQL server")
	}
	fmt.Println("Running integration tests...")
	return sh.Run("go", "test", "-race", "-tags", "integration", "./...")
}

// Clean removes build artifacts
func Clean() error {
	fmt.Println("Cleaning build artifacts...")
	_ = os.Remove("pathflow")
	_ = os.Remove("pathflow-linux-amd64")
	return nil
}

// Fmt runs gofmt on all Go files
func Fmt() error {
	fmt.Println("Formatting code...")
	return sh.Run("go", "fmt", "./...")
}

// Vet runs go vet on all Go files
func Vet() error {
	fmt.Println("Vetting code...")
	return sh.Run("go", "vet", "./...")
}

// Bench runs benchmarks
func Bench() error {
	fmt.Println("Running benchmarks...")
	return sh.Run("go", "test", "-run=^$", "-bench=.", "./internal/journey/...")
}

// Deps downloads dependencies
func Deps() error {
	fmt.Println("Downloading dependencies...")
	return sh.Run("go", "mod", "download")
}

// Tidy tidies go.mod
func Tidy() error {
	fmt.Println("Tidying go.mod...")
	return sh.Run("go", "mod", "tidy")
}

// CI runs all checks for continuous integration
func CI() error {
	mg.SerialDeps(Deps, Fmt, Vet, Test)
	fmt.Println("All CI checks passed!")
	return nil
}
