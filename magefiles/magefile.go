//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gogpu/naga"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default runs lint and the full test suite.
var Default = All

// All validates shaders, lints and tests.
func All() {
	mg.SerialDeps(Build.Shaders, Lint, Test.Unit)
}

type Build mg.Namespace

// Shaders compiles every embedded WGSL file with naga.
func (Build) Shaders() error {
	files, err := filepath.Glob(filepath.Join("shapes", "shaders", "*.wgsl"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no shaders found")
	}
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := naga.Compile(string(src)); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		if mg.Verbose() {
			fmt.Println("ok", f)
		}
	}
	return nil
}

// Demo builds cmd/batchdemo into bin/.
func (Build) Demo() error {
	return sh.RunV("go", "build", "-o", filepath.Join("bin", "batchdemo"), "./cmd/batchdemo")
}

// Lint runs go vet, and golangci-lint when it is installed.
func Lint() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	if _, err := sh.Output("golangci-lint", "version"); err != nil {
		fmt.Println("golangci-lint not installed, skipping")
		return nil
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

type Test mg.Namespace

// Unit runs the test suite with the race detector.
func (Test) Unit() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Headless runs the test suite without GPU packages.
func (Test) Headless() error {
	return sh.RunV("go", "test", "-tags", "nogpu", "./...")
}

// Demo renders the demo scene on the memory backend.
func (Test) Demo() error {
	return sh.RunV("go", "run", "./cmd/batchdemo", "-backend", "memory", "-frames", "60")
}
