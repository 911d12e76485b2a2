// depscheck enforces the one import-boundary rule the layout depends on:
// only internal/dispatch may reach into the session/sessionmanager state
// machine. Every other consumer, including the transport, goes through the
// dispatcher's narrow Sender/HandleXxx surface instead.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

type packageInfo struct {
	ImportPath string
	Imports    []string
}

var forbiddenFromOutsideDispatch = []string{
	"realms/server/internal/session",
	"realms/server/internal/sessionmanager",
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))

	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
			os.Exit(1)
		}

		if pkg.ImportPath == "realms/server/internal/dispatch" {
			continue
		}
		if strings.HasPrefix(pkg.ImportPath, "realms/server/internal/session") ||
			strings.HasPrefix(pkg.ImportPath, "realms/server/internal/sessionmanager") {
			continue
		}

		for _, imp := range pkg.Imports {
			for _, forbidden := range forbiddenFromOutsideDispatch {
				if imp == forbidden {
					violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}
