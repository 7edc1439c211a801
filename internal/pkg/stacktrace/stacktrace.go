// Package stacktrace trims goroutine dumps down to this module's frames.
package stacktrace

import "strings"

const marker = "/internal/"

// InternalPaths returns "internal/<pkg>/<file>.go:<line>" for every frame in
// stack that points into an internal package, outermost call last.
func InternalPaths(stack []byte) []string {
	var paths []string

	for _, line := range strings.Split(string(stack), "\n") {
		line = strings.TrimSpace(line)

		loc, _, _ := strings.Cut(line, " +0x")
		if !strings.Contains(loc, ".go:") {
			continue
		}

		_, rest, ok := strings.Cut(loc, marker)
		if !ok {
			continue
		}

		paths = append(paths, strings.TrimPrefix(marker, "/")+rest)
	}

	return paths
}
