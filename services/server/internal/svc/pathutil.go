package svc

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	serverRootOnce sync.Once
	serverRootPath string
)

func workspaceRoot() string {
	candidates := []string{}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, wd)
	}
	if exe, err := os.Executable(); err == nil {
		if exedir, err := filepath.EvalSymlinks(filepath.Dir(exe)); err == nil {
			candidates = append(candidates, exedir)
		} else {
			candidates = append(candidates, filepath.Dir(exe))
		}
	}
	for _, start := range candidates {
		dir := start
		for dir != "" {
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
				return dir
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return ""
}

func serverRoot() string {
	serverRootOnce.Do(func() {
		if root := workspaceRoot(); root != "" {
			candidate := filepath.Join(root, "services", "server")
			if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
				serverRootPath = candidate
				return
			}
		}
		if wd, err := os.Getwd(); err == nil {
			serverRootPath = wd
			return
		}
		serverRootPath = "."
	})
	return serverRootPath
}

// ResolveServerPath returns an absolute path rooted at the server package
// directory, so etc/ and data/ resolve the same from the repo root or from
// services/server.
func ResolveServerPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	if _, err := os.Stat(p); err == nil {
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
	}
	return filepath.Clean(filepath.Join(serverRoot(), p))
}
