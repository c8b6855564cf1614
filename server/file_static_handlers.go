package server

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

func StaticFilesFS() fs.FS {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("Failed to create sub filesystem: " + err.Error())
	}
	return subFS
}

// StreamFile serves an embedded asset. Missing files and directories are
// reported as fs.ErrNotExist without writing a response.
func StreamFile(w http.ResponseWriter, r *http.Request, fileName string) error {
	if !fs.ValidPath(fileName) {
		return fmt.Errorf("invalid static path %q: %w", fileName, fs.ErrNotExist)
	}
	info, err := fs.Stat(StaticFilesFS(), fileName)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", fileName, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", fileName, fs.ErrNotExist)
	}

	http.ServeFileFS(w, r, StaticFilesFS(), fileName)
	return nil
}
