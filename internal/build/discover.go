package build

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/globalesm/pkg/jsparse"
)

const nodeModules = "node_modules"

// Source is a discovered module file and the root its name is relative to.
type Source struct {
	Path string
	Root string
}

// Discover expands paths into module sources. Directories are walked,
// skipping hidden directories and node_modules, and keep only module files.
// Files named explicitly are kept whatever their extension and are rooted
// at the working directory.
func Discover(paths []string) ([]Source, error) {
	var sources []Source

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		if !info.IsDir() {
			sources = append(sources, Source{Path: path, Root: "."})

			continue
		}

		found, err := walkModules(path)
		if err != nil {
			return nil, err
		}

		sources = append(sources, found...)
	}

	return sources, nil
}

func walkModules(root string) ([]Source, error) {
	var sources []Source

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if path != root && skipDir(entry.Name()) {
				return filepath.SkipDir
			}

			return nil
		}

		if entry.Type().IsRegular() && jsparse.IsModuleFile(path) {
			sources = append(sources, Source{Path: path, Root: root})
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return sources, nil
}

// skipDir reports directories never searched for modules: hidden ones
// (except "." and "..") and node_modules.
func skipDir(name string) bool {
	return name == nodeModules || (len(name) > 1 && name[0] == '.' && name != "..")
}

// ModuleName derives the registry key of path: its slash-separated path
// relative to root, prefixed by prefix. Paths outside root fall back to the
// base name.
func ModuleName(root, path, prefix string) string {
	return prefix + relPath(root, path)
}

// OutputPath mirrors path under outDir, relative to root.
func OutputPath(root, path, outDir string) string {
	return filepath.Join(outDir, filepath.FromSlash(relPath(root, path)))
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(path)
	}

	return filepath.ToSlash(rel)
}

// Plan turns sources into jobs. An empty outDir leaves OutPath unset.
func Plan(sources []Source, outDir, prefix string) []Job {
	jobs := make([]Job, 0, len(sources))

	for _, src := range sources {
		job := Job{
			Path:       src.Path,
			ModuleName: ModuleName(src.Root, src.Path, prefix),
		}

		if outDir != "" {
			job.OutPath = OutputPath(src.Root, src.Path, outDir)
		}

		jobs = append(jobs, job)
	}

	return jobs
}
