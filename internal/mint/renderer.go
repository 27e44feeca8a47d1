package mint

import "os"

// FileRenderer exports an artifact already rendered to a file on disk.
// Used by the CLI, where there is no live drawing surface.
type FileRenderer struct {
	Path string
}

func (r FileRenderer) Export() ([]byte, error) {
	return os.ReadFile(r.Path)
}
