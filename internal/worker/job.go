package worker

import "path/filepath"

// Job asks the pipeline to look at one save file.
type Job struct {
	Slot string
	Path string
}

// NewJob derives the slot from the save file's base name.
func NewJob(path string) Job {
	return Job{Slot: filepath.Base(path), Path: path}
}
