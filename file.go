package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"cogru/server/internal/rope"
)

// File is the server-side editable mirror of one workspace file. The rope
// view is loaded from disk on first access and from then on is the
// authoritative content; the on-disk copy only catches up on save.
type File struct {
	Path    string // absolute path under the room root, slash-normalized
	RelPath string // Path with the room root stripped

	view  *rope.Rope
	chat  Chat
	useLF bool
}

// newFile builds a File for abs. When contents is non-nil the view is
// seeded from it immediately; otherwise the view loads lazily from disk.
func newFile(abs, rel string, contents *string, useLF bool) *File {
	f := &File{Path: abs, RelPath: rel, useLF: useLF}
	if contents != nil {
		f.view = rope.New(f.normalize(*contents))
	}
	return f
}

// normalize rewrites every line ending to LF when the room is configured
// with cogru.UseLF.
func (f *File) normalize(s string) string {
	if !f.useLF {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// ensureView loads the rope from disk if it has not been created yet.
func (f *File) ensureView() *rope.Rope {
	if f.view == nil {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			logrus.Warnf("[file] read %s: %v", f.Path, err)
			data = nil
		}
		f.view = rope.New(f.normalize(string(data)))
	}
	return f.view
}

// Buffer returns the rope view contents.
func (f *File) Buffer() string {
	return f.ensureView().String()
}

// Update applies one edit to the rope view. addOrDelete is "add" or
// "delete"; beg/end are rune offsets and contents is the inserted text.
func (f *File) Update(addOrDelete string, beg, end int, contents string) {
	view := f.ensureView()
	switch addOrDelete {
	case opAdd:
		view.Insert(beg, f.normalize(contents))
	case opDelete:
		view.Delete(beg, end)
	}
}

// Save writes the rope view back to disk.
func (f *File) Save() error {
	contents := f.Buffer()
	if err := os.WriteFile(f.Path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("save %s: %w", f.Path, err)
	}
	return nil
}

// ReadDisk returns the current on-disk contents, normalized. This can
// diverge from Buffer after unsaved edits.
func (f *File) ReadDisk() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Path, err)
	}
	return f.normalize(string(data)), nil
}

// Chat returns the per-file message log.
func (f *File) Chat() *Chat {
	return &f.chat
}
