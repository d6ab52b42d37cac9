package site

import (
	"fmt"
	"os"
)

// processLock is a simple exclusive lock file under the state
// directory: os.OpenFile with O_EXCL, holding the creating process's
// pid for debugging.
type processLock struct {
	path string
	file *os.File
}

func acquireProcessLock(path string) (*processLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("another instance is already running (lock file %s exists)", path)
		}
		return nil, fmt.Errorf("acquiring process lock: %w", err)
	}
	fmt.Fprintf(file, "%d\n", os.Getpid())
	return &processLock{path: path, file: file}, nil
}

func (l *processLock) release() {
	if l == nil {
		return
	}
	if l.file != nil {
		l.file.Close()
	}
	os.Remove(l.path)
}
