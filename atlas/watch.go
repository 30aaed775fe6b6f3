package atlas

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/batch/internal/logging"
)

// ErrWatcherClosed is returned when using a closed FileWatcher.
var ErrWatcherClosed = errors.New("atlas: file watcher closed")

type watched struct {
	h    *Handle
	opts []SourceOption
}

// FileWatcher reloads file-backed handles when their files change on
// disk. Reloaded images reach the packer through EnqueueUpdate and are
// applied at the next Flush.
type FileWatcher struct {
	packer  *Packer
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	files  map[string][]watched
	dirs   map[string]int
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewFileWatcher starts a watcher feeding p. Handles are unwatched when
// p frees them after their last release.
func NewFileWatcher(p *Packer) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &FileWatcher{
		packer:  p,
		watcher: w,
		files:   make(map[string][]watched),
		dirs:    make(map[string]int),
		done:    make(chan struct{}),
	}
	p.freed = append(p.freed, fw.forget)
	fw.wg.Add(1)
	go fw.run()
	return fw, nil
}

// Watch reloads h from url (a path or file:// URL) whenever the file is
// created or written. The directory is watched so editors that replace
// files by rename are seen too. Watching the same handle and url again
// has no effect.
func (fw *FileWatcher) Watch(url string, h *Handle, opts ...SourceOption) error {
	path, err := filepath.Abs(FilePath(url))
	if err != nil {
		return err
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.closed {
		return ErrWatcherClosed
	}
	if slices.ContainsFunc(fw.files[path], func(w watched) bool { return w.h == h }) {
		return nil
	}
	dir := filepath.Dir(path)
	if fw.dirs[dir] == 0 {
		if err := fw.watcher.Add(dir); err != nil {
			return err
		}
	}
	fw.dirs[dir]++
	fw.files[path] = append(fw.files[path], watched{h: h, opts: opts})
	return nil
}

// Unwatch stops reloading every handle registered for url.
func (fw *FileWatcher) Unwatch(url string) error {
	path, err := filepath.Abs(FilePath(url))
	if err != nil {
		return err
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	n := len(fw.files[path])
	if n == 0 {
		return nil
	}
	delete(fw.files, path)
	return fw.dropDir(filepath.Dir(path), n)
}

// forget unwatches every registration of h.
func (fw *FileWatcher) forget(h *Handle) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	for path, ws := range fw.files {
		n := len(ws)
		ws = slices.DeleteFunc(ws, func(w watched) bool { return w.h == h })
		if len(ws) == n {
			continue
		}
		if len(ws) == 0 {
			delete(fw.files, path)
		} else {
			fw.files[path] = ws
		}
		if err := fw.dropDir(filepath.Dir(path), n-len(ws)); err != nil {
			logging.Logger().Debug("atlas: unwatch", "path", path, "err", err)
		}
	}
}

// dropDir removes n registrations from dir. Callers hold fw.mu.
func (fw *FileWatcher) dropDir(dir string, n int) error {
	fw.dirs[dir] -= n
	if fw.dirs[dir] > 0 {
		return nil
	}
	delete(fw.dirs, dir)
	if fw.closed {
		return nil
	}
	return fw.watcher.Remove(dir)
}

func (fw *FileWatcher) run() {
	defer fw.wg.Done()
	for {
		select {
		case e, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				fw.reload(filepath.Clean(e.Name))
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Logger().Error("atlas: file watcher", "err", err)
		case <-fw.done:
			return
		}
	}
}

func (fw *FileWatcher) reload(path string) {
	fw.mu.Lock()
	targets := append([]watched(nil), fw.files[path]...)
	fw.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	for _, t := range targets {
		f, err := os.Open(path)
		if err != nil {
			logging.Logger().Warn("atlas: reload", "path", path, "err", err)
			return
		}
		src, err := DecodeImage(f, t.opts...)
		f.Close()
		if err != nil {
			// Writers often produce partial files; the next write event retries.
			logging.Logger().Debug("atlas: reload decode", "path", path, "err", err)
			return
		}
		logging.Logger().Info("atlas: reloaded", "path", path)
		fw.packer.EnqueueUpdate(t.h, src)
	}
}

// Close stops the watcher.
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return nil
	}
	fw.closed = true
	fw.mu.Unlock()
	close(fw.done)
	err := fw.watcher.Close()
	fw.wg.Wait()
	return err
}
