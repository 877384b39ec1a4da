package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

/**
 * @brief Watches a directory tree and pushes EVENT_CODE_SHADER_CHANGED for
 * every written or created shader binary.
 */
type ShaderWatcher struct {
	fsnotify *fsnotify.Watcher
	events   *core.EventQueue

	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	isClosed bool
}

func NewShaderWatcher(dir string, events *core.EventQueue) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	sw := &ShaderWatcher{
		fsnotify: fsWatch,
		events:   events,
		done:     make(chan struct{}),
	}
	if err := sw.watchRecursive(dir); err != nil {
		fsWatch.Close()
		return nil, err
	}
	sw.wg.Add(1)
	go sw.start()
	core.LogInfo("Watching %s for shader changes.", dir)
	return sw, nil
}

// watchRecursive adds dir and every directory under it.
func (sw *ShaderWatcher) watchRecursive(dir string) error {
	return filepath.Walk(dir, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return sw.fsnotify.Add(walkPath)
		}
		return nil
	})
}

func (sw *ShaderWatcher) start() {
	defer sw.wg.Done()
	for {
		select {
		case e, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			sw.handle(e)
		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("Shader watcher: %v", err)
		case <-sw.done:
			return
		}
	}
}

func (sw *ShaderWatcher) handle(e fsnotify.Event) {
	if e.Has(fsnotify.Create) {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := sw.watchRecursive(e.Name); err != nil {
				core.LogWarn("Cannot watch new directory %s: %v", e.Name, err)
			}
			return
		}
	}
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	if DetermineAssetType(e.Name) != metadata.ResourceTypeShader {
		return
	}
	sw.events.Push(core.EventContext{
		Code: core.EVENT_CODE_SHADER_CHANGED,
		Path: e.Name,
	})
}

func (sw *ShaderWatcher) Close() error {
	sw.mu.Lock()
	if sw.isClosed {
		sw.mu.Unlock()
		return errors.New("shader watcher already closed")
	}
	sw.isClosed = true
	sw.mu.Unlock()

	close(sw.done)
	err := sw.fsnotify.Close()
	sw.wg.Wait()
	return err
}
