package testutil

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/vrsandeep/anisync-go/internal/executor"
)

// FakeExecutor is an in-memory download client. A torrent added under
// "<hash>.torrent" is stored with id <hash>.
type FakeExecutor struct {
	mu       sync.Mutex
	torrents map[string]*executor.TorrentInfo
	// names holds the file name a torrent reports once added, by hash.
	names   map[string]string
	failAdd map[string]bool
	failAll bool
	// savePath is what DefaultSavePath reports.
	savePath string
	added    []AddCall
	renames  []RenameCall
	deleted  []string
	paused   []string
	resumed  []string
}

// AddCall records one AddTorrent invocation.
type AddCall struct {
	FileName  string
	TargetDir string
	Payload   []byte
}

// RenameCall records one RenameFile invocation.
type RenameCall struct {
	ID      string
	OldPath string
	NewPath string
}

var _ executor.Executor = (*FakeExecutor)(nil)

func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		torrents: make(map[string]*executor.TorrentInfo),
		names:    make(map[string]string),
		failAdd:  make(map[string]bool),
	}
}

// SetReportedName sets the file name a torrent reports after it is added.
// Without one, a torrent reports "<hash>.mp4".
func (f *FakeExecutor) SetReportedName(hash, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[hash] = name
	if info, ok := f.torrents[hash]; ok {
		info.Name = name
	}
}

// SetSavePath sets the directory DefaultSavePath reports.
func (f *FakeExecutor) SetSavePath(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savePath = path
}

// FailAdd makes AddTorrent fail for a file name.
func (f *FakeExecutor) FailAdd(fileName string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAdd[fileName] = fail
}

// FailAll makes every call fail as if the client were unreachable.
func (f *FakeExecutor) FailAll(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = fail
}

// Put stores a torrent directly, bypassing AddTorrent.
func (f *FakeExecutor) Put(info executor.TorrentInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.torrents[info.Hash] = &info
}

// Forget drops a torrent as if it had been removed outside the service.
func (f *FakeExecutor) Forget(hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.torrents, hash)
}

// SetProgress updates the progress of a stored torrent.
func (f *FakeExecutor) SetProgress(hash string, progress float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.torrents[hash]; ok {
		info.Progress = progress
	}
}

func (f *FakeExecutor) Added() []AddCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AddCall(nil), f.added...)
}

func (f *FakeExecutor) Renames() []RenameCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RenameCall(nil), f.renames...)
}

func (f *FakeExecutor) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *FakeExecutor) Paused() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paused...)
}

func (f *FakeExecutor) Resumed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resumed...)
}

// Has reports whether the client currently holds a torrent.
func (f *FakeExecutor) Has(hash string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.torrents[hash]
	return ok
}

func (f *FakeExecutor) unreachable(op string) error {
	if f.failAll {
		return fmt.Errorf("%w: %s: connection refused", executor.ErrExecutor, op)
	}
	return nil
}

func (f *FakeExecutor) AddTorrent(ctx context.Context, payload []byte, fileName, targetDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unreachable("add"); err != nil {
		return err
	}
	if f.failAdd[fileName] {
		return fmt.Errorf("%w: add %s: rejected", executor.ErrExecutor, fileName)
	}
	f.added = append(f.added, AddCall{FileName: fileName, TargetDir: targetDir, Payload: payload})
	hash := executor.HashFromTorrentName(path.Base(fileName))
	name, ok := f.names[hash]
	if !ok {
		name = hash + ".mp4"
	}
	if _, exists := f.torrents[hash]; !exists {
		f.torrents[hash] = &executor.TorrentInfo{Hash: hash, Name: name, State: "downloading"}
	}
	return nil
}

func (f *FakeExecutor) DeleteTorrent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unreachable("delete"); err != nil {
		return err
	}
	if _, ok := f.torrents[id]; !ok {
		return fmt.Errorf("torrent %s: %w", id, executor.ErrNotFound)
	}
	delete(f.torrents, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *FakeExecutor) PauseTorrent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unreachable("pause"); err != nil {
		return err
	}
	f.paused = append(f.paused, id)
	return nil
}

func (f *FakeExecutor) ResumeTorrent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unreachable("resume"); err != nil {
		return err
	}
	f.resumed = append(f.resumed, id)
	return nil
}

func (f *FakeExecutor) QueryTorrentInfo(ctx context.Context, id string) (*executor.TorrentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unreachable("info"); err != nil {
		return nil, err
	}
	info, ok := f.torrents[id]
	if !ok {
		return nil, fmt.Errorf("torrent %s: %w", id, executor.ErrNotFound)
	}
	out := *info
	return &out, nil
}

func (f *FakeExecutor) RenameFile(ctx context.Context, id, oldPath, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unreachable("rename"); err != nil {
		return err
	}
	info, ok := f.torrents[id]
	if !ok {
		return fmt.Errorf("torrent %s: %w", id, executor.ErrNotFound)
	}
	f.renames = append(f.renames, RenameCall{ID: id, OldPath: oldPath, NewPath: newPath})
	info.Name = newPath
	return nil
}

func (f *FakeExecutor) ListCompletedTorrentIds(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unreachable("completed"); err != nil {
		return nil, err
	}
	var ids []string
	for id, info := range f.torrents {
		if info.Complete() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *FakeExecutor) Version(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unreachable("version"); err != nil {
		return "", err
	}
	return "2.9.3", nil
}

func (f *FakeExecutor) DefaultSavePath(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unreachable("preferences"); err != nil {
		return "", err
	}
	return f.savePath, nil
}
