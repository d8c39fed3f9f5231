// Package workspace manages ephemeral per-execution directories.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	appErr "coderunner/pkg/errors"
	"coderunner/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Factory creates workspaces. Pipelines depend on this instead of Manager.
type Factory interface {
	Create(ctx context.Context, prefix string) (*Workspace, error)
}

// Config controls where workspaces are created.
type Config struct {
	// RootDir is the parent directory; empty means os.TempDir().
	RootDir string `yaml:"rootDir"`
	// DirPerm is the permission used for each workspace directory.
	DirPerm os.FileMode `yaml:"dirPerm"`
}

// Manager creates unique directories under a root.
type Manager struct {
	root    string
	dirPerm os.FileMode
}

// NewManager creates a manager. The root directory is created if missing.
func NewManager(cfg Config) (*Manager, error) {
	root := cfg.RootDir
	if root == "" {
		root = os.TempDir()
	}
	perm := cfg.DirPerm
	if perm == 0 {
		perm = 0o700
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace root %s failed", root)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "resolve workspace root %s failed", root)
	}
	return &Manager{root: abs, dirPerm: perm}, nil
}

// Root returns the absolute parent directory of all workspaces.
func (m *Manager) Root() string {
	return m.root
}

// Create makes a fresh directory named prefix + random token.
// Mkdir fails on an existing path, so two calls never share a directory.
func (m *Manager) Create(ctx context.Context, prefix string) (*Workspace, error) {
	if strings.ContainsAny(prefix, `/\`) || strings.Contains(prefix, "..") {
		return nil, appErr.ValidationError("prefix", "must not contain path separators")
	}
	if err := ctx.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.ExecutionCancelled, "workspace creation cancelled")
	}
	dir := filepath.Join(m.root, prefix+uuid.NewString())
	if err := os.Mkdir(dir, m.dirPerm); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace failed")
	}
	logger.Debug(ctx, "workspace created", zap.String("dir", dir))
	return &Workspace{root: dir, files: make(map[string]string)}, nil
}

// Workspace is one directory owned by a single pipeline invocation.
type Workspace struct {
	root  string
	files map[string]string

	mu        sync.Mutex
	destroyed bool
}

// Root returns the absolute directory path.
func (w *Workspace) Root() string {
	return w.root
}

// Path returns the absolute path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.root, name)
}

// Files returns a copy of the files written so far.
func (w *Workspace) Files() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.files))
	for k, v := range w.files {
		out[k] = v
	}
	return out
}

// Write stores content as name. Name must be a plain file name.
func (w *Workspace) Write(name, content string) error {
	if err := validateName(name); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return appErr.Newf(appErr.WorkspaceError, "workspace %s already destroyed", w.root)
	}
	if err := os.WriteFile(filepath.Join(w.root, name), []byte(content), 0o644); err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceError, "write %s failed", name)
	}
	w.files[name] = content
	return nil
}

// Destroy removes the directory and everything in it. Failures are logged
// and swallowed; calling it again is a no-op.
func (w *Workspace) Destroy(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return
	}
	w.destroyed = true
	if err := os.RemoveAll(w.root); err != nil {
		logger.Warn(ctx, "workspace cleanup failed", zap.String("dir", w.root), zap.Error(err))
		return
	}
	logger.Debug(ctx, "workspace removed", zap.String("dir", w.root))
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return appErr.ValidationError("file", "name is required")
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return appErr.ValidationError("file", "must be a plain file name: "+name)
	}
	return nil
}
