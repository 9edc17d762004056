package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// watch 命令的标志
	watchDir       string
	watchWriteInto string
	watchSettle    time.Duration
	watchIsEPUB    bool
)

// NewWatchCommand 创建 watch 命令
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "监视目录并增强新放入的文件",
		Long: `监视一个热文件夹：新放入的 .pdf 与 .epub 文件在写入完成后被增强并写到 --write-into 目录。
收到中断信号时停止。

示例:
  glance watch --dir ~/inbox --write-into ~/augmented`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}

	f := cmd.Flags()
	f.StringVar(&watchDir, "dir", ".", "directory to watch")
	f.StringVar(&watchWriteInto, "write-into", "", "directory for augmented files")
	f.DurationVar(&watchSettle, "settle", 2*time.Second, "wait until a file has not changed for this long")
	f.BoolVar(&watchIsEPUB, "is-epub", false, "treat every new file as EPUB")
	_ = cmd.MarkFlagRequired("write-into")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(watchDir)
	if err != nil {
		return err
	}
	into, err := filepath.Abs(watchWriteInto)
	if err != nil {
		return err
	}
	if dir == into {
		return fmt.Errorf("--write-into must differ from the watched directory %s", dir)
	}

	cfg, log, err := prepare("augment.write_into=" + into)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &runner{cfg: cfg, log: log, out: cmd.ErrOrStderr()}
	hot := newHotFolder(watchSettle, log, func(ctx context.Context, path string) error {
		rec, err := r.augment(ctx, augmentJob{Input: path, ForceEPUB: watchIsEPUB})
		r.record(rec)
		return err
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s, writing into %s (Ctrl-C to stop)\n", dir, into)
	return hot.run(ctx, watcher.Events, watcher.Errors)
}

// hotFolder 记录目录中变化的文件，文件静止 settle 之后才交给 process
type hotFolder struct {
	settle  time.Duration
	pending map[string]time.Time
	process func(ctx context.Context, path string) error
	logger  *zap.Logger
}

func newHotFolder(settle time.Duration, logger *zap.Logger, process func(context.Context, string) error) *hotFolder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &hotFolder{
		settle:  settle,
		pending: make(map[string]time.Time),
		process: process,
		logger:  logger,
	}
}

// watchable 只接受 .pdf 与 .epub 普通文件
func watchable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".epub":
	default:
		return false
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// handle 处理一个文件系统事件
func (h *hotFolder) handle(ev fsnotify.Event, now time.Time) {
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		if watchable(ev.Name) {
			h.pending[ev.Name] = now
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		delete(h.pending, ev.Name)
	}
}

// ready 取出已经静止的文件，按路径排序
func (h *hotFolder) ready(now time.Time) []string {
	var paths []string
	for path, last := range h.pending {
		if now.Sub(last) >= h.settle {
			paths = append(paths, path)
			delete(h.pending, path)
		}
	}
	slices.Sort(paths)
	return paths
}

// run 处理事件直到 ctx 结束。单个文件失败只记录错误。
func (h *hotFolder) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) error {
	tick := h.settle / 2
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			h.handle(ev, time.Now())
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			h.logger.Warn("监视出错", zap.Error(err))
		case now := <-ticker.C:
			for _, path := range h.ready(now) {
				h.logger.Info("处理新文件", zap.String("path", path))
				if err := h.process(ctx, path); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					h.logger.Warn("文件处理失败，继续监视", zap.String("path", path), zap.Error(err))
				}
			}
		}
	}
}
