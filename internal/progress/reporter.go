// Package progress 在终端中显示遍历进度
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/notify"
	"github.com/nerdneilsfield/go-glance/pkg/traverse"
)

// titleWidth 是进度条标题中文件名的最大显示宽度
const titleWidth = 32

// Reporter 订阅事件总线，每完成一页推进一次进度条
type Reporter struct {
	out    io.Writer
	logger *zap.Logger
	bar    *pterm.ProgressbarPrinter

	name     string
	title    string
	total    int
	pages    int
	selected int
	started  time.Time
}

// NewReporter 创建进度报告器，out 为 nil 时输出到 stderr
func NewReporter(out io.Writer, logger *zap.Logger) *Reporter {
	if out == nil {
		out = os.Stderr
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{out: out, logger: logger}
}

// Register 订阅文档、页开始与页结束事件
func (r *Reporter) Register(bus *notify.Bus) {
	bus.OnOpenDocument(r.open)
	bus.OnBeginPage(r.beginPage)
	bus.OnEndPage(r.endPage)
}

// Pages 返回已完成的页数
func (r *Reporter) Pages() int { return r.pages }

// Selected 返回参与增强的页数
func (r *Reporter) Selected() int { return r.selected }

func (r *Reporter) open(ev notify.OpenDocument) error {
	r.name = filepath.Base(ev.Filename)
	r.title = runewidth.Truncate(r.name, titleWidth, "...")
	r.total = ev.PageCount
	r.pages, r.selected = 0, 0
	r.started = time.Now()

	total := ev.PageCount
	if total < 1 {
		total = 1
	}
	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(r.title).
		WithWriter(r.out).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		// 进度条只是展示，失败不影响遍历
		r.logger.Debug("无法启动进度条", zap.Error(err))
		return nil
	}
	r.bar = bar
	return nil
}

func (r *Reporter) beginPage(ev notify.BeginPage) error {
	if ev.Selected {
		r.selected++
	}
	if r.bar != nil {
		r.bar.UpdateTitle(fmt.Sprintf("%s %d/%d", r.title, ev.PageNumber, r.total))
	}
	return nil
}

func (r *Reporter) endPage(notify.EndPage) error {
	r.pages++
	if r.bar != nil {
		r.bar.Increment()
	}
	return nil
}

// Finish 停止进度条并打印一行结果
func (r *Reporter) Finish(summary traverse.Summary, output string, err error) {
	if r.bar != nil {
		_, _ = r.bar.Stop()
		r.bar = nil
	}

	elapsed := time.Since(r.started).Round(time.Millisecond)
	if err != nil {
		pterm.Error.WithWriter(r.out).Printfln("%s: failed after %d pages: %v", r.name, r.pages, err)
		return
	}

	line := fmt.Sprintf("%s: %d pages (%d augmented), %s elements, %d degraded, %d boxes in %s",
		r.name, summary.Pages, r.selected, humanize.Comma(int64(summary.Elements)),
		summary.Degraded, summary.Boxes, elapsed)
	if output != "" {
		line += " -> " + output
	}
	pterm.Success.WithWriter(r.out).Println(line)
}
