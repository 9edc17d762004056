package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/internal/config"
	"github.com/nerdneilsfield/go-glance/internal/progress"
	"github.com/nerdneilsfield/go-glance/internal/stats"
	"github.com/nerdneilsfield/go-glance/pkg/augment"
	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/backend/epub"
	"github.com/nerdneilsfield/go-glance/pkg/backend/pdf"
	"github.com/nerdneilsfield/go-glance/pkg/notify"
	"github.com/nerdneilsfield/go-glance/pkg/ocr"
	"github.com/nerdneilsfield/go-glance/pkg/policy"
	"github.com/nerdneilsfield/go-glance/pkg/traverse"
)

// Provenance 是写入输出文档的来源标记
const Provenance = "Augmented using go-glance"

// runner 持有一次命令执行共享的配置、日志与进度输出
type runner struct {
	cfg *config.Config
	log *zap.Logger
	out io.Writer
}

// augmentJob 描述一个待增强的文件
type augmentJob struct {
	Input string
	// Output 为显式输出路径，空时由 augment.write_into 决定
	Output    string
	ForceEPUB bool
}

// opener 返回文档类型对应的后端
func (r *runner) opener(kind backend.Kind) (backend.Opener, error) {
	switch kind {
	case backend.KindPDF:
		return pdf.NewOpener(r.log, pdf.WithProducer(Provenance)), nil
	case backend.KindEPUB:
		return epub.NewOpener(r.log, epub.WithContributor(Provenance)), nil
	}
	return nil, fmt.Errorf("unsupported document type %q", kind)
}

func (r *runner) open(ctx context.Context, path string, kind backend.Kind, mode backend.Mode) (backend.Document, error) {
	o, err := r.opener(kind)
	if err != nil {
		return nil, err
	}
	return o.Open(ctx, path, mode)
}

// augment 增强一个文件并返回运行记录。失败时记录同样返回，状态为 failed。
func (r *runner) augment(ctx context.Context, job augmentJob) (rec *stats.RunRecord, err error) {
	defer func() {
		if err != nil {
			r.log.Error("增强失败", zap.String("input", job.Input), zap.Error(err))
		}
	}()

	kind, err := backend.DetectKind(job.Input, job.ForceEPUB)
	if err != nil {
		return nil, err
	}

	rec = stats.NewRunRecord(job.Input, string(kind))
	start := time.Now()
	defer func() {
		rec.Duration = time.Since(start)
		if err != nil {
			rec.Fail(err)
		}
	}()

	output := backend.ResolveOutputPath(job.Output, r.cfg.Augment.WriteInto, job.Input)
	rec.OutputFile = output
	if err = backend.CheckOutputPath(output, job.Input); err != nil {
		return rec, err
	}
	if info, statErr := os.Stat(job.Input); statErr == nil {
		rec.InputBytes = info.Size()
	}
	if err = os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return rec, fmt.Errorf("failed to create output directory: %w", err)
	}

	filter, err := r.cfg.PageFilter()
	if err != nil {
		return rec, err
	}
	rules := policy.NewRules(r.cfg.Policy, r.log)

	doc, err := r.open(ctx, job.Input, kind, backend.ReadWrite)
	if err != nil {
		return rec, err
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	bus := notify.NewBus(r.log)
	reporter := progress.NewReporter(r.out, r.log)
	reporter.Register(bus)
	counters := r.registerHandler(ctx, bus, kind, rules, output)

	summary, err := traverse.NewEngine(bus, r.log, traverse.WithPageFilter(filter)).Run(ctx, doc, backend.ReadWrite)
	rec.Summary = summary
	rec.Counters = counters()
	if err == nil {
		err = doc.Save(ctx, output)
	}
	reporter.Finish(summary, output, err)
	if err != nil {
		return rec, err
	}

	if info, statErr := os.Stat(output); statErr == nil {
		rec.OutputBytes = info.Size()
	}
	r.log.Info("增强完成",
		zap.String("input", job.Input),
		zap.String("output", output),
		zap.Int("pages", summary.Pages),
		zap.Int("words", rec.Counters.Words),
		zap.Int("augmented", rec.Counters.Augmented),
		zap.Int("degraded", summary.Degraded),
		zap.Int("boxes", summary.Boxes))
	return rec, nil
}

// registerHandler 订阅文档类型对应的增强处理器，返回读取统计的函数
func (r *runner) registerHandler(ctx context.Context, bus *notify.Bus, kind backend.Kind, rules *policy.Rules, output string) func() augment.Counters {
	ocrOn := r.cfg.OCR.Enabled || r.cfg.OCR.Forced

	if kind == backend.KindEPUB {
		if ocrOn {
			r.log.Warn("OCR 只适用于 PDF，已忽略")
		}
		h := augment.NewEPUBHandler(rules, r.log)
		h.Register(bus)
		return h.Counters
	}

	var engine ocr.Engine
	if ocrOn {
		engine = ocr.NewTesseractEngine(r.cfg.OCR.Languages, r.log)
	}
	stem := strings.TrimSuffix(filepath.Base(output), filepath.Ext(output))
	h := augment.NewPDFHandler(rules, engine, r.cfg.OCROptions(filepath.Dir(output), stem), r.log)
	h.Register(ctx, bus)
	return h.Counters
}

// record 把运行记录写入统计数据库，失败只记录警告
func (r *runner) record(rec *stats.RunRecord) {
	if rec == nil || r.cfg.Stats.Path == "" {
		return
	}
	db, err := stats.NewDatabase(r.cfg.Stats.Path, r.log)
	if err == nil {
		err = db.AddRunRecord(rec)
	}
	if err != nil {
		r.log.Warn("无法记录运行统计", zap.String("path", r.cfg.Stats.Path), zap.Error(err))
	}
}
