package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const augmentHints = `
Read a PDF/EPUB and write an augmented version based on policies.

For PDFs, OCR by default has been tuned for full page images (i.e. scanned
paper documents, such as patents).

This can cause issues if your document is a mix of well formed text and
in-line images. In that case, to avoid duplicated augmentation, try:

  --ocr-mode element

If the boxes are drawn at the wrong locations, you might need to try a
different DPI for the OCR mapping to page coordinates, i.e.

  --ocr-dpi 96
`

var (
	// augment 命令的标志
	augmentInput     string
	augmentOutput    string
	augmentWriteInto string
	augmentPages     string
	augmentOCR       bool
	augmentForceOCR  bool
	augmentOCRMode   string
	augmentOCRDPI    int
	augmentOCRLang   []string
	augmentKeep      bool
	augmentIsEPUB    bool
	augmentOverrides []string
	augmentHintsFlag bool
)

// NewAugmentCommand 创建 augment 命令
func NewAugmentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "augment",
		Short: "增强 PDF 或 EPUB 并写出副本",
		Long: `读取 PDF 或 EPUB，按策略增强单词并写出新文件。

示例:
  glance augment -i paper.pdf
  glance augment -i scan.pdf --ocr --ocr-mode element --write-into out/
  glance augment -i book.epub --override policy.max_head_len=3`,
		RunE: runAugment,
	}

	f := cmd.Flags()
	f.StringVarP(&augmentInput, "read", "i", "", "read PDF/EPUB from PATH")
	f.StringVar(&augmentOutput, "write", "", "save augmented file to PATH")
	f.StringVar(&augmentWriteInto, "write-into", "", "save augmented file into DIR")
	f.StringVar(&augmentPages, "pages", "", "only augment these pages, e.g. 1,3-5")
	f.BoolVar(&augmentOCR, "ocr", false, "recognise text in images")
	f.BoolVar(&augmentForceOCR, "force-ocr", false, "OCR every page and leave text untouched")
	f.StringVar(&augmentOCRMode, "ocr-mode", "page", "OCR granularity (page or element)")
	f.IntVar(&augmentOCRDPI, "ocr-dpi", 72, "DPI used to map OCR results to page coordinates")
	f.StringSliceVar(&augmentOCRLang, "ocr-lang", []string{"eng"}, "tesseract languages")
	f.BoolVar(&augmentKeep, "keep", false, "keep the images sent to OCR next to the output")
	f.BoolVar(&augmentIsEPUB, "is-epub", false, "treat the input as EPUB regardless of extension")
	f.StringArrayVar(&augmentOverrides, "override", nil, "override a config value for this run (key=value)")
	f.BoolVar(&augmentHintsFlag, "hints", false, "print usage hints and exit")

	return cmd
}

// flagOverrides 把显式设置的命令行标志转换为配置覆盖
func flagOverrides(f *pflag.FlagSet) []string {
	var out []string
	set := func(flag, key, value string) {
		if f.Changed(flag) {
			out = append(out, key+"="+value)
		}
	}
	set("write-into", "augment.write_into", augmentWriteInto)
	set("pages", "augment.pages", augmentPages)
	set("ocr", "ocr.enabled", strconv.FormatBool(augmentOCR))
	set("force-ocr", "ocr.forced", strconv.FormatBool(augmentForceOCR))
	set("ocr-mode", "ocr.mode", augmentOCRMode)
	set("ocr-dpi", "ocr.dpi", strconv.Itoa(augmentOCRDPI))
	set("ocr-lang", "ocr.languages", strings.Join(augmentOCRLang, ","))
	set("keep", "augment.keep_files", strconv.FormatBool(augmentKeep))
	// --override 在最后，优先于单独的标志
	return append(out, augmentOverrides...)
}

func runAugment(cmd *cobra.Command, args []string) error {
	if augmentHintsFlag {
		fmt.Fprint(cmd.OutOrStdout(), augmentHints)
		return nil
	}
	if augmentInput == "" {
		return fmt.Errorf("required flag \"read\" not set")
	}

	cfg, log, err := prepare(flagOverrides(cmd.Flags())...)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	r := &runner{cfg: cfg, log: log, out: cmd.ErrOrStderr()}
	rec, err := r.augment(cmd.Context(), augmentJob{
		Input:     augmentInput,
		Output:    augmentOutput,
		ForceEPUB: augmentIsEPUB,
	})
	r.record(rec)
	return err
}
