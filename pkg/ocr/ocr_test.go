package ocr

import (
	"encoding/json"
	"errors"
	"image"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(word string, block, par, line int, x0, y0, x1, y1 int) gosseract.BoundingBox {
	return gosseract.BoundingBox{
		Box:      image.Rect(x0, y0, x1, y1),
		Word:     word,
		BlockNum: block,
		ParNum:   par,
		LineNum:  line,
	}
}

func TestGroupWords(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		box("Hello", 1, 1, 1, 10, 20, 60, 40),
		box("world", 1, 1, 1, 70, 20, 120, 40),
		box("second", 1, 1, 2, 10, 50, 70, 70),
		box("", 1, 1, 2, 80, 50, 90, 70),
		box("Next", 2, 1, 1, 10, 100, 50, 120),
	}

	res := GroupWords(boxes, 200, 300)
	require.Len(t, res.Page, 1)
	assert.Equal(t, 300, res.DPI())
	require.Len(t, res.Page[0].Para, 2)

	first := res.Page[0].Para[0]
	require.Len(t, first.Line, 2)
	assert.Len(t, first.Line[0].Word, 2)
	assert.Len(t, first.Line[1].Word, 1)

	w := first.Line[0].Word[0]
	assert.Equal(t, "Hello", w.Text)
	assert.Equal(t, 10.0, w.X)
	assert.Equal(t, 160.0, w.Y)
	assert.Equal(t, 20.0, w.FontSize)
	assert.Equal(t, 50.0, w.Length)

	assert.Equal(t, 4, res.Words())
}

func TestResultJSONShape(t *testing.T) {
	res := &Result{Page: []Page{{DPI: 72, Para: []Para{{Line: []Line{{Word: []Word{{Text: "a", X: 1, Y: 2, FontSize: 3, Length: 4}}}}}}}}}
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"Page":[{"dpi":72,"Para":[{"Line":[{"Word":[{"text":"a","x":1,"y":2,"font_size":3,"length":4,"orientation":0}]}]}]}]}`,
		string(data))
}

func TestExtractionError(t *testing.T) {
	base := errors.New("no tessdata")
	err := error(&ExtractionError{Engine: "tesseract", Reason: "set languages", Err: base})
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "set languages")

	var nilResult *Result
	assert.Equal(t, 0, nilResult.Words())
	assert.Equal(t, 0, nilResult.DPI())
}
