package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBusOrder(t *testing.T) {
	bus := NewBus(zap.NewNop())
	var calls []string

	bus.OnBeginPage(func(ev BeginPage) error {
		calls = append(calls, "first")
		assert.Equal(t, 3, ev.PageNumber)
		return nil
	})
	bus.OnBeginPage(func(ev BeginPage) error {
		calls = append(calls, "second")
		return nil
	})
	bus.OnEndPage(func(ev EndPage) error {
		calls = append(calls, "end")
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), BeginPage{PageNumber: 3}))
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 2, bus.Subscribers(KindBeginPage))
	assert.Equal(t, 0, bus.Subscribers(KindProcessElement))
}

func TestBusErrorsDoNotStopHandlers(t *testing.T) {
	bus := NewBus(nil)
	errA := errors.New("a")
	errB := errors.New("b")
	ran := 0

	bus.OnElement(func(Element) error { ran++; return errA })
	bus.OnElement(func(Element) error { ran++; return nil })
	bus.OnElement(func(Element) error { ran++; return errB })

	err := bus.Publish(context.Background(), Element{Index: 1})
	assert.Equal(t, 3, ran)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(nil)
	assert.NoError(t, bus.Publish(context.Background(), OpenDocument{Filename: "x.pdf"}))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "begin-page", KindBeginPage.String())
	assert.Equal(t, "process-element", Element{}.Kind().String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestPublishCancelled(t *testing.T) {
	bus := NewBus(nil)
	called := false
	bus.OnOpenDocument(func(OpenDocument) error { called = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.Publish(ctx, OpenDocument{}), context.Canceled)
	assert.False(t, called)
}
