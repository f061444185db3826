package progress

import (
	"bytes"
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_Steps(t *testing.T) {
	var m tea.Model = NewModel("Image Generation", 200)

	m, cmd := m.Update(StepMsg{N: 40})
	assert.Nil(t, cmd)
	assert.Equal(t, 40, m.(Model).Done)

	m, _ = m.Update(StepMsg{N: 40})
	assert.InDelta(t, 0.4, m.(Model).Fraction(), 1e-9)

	// never runs past the total
	m, _ = m.Update(StepMsg{N: 500})
	assert.Equal(t, 200, m.(Model).Done)
}

func TestModel_Done(t *testing.T) {
	m := NewModel("Image Generation", 0)
	assert.Equal(t, 0.0, m.Fraction())

	next, cmd := m.Update(DoneMsg{})
	require.NotNil(t, cmd)
	assert.True(t, next.(Model).Finished)
	assert.Equal(t, 1.0, next.(Model).Fraction())
}

func TestModel_View(t *testing.T) {
	m := NewModel("Image Generation", 100)
	m.now = func() time.Time { return m.started.Add(1500 * time.Millisecond) }
	m.Done = 50

	view := m.View()
	assert.Contains(t, view, "Image Generation")
	assert.Contains(t, view, "50/100")
	assert.Contains(t, view, "50%")
	assert.Contains(t, view, "1.5s")
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel("Image Generation", 100)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	assert.Equal(t, 20, next.(Model).BarWidth)

	next, _ = m.Update(tea.WindowSizeMsg{Width: 200, Height: 20})
	assert.Equal(t, defaultBarWidth, next.(Model).BarWidth)
}

func TestTeaReporter_RunsToCompletion(t *testing.T) {
	var out bytes.Buffer
	r := NewTeaReporter("Image Generation", &out)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r.Start(ctx, 3)
	r.Advance(1)
	r.Advance(1)
	r.Advance(1)

	done := make(chan error, 1)
	go func() { done <- r.Finish() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reporter did not finish")
	}
}

func TestNop(t *testing.T) {
	var r Reporter = Nop{}
	r.Start(context.Background(), 10)
	r.Advance(5)
	assert.NoError(t, r.Finish())

	unstarted := NewTeaReporter("x", &bytes.Buffer{})
	unstarted.Advance(1)
	assert.NoError(t, unstarted.Finish())
}
