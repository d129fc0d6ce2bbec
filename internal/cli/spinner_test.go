package cli

import (
	"bytes"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ppiankov/callgen/internal/generator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitModel_InitStartsWork(t *testing.T) {
	m := newWaitModel("Asking...", func() tea.Msg { return nil }, nil)
	assert.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "Asking...")
}

func TestWaitModel_DoneQuits(t *testing.T) {
	m := newWaitModel("Asking...", nil, nil)
	res := &generator.Result{ActualCalls: []any{"x"}}

	next, cmd := m.Update(doneMsg{res: res})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	wm := next.(waitModel)
	assert.True(t, wm.done)
	assert.Same(t, res, wm.res)
	assert.Empty(t, wm.View())
}

func TestWaitModel_CtrlCCancelsOnce(t *testing.T) {
	calls := 0
	m := newWaitModel("Asking...", nil, func() { calls++ })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, cmd)
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEsc})

	wm := next.(waitModel)
	assert.True(t, wm.canceled)
	assert.Equal(t, 1, calls)
	assert.Contains(t, wm.View(), "Canceling...")
}

func TestWaitModel_TickAdvancesSpinner(t *testing.T) {
	m := newWaitModel("Asking...", nil, nil)
	_, cmd := m.Update(m.spinner.Tick())
	assert.NotNil(t, cmd)
}

func TestIsInteractive_NonFile(t *testing.T) {
	assert.False(t, isInteractive(&bytes.Buffer{}))
}
