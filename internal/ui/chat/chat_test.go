package chat

import (
	"fmt"
	"regexp"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"claude-alamode/internal/ui/chatrender"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

func sizedChat() Model {
	return New(Config{}).SetSize(100, 30)
}

func typeInput(m Model, s string) Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func TestSubmit_EmitsPrompt(t *testing.T) {
	m := sizedChat()
	m = typeInput(m, "fix the bug")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	sub, ok := cmd().(SubmitMsg)
	require.True(t, ok)
	require.Equal(t, "fix the bug", sub.Content)
	require.Empty(t, m.Value(), "input resets after submit")
}

func TestSubmit_EmptyIgnored(t *testing.T) {
	m := sizedChat()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
}

func TestSubmit_BlockedWhileWorking(t *testing.T) {
	m := sizedChat()
	m, _ = m.SetWorking(true)
	m = typeInput(m, "another prompt")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
}

func TestCancel_OnlyWhileWorking(t *testing.T) {
	m := sizedChat()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlX})
	require.Nil(t, cmd)

	m, _ = m.SetWorking(true)
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlX})
	require.NotNil(t, cmd)
	_, ok := cmd().(CancelMsg)
	require.True(t, ok)
}

func TestScrollKeys_MoveViewport(t *testing.T) {
	m := sizedChat()
	for i := 0; i < 80; i++ {
		m = m.AddMessage(chatrender.Message{Role: "user", Content: fmt.Sprintf("message %d", i)})
	}
	require.True(t, m.viewport.AtBottom())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlK})
	require.False(t, m.viewport.AtBottom())

	m.hasNewContent = true
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlJ})
	require.True(t, m.viewport.AtBottom())
	require.False(t, m.hasNewContent, "catching up clears the new-content flag")
}

func TestSetWorking_StartsSpinner(t *testing.T) {
	m := sizedChat()

	m, cmd := m.SetWorking(true)
	require.True(t, m.Working())
	require.NotNil(t, cmd, "transition to working starts spinner")

	// Already working - no duplicate ticker
	_, cmd = m.SetWorking(true)
	require.Nil(t, cmd)
}

func TestSpinnerTick_AdvancesOnlyWhileWorking(t *testing.T) {
	m := sizedChat()
	m, _ = m.SetWorking(true)

	m, cmd := m.Update(SpinnerTickMsg{})
	require.Equal(t, 1, m.spinnerFrame)
	require.NotNil(t, cmd, "keeps ticking while working")

	m, _ = m.SetWorking(false)
	_, cmd = m.Update(SpinnerTickMsg{})
	require.Nil(t, cmd)
}

func TestAddMessage_AppearsInView(t *testing.T) {
	m := sizedChat()
	m = m.AddMessage(chatrender.Message{Role: "user", Content: "hello there"})

	view := stripANSI(m.View())
	require.Contains(t, view, "hello there")
	require.Contains(t, view, "You")
}

func TestSetMessages_ReplacesHistory(t *testing.T) {
	m := sizedChat()
	m = m.AddMessage(chatrender.Message{Role: "user", Content: "old"})
	m = m.SetMessages([]chatrender.Message{
		{Role: "user", Content: "reloaded prompt"},
		{Role: "assistant", Content: "reloaded reply"},
	})

	require.Len(t, m.Messages(), 2)
	view := stripANSI(m.View())
	require.Contains(t, view, "reloaded prompt")
	require.NotContains(t, view, "old")
}

func TestView_SpinnerWhileWorking(t *testing.T) {
	m := sizedChat()
	m, _ = m.SetWorking(true)
	require.Contains(t, stripANSI(m.View()), "thinking…")
}

func TestView_ToolCallRail(t *testing.T) {
	m := sizedChat()
	m = m.AddMessage(chatrender.Message{Role: "assistant", Content: "🔧 Read: main.go", IsToolCall: true})
	require.Contains(t, stripANSI(m.View()), "╰╴ Read: main.go")
}
