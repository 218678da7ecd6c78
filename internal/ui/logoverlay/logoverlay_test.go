package logoverlay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"claude-alamode/internal/log"
)

// TestMain initializes the logger for all tests in this package.
func TestMain(m *testing.M) {
	tmpDir, err := os.MkdirTemp("", "logoverlay-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	cleanup, err := log.Init(filepath.Join(tmpDir, "test.log"))
	if err != nil {
		panic(err)
	}
	defer cleanup()

	os.Exit(m.Run())
}

func sizedModel() Model {
	m := New()
	m.SetSize(100, 40)
	return m
}

func TestNew_HiddenByDefault(t *testing.T) {
	m := New()
	require.False(t, m.Visible())
	require.Equal(t, "", m.View())
}

func TestToggle(t *testing.T) {
	m := sizedModel()
	m.Toggle()
	require.True(t, m.Visible())
	m.Toggle()
	require.False(t, m.Visible())
}

func TestView_ShowsTitleAndHints(t *testing.T) {
	log.ClearBuffer()
	m := sizedModel()
	m.Show()

	view := m.View()
	require.Contains(t, view, "Logs")
	require.Contains(t, view, "[c] Clear")
	require.Contains(t, view, "[e] Error")
}

func TestView_ShowsBufferedEntries(t *testing.T) {
	log.ClearBuffer()
	log.Info(log.CatUI, "overlay smoke entry")

	m := sizedModel()
	m.Show()

	require.Contains(t, m.View(), "overlay smoke entry")
}

func TestUpdate_LevelFilter(t *testing.T) {
	log.ClearBuffer()
	log.Debug(log.CatUI, "debug entry xyzzy")
	log.Error(log.CatUI, "error entry plugh")

	m := sizedModel()
	m.Show()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	view := m.View()
	require.NotContains(t, view, "debug entry xyzzy")
	require.Contains(t, view, "error entry plugh")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	require.Contains(t, m.View(), "debug entry xyzzy")
}

func TestUpdate_ClearBuffer(t *testing.T) {
	log.ClearBuffer()
	log.Info(log.CatUI, "entry to clear")

	m := sizedModel()
	m.Show()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	require.Empty(t, log.GetRecentLogs(10))
	require.Contains(t, m.View(), "No logs to display")
}

func TestUpdate_EscCloses(t *testing.T) {
	m := sizedModel()
	m.Show()

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, m.Visible())
	require.NotNil(t, cmd)
	_, ok := cmd().(CloseMsg)
	require.True(t, ok)
}

func TestUpdate_IgnoredWhenHidden(t *testing.T) {
	m := sizedModel()
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	require.Nil(t, cmd)
	require.False(t, m.Visible())
}

func TestOverlay_PassthroughWhenHidden(t *testing.T) {
	m := sizedModel()
	bg := "background content"
	require.Equal(t, bg, m.Overlay(bg))
}

func TestOverlay_PlacesOnBackground(t *testing.T) {
	log.ClearBuffer()
	m := sizedModel()
	m.Show()

	bg := strings.Repeat(strings.Repeat(".", 100)+"\n", 39) + strings.Repeat(".", 100)
	out := m.Overlay(bg)
	require.Contains(t, out, "Logs")
}

func TestBoxWidth_Bounds(t *testing.T) {
	m := New()
	m.SetSize(20, 10)
	require.Equal(t, boxMinWidth, m.boxWidth())

	m.SetSize(500, 50)
	require.Equal(t, boxMaxWidth, m.boxWidth())
}
