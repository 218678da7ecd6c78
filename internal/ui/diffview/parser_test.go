package diffview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const simpleDiff = `diff --git a/main.go b/main.go
index 1234567..89abcde 100644
--- a/main.go
+++ b/main.go
@@ -1,4 +1,4 @@ func main()
 package main
-import "fmt"
+import "log"

 func main() {
`

func TestParse_Empty(t *testing.T) {
	files, err := Parse("")
	require.NoError(t, err)
	require.Nil(t, files)
}

func TestParse_SingleFile(t *testing.T) {
	files, err := Parse(simpleDiff)
	require.NoError(t, err)
	require.Len(t, files, 1)

	f := files[0]
	require.Equal(t, "main.go", f.OldPath)
	require.Equal(t, "main.go", f.NewPath)
	require.Equal(t, 1, f.Additions)
	require.Equal(t, 1, f.Deletions)
	require.Len(t, f.Hunks, 1)

	h := f.Hunks[0]
	require.Equal(t, 1, h.OldStart)
	require.Equal(t, 4, h.OldCount)
	require.Equal(t, LineHunkHeader, h.Lines[0].Type)
	require.Equal(t, "func main()", h.Lines[0].Content)
}

func TestParse_LineNumbers(t *testing.T) {
	files, err := Parse(simpleDiff)
	require.NoError(t, err)

	lines := files[0].Hunks[0].Lines
	// lines[0] is the hunk header; content starts at 1
	require.Equal(t, LineContext, lines[1].Type)
	require.Equal(t, 1, lines[1].OldLineNum)
	require.Equal(t, 1, lines[1].NewLineNum)

	require.Equal(t, LineDeletion, lines[2].Type)
	require.Equal(t, 2, lines[2].OldLineNum)
	require.Equal(t, 0, lines[2].NewLineNum)

	require.Equal(t, LineAddition, lines[3].Type)
	require.Equal(t, 0, lines[3].OldLineNum)
	require.Equal(t, 2, lines[3].NewLineNum)
}

func TestParse_MultipleFiles(t *testing.T) {
	diff := simpleDiff + `diff --git a/other.go b/other.go
--- a/other.go
+++ b/other.go
@@ -1 +1,2 @@
 first
+second
`
	files, err := Parse(diff)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "other.go", files[1].NewPath)
	require.Equal(t, 1, files[1].Additions)
}

func TestParse_NewFile(t *testing.T) {
	diff := `diff --git a/added.go b/added.go
new file mode 100644
--- /dev/null
+++ b/added.go
@@ -0,0 +1,2 @@
+package added
+
`
	files, err := Parse(diff)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.True(t, files[0].IsNew)
	require.Equal(t, 2, files[0].Additions)
	require.Equal(t, "added.go", files[0].DisplayPath())
}

func TestParse_DeletedFile(t *testing.T) {
	diff := `diff --git a/gone.go b/gone.go
deleted file mode 100644
--- a/gone.go
+++ /dev/null
@@ -1,1 +0,0 @@
-package gone
`
	files, err := Parse(diff)
	require.NoError(t, err)
	require.True(t, files[0].IsDeleted)
	require.Equal(t, "gone.go", files[0].DisplayPath())
}

func TestParse_BinaryFile(t *testing.T) {
	diff := `diff --git a/logo.png b/logo.png
Binary files a/logo.png and b/logo.png differ
`
	files, err := Parse(diff)
	require.NoError(t, err)
	require.True(t, files[0].IsBinary)
	require.Empty(t, files[0].Hunks)
}

func TestParse_RenamedFile(t *testing.T) {
	diff := `diff --git a/old_name.go b/new_name.go
similarity index 95%
rename from old_name.go
rename to new_name.go
`
	files, err := Parse(diff)
	require.NoError(t, err)
	require.True(t, files[0].IsRenamed)
	require.Equal(t, "old_name.go", files[0].OldPath)
	require.Equal(t, "new_name.go", files[0].NewPath)
}

func TestParse_NoNewlineMarker(t *testing.T) {
	diff := `diff --git a/f b/f
--- a/f
+++ b/f
@@ -1 +1 @@
-old
+new
\ No newline at end of file
`
	files, err := Parse(diff)
	require.NoError(t, err)
	// Marker is skipped, not counted as a line
	require.Len(t, files[0].Hunks[0].Lines, 3)
}

func TestParse_GarbagePrefixSkipped(t *testing.T) {
	diff := strings.Replace(simpleDiff, " func main() {\n", "?bogus\n", 1)
	files, err := Parse(diff)
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestSummarize(t *testing.T) {
	files := []File{
		{Additions: 3, Deletions: 1},
		{Additions: 2, Deletions: 5},
	}
	s := Summarize(files)
	require.Equal(t, 2, s.Files)
	require.Equal(t, 5, s.Additions)
	require.Equal(t, 6, s.Deletions)
}
