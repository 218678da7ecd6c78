package diffview

// LineType identifies the kind of a diff line.
type LineType int

const (
	// LineContext is an unchanged line present in both versions.
	LineContext LineType = iota
	// LineAddition is a line added in the new version.
	LineAddition
	// LineDeletion is a line removed from the old version.
	LineDeletion
	// LineHunkHeader is the @@ header introducing a hunk.
	LineHunkHeader
)

// Line is a single line within a hunk.
type Line struct {
	Type       LineType
	OldLineNum int // 0 for additions
	NewLineNum int // 0 for deletions
	Content    string
}

// Hunk is a contiguous change region within a file.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Header   string
	Lines    []Line
}

// File is the parsed diff for a single file.
type File struct {
	OldPath   string
	NewPath   string
	Hunks     []Hunk
	Additions int
	Deletions int
	IsBinary  bool
	IsNew     bool
	IsDeleted bool
	IsRenamed bool
}

// DisplayPath returns the path to show for this file.
func (f File) DisplayPath() string {
	if f.IsDeleted {
		return f.OldPath
	}
	return f.NewPath
}

// Stat summarizes a parsed diff.
type Stat struct {
	Files     int
	Additions int
	Deletions int
}

// Summarize computes totals across parsed files.
func Summarize(files []File) Stat {
	var s Stat
	s.Files = len(files)
	for _, f := range files {
		s.Additions += f.Additions
		s.Deletions += f.Deletions
	}
	return s
}
