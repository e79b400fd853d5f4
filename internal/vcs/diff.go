package vcs

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	aerrors "github.com/p-blackswan/autodev/internal/errors"
)

// FileStat is the line count of one file's change against HEAD.
type FileStat struct {
	Path    string
	Added   int
	Removed int
}

// String formats the stat as "path +a -r".
func (f FileStat) String() string {
	return fmt.Sprintf("%s +%d -%d", f.Path, f.Added, f.Removed)
}

// DiffStat compares the work tree with HEAD without touching the index.
// Paths in include that are untracked are diffed against /dev/null so that
// new files show up; untracked files not named in include are ignored.
func (g *Git) DiffStat(ctx context.Context, root string, include ...string) ([]FileStat, error) {
	out, err := g.output(ctx, root, "diff", "HEAD", "--no-color", "--no-ext-diff")
	if err != nil {
		return nil, err
	}

	untracked, err := g.untracked(ctx, root, include...)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString(out)
	for _, p := range untracked {
		// --no-index exits 1 when the inputs differ.
		nd, err := g.outputExit(ctx, root, 1, "diff", "--no-index", "--no-color", "--no-ext-diff", "--", os.DevNull, p)
		if err != nil {
			return nil, err
		}
		b.WriteString(nd)
	}
	if strings.TrimSpace(b.String()) == "" {
		return nil, nil
	}

	fds, err := diff.NewMultiFileDiffReader(strings.NewReader(b.String())).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("%w: parsing diff: %v", aerrors.ErrVCS, err)
	}
	stats := make([]FileStat, 0, len(fds))
	for _, fd := range fds {
		stats = append(stats, statOf(fd))
	}
	return stats, nil
}

// untracked returns the paths among include that git does not track and
// does not ignore.
func (g *Git) untracked(ctx context.Context, root string, include ...string) ([]string, error) {
	if len(include) == 0 {
		return nil, nil
	}
	args := append([]string{"ls-files", "-z", "--others", "--exclude-standard", "--"}, include...)
	out, err := g.output(ctx, root, args...)
	if err != nil {
		return nil, err
	}
	if out = strings.TrimRight(out, "\x00"); out == "" {
		return nil, nil
	}
	return strings.Split(out, "\x00"), nil
}

func statOf(fd *diff.FileDiff) FileStat {
	name := fd.NewName
	if name == os.DevNull {
		name = fd.OrigName
	}
	st := FileStat{Path: strings.TrimPrefix(strings.TrimPrefix(name, "b/"), "a/")}
	for _, h := range fd.Hunks {
		for _, line := range strings.Split(string(h.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				st.Added++
			case strings.HasPrefix(line, "-"):
				st.Removed++
			}
		}
	}
	return st
}
