package selector

import (
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// ListStreamerFiles returns the streamer (.dat) files under dir whose name
// carries streamLabel, relative to dir and sorted.
func ListStreamerFiles(fs afero.Fs, dir, streamLabel string) ([]string, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	ok, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("streamer directory not found: %s", dir)
	}

	fsys := afero.NewIOFS(afero.NewReadOnlyFs(afero.NewBasePathFs(fs, dir)))
	pattern := "**/*_" + streamLabel + "_*.dat"
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}
