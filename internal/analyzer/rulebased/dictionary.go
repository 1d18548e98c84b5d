package rulebased

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/edsrzf/mmap-go"
)

type lineRef struct {
	start, end int
}

// dictionary is a whitespace-separated text file kept memory-mapped for
// the lifetime of the analyzer. Lines are indexed by their first field and
// decoded on lookup.
type dictionary struct {
	file  *os.File
	data  mmap.MMap
	index map[string][]lineRef
}

func openDictionary(path string) (*dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat dictionary: %w", err)
	}

	d := &dictionary{file: f, index: make(map[string][]lineRef)}
	if info.Size() == 0 {
		return d, nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	d.data = data
	d.buildIndex()
	return d, nil
}

func (d *dictionary) buildIndex() {
	pos := 0
	for pos < len(d.data) {
		end := bytes.IndexByte(d.data[pos:], '\n')
		if end < 0 {
			end = len(d.data)
		} else {
			end += pos
		}
		line := bytes.TrimSpace(d.data[pos:end])
		if len(line) > 0 && line[0] != '#' {
			key := line
			if i := bytes.IndexAny(line, " \t"); i >= 0 {
				key = line[:i]
			}
			d.index[string(key)] = append(d.index[string(key)], lineRef{start: pos, end: end})
		}
		pos = end + 1
	}
}

// lookup returns the fields after the key for every line keyed by key.
func (d *dictionary) lookup(key string) [][]string {
	refs := d.index[key]
	if len(refs) == 0 {
		return nil
	}
	out := make([][]string, 0, len(refs))
	for _, r := range refs {
		fields := strings.Fields(string(d.data[r.start:r.end]))
		out = append(out, fields[1:])
	}
	return out
}

func (d *dictionary) size() int {
	return len(d.index)
}

func (d *dictionary) Close() error {
	var err error
	if d.data != nil {
		err = d.data.Unmap()
		d.data = nil
	}
	if cerr := d.file.Close(); err == nil {
		err = cerr
	}
	return err
}
