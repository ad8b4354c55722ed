package driver

import (
	"fmt"
	"io"
	"os"
)

// sourceQueue walks the input file list on demand. Files are opened lazily
// so an unreadable later file is only reported once the compiler actually
// asks for it, and each file is closed when the next one is requested.
// A leading "-" means stdin; a "-" anywhere else names a literal file.
type sourceQueue struct {
	files []string
	stdin io.Reader
	idx   int
	cur   io.Closer
}

func newSourceQueue(files []string, stdin io.Reader) *sourceQueue {
	return &sourceQueue{files: files, stdin: stdin}
}

func (q *sourceQueue) Next() (io.Reader, string, error) {
	if q.cur != nil {
		q.cur.Close()
		q.cur = nil
	}
	if q.idx >= len(q.files) {
		return nil, "", nil
	}
	name := q.files[q.idx]
	first := q.idx == 0
	q.idx++

	if first && name == "-" {
		return q.stdin, name, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, "", fmt.Errorf("cannot open program file. (%s)", name)
	}
	q.cur = f
	return f, name, nil
}

func (q *sourceQueue) Close() {
	if q.cur != nil {
		q.cur.Close()
		q.cur = nil
	}
}
