// SPDX-License-Identifier: MPL-2.0

package launcher

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// forwardLines copies r to w one line at a time, writing each line as soon
// as it is complete. A trailing partial line is written at EOF. Writes to
// w are serialized through mu so stdout and stderr lines never interleave
// mid-line when they share a writer.
func forwardLines(r io.Reader, w io.Writer, mu *sync.Mutex) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			mu.Lock()
			_, werr := w.Write(line)
			mu.Unlock()
			if werr != nil {
				// Keep draining so the child never blocks on a full pipe.
				_, _ = io.Copy(io.Discard, br)
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
