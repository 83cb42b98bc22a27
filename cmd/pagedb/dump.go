package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"

	"github.com/tuannm99/pagedb"
)

var xzNewWriter = xz.NewWriter

// outputFs is where dump -o writes its file.
var outputFs afero.Fs = afero.NewOsFs()

// dump streams every row of cur as a JSON line including its row id,
// optionally xz compressed. It returns the number of rows written.
func dump(w io.Writer, cur *pagedb.Cursor, compress bool) (n int, err error) {
	if compress {
		var xw *xz.Writer
		xw, err = xzNewWriter(w)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := xw.Close(); err == nil {
				err = cerr
			}
		}()
		w = xw
	}

	enc := json.NewEncoder(w)
	for row := range cur.Rows() {
		if err := enc.Encode(row.Map(true)); err != nil {
			return n, err
		}
		n++
	}
	return n, cur.Err()
}
