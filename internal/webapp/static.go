package webapp

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// noListingFS wraps a filesystem so directories without an index page read
// as absent. Directory listings are never generated.
type noListingFS struct {
	fs    http.FileSystem
	index string
}

func (n noListingFS) Open(name string) (http.File, error) {
	// http.FileServer probes "<dir>/index.html" when serving a directory.
	// When a different index name is configured, point the probe at it.
	if n.index != "index.html" && path.Base(name) == "index.html" {
		name = path.Join(path.Dir(name), n.index)
	}

	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if info.IsDir() {
		index := strings.TrimSuffix(name, "/") + "/" + n.index
		idx, err := n.fs.Open(index)
		if err != nil {
			f.Close()
			return nil, fs.ErrNotExist
		}
		idx.Close()
	}

	return f, nil
}

// errorInterceptor rewrites error responses from the file server into the
// fixed public form, discarding whatever body the collaborator meant to
// send.
type errorInterceptor struct {
	http.ResponseWriter
	intercepted bool
}

func (w *errorInterceptor) WriteHeader(code int) {
	if code >= 400 {
		w.intercepted = true
		writeStatus(w.ResponseWriter, code)
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *errorInterceptor) Write(b []byte) (int, error) {
	if w.intercepted {
		// Swallow the collaborator's body; ours is already written.
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}
