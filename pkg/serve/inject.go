package serve

import (
	"bytes"
	"net/http"
	"strings"
)

const (
	scriptPath = "/livereload.js"
	scriptTag  = `<script src="` + scriptPath + `"></script>`
	maxBuffer  = 512 * 1024
)

// clientScript reloads the page whenever the server announces a new token.
const clientScript = `(() => {
  if (window.__MANY_ASSETS_LR__) return;
  window.__MANY_ASSETS_LR__ = true;
  function connect() {
    const es = new EventSource('/livereload');
    let current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (current === null) { current = p.token; return; }
        if (p.token && p.token !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`

func serveClientScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(clientScript))
}

// injectScript adds the live-reload client to HTML pages served by next.
func injectScript(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p != "/" && !strings.HasSuffix(p, "/") && !strings.HasSuffix(p, ".html") {
			next.ServeHTTP(w, r)
			return
		}
		inj := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

// injector buffers an HTML response so the script tag can be inserted
// before </body>. Non-HTML and oversized responses pass through.
type injector struct {
	http.ResponseWriter
	status      int
	buf         bytes.Buffer
	started     bool
	passthrough bool
	wroteHeader bool
}

func (i *injector) WriteHeader(code int) {
	i.status = code
	if i.passthrough {
		i.ResponseWriter.WriteHeader(code)
		i.wroteHeader = true
	}
}

func (i *injector) Write(data []byte) (int, error) {
	if !i.started {
		i.started = true
		ct := i.Header().Get("Content-Type")
		if i.status != http.StatusOK || (ct != "" && !strings.Contains(ct, "text/html")) {
			i.startPassthrough()
		}
	}
	if i.passthrough {
		return i.ResponseWriter.Write(data)
	}
	if i.buf.Len()+len(data) > maxBuffer {
		i.startPassthrough()
		if _, err := i.ResponseWriter.Write(i.buf.Bytes()); err != nil {
			return 0, err
		}
		i.buf.Reset()
		return i.ResponseWriter.Write(data)
	}
	return i.buf.Write(data)
}

func (i *injector) startPassthrough() {
	i.passthrough = true
	i.Header().Del("Content-Length")
	i.ResponseWriter.WriteHeader(i.status)
	i.wroteHeader = true
}

func (i *injector) finalize() {
	if i.passthrough {
		if !i.wroteHeader {
			i.ResponseWriter.WriteHeader(i.status)
		}
		return
	}

	body := i.buf.Bytes()
	if len(body) > 0 {
		body = insertScript(body)
	}
	i.Header().Del("Content-Length")
	i.ResponseWriter.WriteHeader(i.status)
	_, _ = i.ResponseWriter.Write(body)
}

func insertScript(body []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(body), []byte("</body>"))
	if idx < 0 {
		return append(body, scriptTag...)
	}
	out := make([]byte, 0, len(body)+len(scriptTag))
	out = append(out, body[:idx]...)
	out = append(out, scriptTag...)
	return append(out, body[idx:]...)
}
