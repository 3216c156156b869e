package template

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"sync"

	"github.com/ghaggin/classroom/internal/model"
)

const (
	templateDir string = "tmpl"
)

//go:embed tmpl/*.html
var files embed.FS

type Data struct {
	PageTitle string
	User      *model.User
	Flash     string
	Error     string
	Page      any
}

var (
	cacheMu sync.Mutex
	cache   = map[string]*template.Template{}
)

func parse(tmpl string) (*template.Template, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if t, ok := cache[tmpl]; ok {
		return t, nil
	}
	t, err := template.ParseFS(files,
		templateDir+"/"+tmpl,
		templateDir+"/"+"base.html",
	)
	if err != nil {
		return nil, err
	}
	cache[tmpl] = t
	return t, nil
}

func Render(w http.ResponseWriter, status int, tmpl string, td *Data) error {
	t, err := parse(tmpl)
	if err != nil {
		return err
	}

	buf := &bytes.Buffer{}

	err = t.ExecuteTemplate(buf, "base", td)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}
