// Package views renders the portal pages from embedded templates.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"customsportal/services/portal/internal/access"
	"customsportal/services/portal/internal/billing"
	"customsportal/services/portal/internal/models"
	"customsportal/services/portal/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	layoutFile   = "templates/layout.html"
	partialsFile = "templates/partials.html"
)

// Page is the data every template receives.
type Page struct {
	Title     string
	User      *models.User
	Menu      []access.MenuItem
	Flashes   []session.Flash
	FormToken string
	Data      interface{}
}

// Renderer executes named page templates inside the shared layout.
type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

// NewRenderer parses every page template.
func NewRenderer(logger *zap.Logger) (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template), logger: logger}
	for _, file := range files {
		if file == layoutFile || file == partialsFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, layoutFile, partialsFile, file)
		if err != nil {
			return nil, fmt.Errorf("views: parse %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Render writes the page with the given status.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, p Page) {
	tmpl, ok := r.pages[name]
	if !ok {
		r.logger.Error("unknown template", zap.String("template", name))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", p); err != nil {
		r.logger.Error("render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

var funcs = template.FuncMap{
	"status": billing.DisplayStatus,
	"money":  Money,
	"ts": func(t *models.Timestamp) string {
		return t.Display()
	},
	"join": strings.Join,
	"allowed": func(u *models.User, f string) bool {
		return access.Allowed(u, access.Feature(f))
	},
	"add": func(a, b int) int { return a + b },
	"pdf": func(name string) bool {
		return strings.EqualFold(path.Ext(name), ".pdf")
	},
}

// Money formats amounts with two decimals; missing values render as "-".
func Money(v interface{}) string {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.StringFixed(2)
	case *decimal.Decimal:
		if x == nil {
			return "-"
		}
		return x.StringFixed(2)
	case decimal.NullDecimal:
		if !x.Valid {
			return "-"
		}
		return x.Decimal.StringFixed(2)
	case models.Scalar:
		d, err := decimal.NewFromString(strings.TrimSpace(string(x)))
		if err != nil {
			return x.String()
		}
		return d.StringFixed(2)
	case float64:
		return decimal.NewFromFloat(x).StringFixed(2)
	case int:
		return decimal.NewFromInt(int64(x)).StringFixed(2)
	case nil:
		return "-"
	default:
		return fmt.Sprint(v)
	}
}
