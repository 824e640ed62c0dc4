package handlers

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/shopadmin/internal/catalog"
	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/session"
	"github.com/geocoder89/shopadmin/internal/table"
)

//go:embed templates/*.html
var templateFS embed.FS

// ToastSource drains the toasts queued for the browser bound to ctx.
type ToastSource interface {
	Pending(ctx context.Context) ([]notifications.Toast, error)
}

type NavItem struct {
	Label   string
	Href    string
	AddHref string
	Active  bool
}

var funcs = template.FuncMap{
	"href":    href,
	"initial": initial,
	"stars":   starList,
	"num":     num,
	"upper":   strings.ToUpper,
	"lower":   strings.ToLower,
	"preview": previewURL,
}

// Templates parses the embedded page templates.
func Templates() *template.Template {
	return template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

// Pages renders full pages with the chrome every page shares: user, navigation and toasts.
type Pages struct {
	catalog *catalog.Catalog
	toasts  ToastSource
	log     *slog.Logger
}

func NewPages(cat *catalog.Catalog, toasts ToastSource, log *slog.Logger) *Pages {
	if log == nil {
		log = slog.Default()
	}
	return &Pages{catalog: cat, toasts: toasts, log: log}
}

func (p *Pages) Render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	ctx := c.Request.Context()

	if st, ok := session.FromContext(ctx); ok && st.IsAuth(ctx) {
		data["User"] = st.User()
		data["Nav"] = p.nav(c.Request.URL.Path)
	}

	if p.toasts != nil {
		toasts, err := p.toasts.Pending(ctx)
		if err != nil {
			p.log.WarnContext(ctx, "failed to read toasts", "err", err)
		}
		data["Toasts"] = toasts
	}
	data["RequestID"] = requestIDFrom(c)

	c.HTML(status, name, data)
}

func (p *Pages) nav(path string) []NavItem {
	items := []NavItem{{Label: "Dashboard", Href: "/admin/dashboard", Active: path == "/admin/dashboard"}}
	if p.catalog == nil {
		return items
	}
	for _, e := range p.catalog.Entities() {
		item := NavItem{Label: e.Title, Href: e.Path(), Active: strings.HasPrefix(path, e.Path())}
		if e.AddEnabled {
			item.AddHref = e.Path("add")
		}
		items = append(items, item)
	}
	return items
}

// seeOther is the redirect after a POST.
func seeOther(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

func href(path string, q table.Query) template.URL {
	enc := q.Encode()
	if enc == "" {
		return template.URL(path)
	}
	return template.URL(path + "?" + enc)
}

func initial(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(s)[:1]))
}

// starList is five flags, filled up to n.
func starList(n int) []bool {
	out := make([]bool, 5)
	for i := range out {
		out[i] = i < n
	}
	return out
}

// previewURL trusts only image data URLs and http(s) links.
func previewURL(s string) template.URL {
	switch {
	case strings.HasPrefix(s, "data:image/"), strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "http://"):
		return template.URL(s)
	default:
		return ""
	}
}

func num(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}
