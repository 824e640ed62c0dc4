package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/geocoder89/shopadmin/internal/backend"
	"github.com/geocoder89/shopadmin/internal/catalog"
	"github.com/geocoder89/shopadmin/internal/form"
	"github.com/geocoder89/shopadmin/internal/guard"
	"github.com/geocoder89/shopadmin/internal/http/middlewares"
	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/record"
	"github.com/geocoder89/shopadmin/internal/table"
)

const (
	msgExportFailed   = "Failed to export data"
	msgConfirmExpired = "Confirmation expired. Please try again."
	msgActionFailed   = "Action failed"
)

// ExportObserver counts completed downloads.
type ExportObserver interface {
	ObserveExport(entity, format string)
}

type EntityHandler struct {
	catalog   *catalog.Catalog
	notifier  notifications.Notifier
	confirms  *table.Confirmations
	debouncer *lookup.Debouncer
	pages     *Pages
	exports   ExportObserver
	now       func() time.Time
	log       *slog.Logger
}

type EntityDeps struct {
	Catalog   *catalog.Catalog
	Notifier  notifications.Notifier
	Confirms  *table.Confirmations
	Debouncer *lookup.Debouncer
	Pages     *Pages
	Exports   ExportObserver
	Logger    *slog.Logger
}

func NewEntityHandler(d EntityDeps) *EntityHandler {
	h := &EntityHandler{
		catalog:   d.Catalog,
		notifier:  d.Notifier,
		confirms:  d.Confirms,
		debouncer: d.Debouncer,
		pages:     d.Pages,
		exports:   d.Exports,
		now:       time.Now,
		log:       d.Logger,
	}
	if h.notifier == nil {
		h.notifier = notifications.NewLogNotifier(nil)
	}
	if h.confirms == nil {
		h.confirms = table.NewConfirmations(0)
	}
	if h.debouncer == nil {
		h.debouncer = lookup.NewDebouncer(0)
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	return h
}

// Register mounts every entity of the catalog under /<slug> of rg.
func (h *EntityHandler) Register(rg *gin.RouterGroup) {
	for _, e := range h.catalog.Entities() {
		g := rg.Group("/" + e.Slug)

		g.GET("", h.with(e, h.list))
		g.GET("/export", h.with(e, h.export))
		g.GET("/options/:field", h.with(e, h.options))
		if e.AddEnabled {
			g.GET("/add", h.with(e, h.addPage))
			g.POST("/add", h.with(e, h.add))
		}
		g.GET("/edit/:id", h.with(e, h.editPage))
		g.POST("/edit/:id", h.with(e, h.edit))
		g.GET("/view/:id", h.with(e, h.view))
		g.GET("/delete/:id", h.with(e, h.deletePage))
		g.POST("/delete/:id", h.with(e, h.delete))
		g.POST("/action/:id/:action", h.with(e, h.action))
	}
}

func (h *EntityHandler) with(e *catalog.Entity, fn func(*gin.Context, *catalog.Entity)) gin.HandlerFunc {
	return func(c *gin.Context) { fn(c, e) }
}

func (h *EntityHandler) engine(c *gin.Context, e *catalog.Entity) *table.Engine {
	return table.FromURL(e.TableConfig(h.catalog.Gateway, h.notifier), c.Request.URL.Query())
}

func (h *EntityHandler) list(c *gin.Context, e *catalog.Entity) {
	ctx := c.Request.Context()
	eng := h.engine(c, e)

	var g errgroup.Group
	var fetchErr error
	g.Go(func() error {
		fetchErr = eng.Fetch(ctx)
		return nil
	})
	g.Go(func() error {
		eng.LoadFilterOptions(ctx)
		return nil
	})
	_ = g.Wait()

	if fetchErr != nil {
		if h.sessionExpired(c, fetchErr) {
			return
		}
		h.log.WarnContext(ctx, "list fetch failed", "entity", e.Slug, "err", fetchErr)
	}

	v := eng.View()
	colspan := len(v.Headers)
	if v.Actions.Any() {
		colspan++
	}

	h.pages.Render(c, http.StatusOK, "list.html", gin.H{
		"Title":      e.Title,
		"Entity":     e,
		"Base":       e.Path(),
		"Table":      v,
		"Colspan":    colspan,
		"Return":     c.Request.URL.RequestURI(),
		"ExportCSV":  exportLink(e, v.Query, table.CSV, false),
		"ExportXLSX": exportLink(e, v.Query, table.XLSX, false),
		"ExportAll":  exportLink(e, v.Query, table.CSV, true),
	})
}

func exportLink(e *catalog.Entity, q table.Query, f table.Format, all bool) template.URL {
	v := q.Values()
	v.Set("format", string(f))
	if all {
		v.Set("scope", "all")
	}
	return template.URL(e.Path("export") + "?" + v.Encode())
}

// export downloads the current page, or with scope=all every matching record.
func (h *EntityHandler) export(c *gin.Context, e *catalog.Entity) {
	ctx := c.Request.Context()
	f := table.CSV
	if c.Query("format") == string(table.XLSX) {
		f = table.XLSX
	}

	v := c.Request.URL.Query()
	v.Del("format")
	v.Del("scope")
	back := e.Path()
	if enc := v.Encode(); enc != "" {
		back += "?" + enc
	}

	eng := h.engine(c, e)
	var buf bytes.Buffer
	var err error
	if c.Query("scope") == "all" {
		err = eng.ExportAll(ctx, &buf, f)
	} else if err = eng.Fetch(ctx); err == nil {
		err = eng.Export(ctx, &buf, f)
	} else {
		// the engine already reported the failed fetch
		if !h.sessionExpired(c, err) {
			c.Redirect(http.StatusFound, back)
		}
		return
	}

	if err != nil {
		if h.sessionExpired(c, err) {
			return
		}
		var be *backend.Error
		if !errors.Is(err, table.ErrNoData) && !errors.As(err, &be) {
			_ = notifications.Error(ctx, h.notifier, msgExportFailed)
		}
		h.log.WarnContext(ctx, "export failed", "entity", e.Slug, "format", f, "err", err)
		c.Redirect(http.StatusFound, back)
		return
	}

	if h.exports != nil {
		h.exports.ObserveExport(e.Slug, string(f))
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, table.Filename(e.Slug, f, h.now())))
	c.Data(http.StatusOK, f.ContentType(), buf.Bytes())
}

// options answers the debounced select search of a form field or filter.
func (h *EntityHandler) options(c *gin.Context, e *catalog.Entity) {
	ctx := c.Request.Context()
	name := c.Param("field")

	fetch, ok := optionSource(e, name)
	if !ok {
		RespondNotFound(c, "Unknown option field")
		return
	}

	key := middlewares.SessionIDFrom(c) + ":" + e.Slug + ":" + name
	opts, err := h.debouncer.Search(ctx, key, lookup.NewLoader(fetch), c.Query("q"))
	if err != nil {
		if errors.Is(err, lookup.ErrSuperseded) {
			RespondConflict(c, "superseded", "A newer search replaced this one")
			return
		}
		var be *backend.Error
		if errors.As(err, &be) {
			RespondBackendError(c, be.Status, be.Message)
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		h.log.ErrorContext(ctx, "option search failed", "entity", e.Slug, "field", name, "err", err)
		RespondInternal(c, "Failed to load options")
		return
	}

	if opts == nil {
		opts = []lookup.Option{}
	}
	RespondJSONWithETag(c, http.StatusOK, gin.H{"options": opts})
}

func optionSource(e *catalog.Entity, name string) (lookup.Func, bool) {
	for _, fd := range e.Fields {
		if fd.Name != name {
			continue
		}
		if fd.Loader != nil {
			return fd.Loader, true
		}
		if len(fd.Options) > 0 {
			return lookup.Static(fd.Options), true
		}
	}
	for _, f := range e.Filters {
		if f.Key != name || !f.IsSelect() {
			continue
		}
		if f.Loader != nil {
			return f.Loader, true
		}
		return lookup.Static(f.Options), true
	}
	return nil, false
}

func (h *EntityHandler) addPage(c *gin.Context, e *catalog.Entity) {
	f := e.NewForm(nil, false, h.notifier)
	f.LoadOptions(c.Request.Context())
	h.renderForm(c, e, f, http.StatusOK, e.Path("add"))
}

func (h *EntityHandler) add(c *gin.Context, e *catalog.Entity) {
	f := e.NewForm(nil, false, h.notifier)
	h.submit(c, e, f, "", e.Path("add"))
}

func (h *EntityHandler) editPage(c *gin.Context, e *catalog.Entity) {
	r, ok := h.load(c, e)
	if !ok {
		return
	}
	f := e.NewForm(r, true, h.notifier)
	f.LoadOptions(c.Request.Context())
	h.renderForm(c, e, f, http.StatusOK, e.Path("edit", r.ID()))
}

// edit starts from the stored record so a file field without a new upload keeps
// its current value.
func (h *EntityHandler) edit(c *gin.Context, e *catalog.Entity) {
	r, ok := h.load(c, e)
	if !ok {
		return
	}
	f := e.NewForm(r, true, h.notifier)
	h.submit(c, e, f, c.Param("id"), e.Path("edit", c.Param("id")))
}

func (h *EntityHandler) submit(c *gin.Context, e *catalog.Entity, f *form.Form, id, action string) {
	ctx := c.Request.Context()

	if err := f.Bind(c.Request); err != nil {
		h.log.WarnContext(ctx, "form body unreadable", "entity", e.Slug, "err", err)
		_ = notifications.Error(ctx, h.notifier, "Could not read the submitted form")
		f.LoadOptions(ctx)
		h.renderForm(c, e, f, http.StatusBadRequest, action)
		return
	}
	uploadErrs := maps.Clone(f.Errors)
	if len(uploadErrs) > 0 {
		f.Validate()
		maps.Copy(f.Errors, uploadErrs)
		f.LoadOptions(ctx)
		h.renderForm(c, e, f, http.StatusUnprocessableEntity, action)
		return
	}

	err := f.Submit(ctx, func(ctx context.Context, v form.Values) error {
		payload, err := payloadFor(e, v)
		if err != nil {
			return err
		}
		if f.IsEdit {
			_, err = h.catalog.Gateway.Update(ctx, e.Resource, id, payload)
		} else {
			_, err = h.catalog.Gateway.Create(ctx, e.Resource, payload)
		}
		return err
	})

	if err == nil {
		msg := e.Messages.Created
		if f.IsEdit {
			msg = e.Messages.Updated
		}
		if msg == "" {
			msg = e.Singular + " saved successfully"
		}
		_ = notifications.Replace(ctx, h.notifier, notifications.NewToast(notifications.LevelSuccess, msg))
		seeOther(c, e.Path())
		return
	}

	if h.sessionExpired(c, err) {
		return
	}

	var ve *catalog.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		f.Errors[ve.Field] = ve.Message
	}

	status := http.StatusUnprocessableEntity
	var be *backend.Error
	if errors.As(err, &be) && be.Status >= 500 {
		status = http.StatusBadGateway
	}
	h.log.InfoContext(ctx, "form rejected", "entity", e.Slug, "edit", f.IsEdit, "err", err)

	f.LoadOptions(ctx)
	h.renderForm(c, e, f, status, action)
}

func payloadFor(e *catalog.Entity, v form.Values) (any, error) {
	if e.Payload != nil {
		return e.Payload(v)
	}
	return map[string]any(v), nil
}

func (h *EntityHandler) renderForm(c *gin.Context, e *catalog.Entity, f *form.Form, status int, action string) {
	h.pages.Render(c, status, "form.html", gin.H{
		"Title":       f.Title,
		"Entity":      e,
		"Form":        f,
		"Fields":      f.View(),
		"Action":      action,
		"Cancel":      e.Path(),
		"OptionsBase": e.Path("options"),
	})
}

func (h *EntityHandler) view(c *gin.Context, e *catalog.Entity) {
	r, ok := h.load(c, e)
	if !ok {
		return
	}
	page := e.BuildView(r)
	h.pages.Render(c, http.StatusOK, "view.html", gin.H{
		"Title":  page.Title,
		"Entity": e,
		"Page":   page,
		"Return": e.Path("view", r.ID()),
	})
}

func (h *EntityHandler) deletePage(c *gin.Context, e *catalog.Entity) {
	r, ok := h.load(c, e)
	if !ok {
		return
	}
	id := c.Param("id")
	p := h.confirms.Request(middlewares.SessionIDFrom(c), e.Slug, id, "delete")
	h.pages.Render(c, http.StatusOK, "confirm.html", gin.H{
		"Title":        "Confirm Delete",
		"Heading":      "Confirm Delete",
		"Message":      e.ConfirmText(r),
		"Action":       e.Path("delete", id),
		"Token":        p.Token,
		"ConfirmLabel": "Delete",
	})
}

func (h *EntityHandler) delete(c *gin.Context, e *catalog.Entity) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if h.cancelled(c) {
		seeOther(c, e.Path())
		return
	}
	if !h.confirmed(c, e, id, "delete") {
		_ = notifications.Warn(ctx, h.notifier, msgConfirmExpired)
		seeOther(c, e.Path())
		return
	}

	if err := h.catalog.Gateway.Delete(ctx, e.Resource, id); err != nil {
		if h.sessionExpired(c, err) {
			return
		}
		var be *backend.Error
		if !errors.As(err, &be) {
			_ = notifications.Error(ctx, h.notifier, "Failed to delete "+e.Singular)
		}
		h.log.WarnContext(ctx, "delete failed", "entity", e.Slug, "id", id, "err", err)
		seeOther(c, e.Path())
		return
	}

	msg := e.Messages.Deleted
	if msg == "" {
		msg = e.Singular + " deleted successfully"
	}
	_ = notifications.Replace(ctx, h.notifier, notifications.NewToast(notifications.LevelSuccess, msg))
	h.log.InfoContext(ctx, "record deleted", "entity", e.Slug, "id", id)
	seeOther(c, e.Path())
}

// action runs a custom row command. Actions marked Confirm first render a
// confirmation page that posts back here with a token.
func (h *EntityHandler) action(c *gin.Context, e *catalog.Entity) {
	ctx := c.Request.Context()
	id, name := c.Param("id"), c.Param("action")
	back := guard.SafeRedirect(c.PostForm("return"), e.Path())

	act, ok := e.Actions.Find(name)
	cmd, hasCmd := e.Commands[name]
	if !ok || !hasCmd {
		_ = notifications.Error(ctx, h.notifier, "Unknown action")
		seeOther(c, back)
		return
	}

	if act.Confirm && h.cancelled(c) {
		seeOther(c, back)
		return
	}

	r, ok := h.load(c, e)
	if !ok {
		return
	}
	if !act.VisibleFor(r) {
		_ = notifications.Warn(ctx, h.notifier, act.Label+" is not available for this record")
		seeOther(c, back)
		return
	}

	if act.Confirm {
		if c.PostForm("token") == "" {
			p := h.confirms.Request(middlewares.SessionIDFrom(c), e.Slug, id, name)
			h.pages.Render(c, http.StatusOK, "confirm.html", gin.H{
				"Title":        act.Label,
				"Heading":      act.Label,
				"Message":      fmt.Sprintf("Are you sure you want to %s?", act.Label),
				"Action":       e.Path("action", id, name),
				"Token":        p.Token,
				"Return":       back,
				"ConfirmLabel": act.Label,
			})
			return
		}
		if !h.confirmed(c, e, id, name) {
			_ = notifications.Warn(ctx, h.notifier, msgConfirmExpired)
			seeOther(c, back)
			return
		}
	}

	msg, err := cmd(ctx, h.catalog.Gateway, r)
	if err != nil {
		if h.sessionExpired(c, err) {
			return
		}
		var be *backend.Error
		if !errors.As(err, &be) {
			_ = notifications.Error(ctx, h.notifier, msgActionFailed)
		}
		h.log.WarnContext(ctx, "action failed", "entity", e.Slug, "id", id, "action", name, "err", err)
		seeOther(c, back)
		return
	}

	if msg != "" {
		_ = notifications.Replace(ctx, h.notifier, notifications.NewToast(notifications.LevelSuccess, msg))
	}
	h.log.InfoContext(ctx, "action applied", "entity", e.Slug, "id", id, "action", name)
	seeOther(c, back)
}

// cancelled drops the posted confirmation token when the operator backed out.
// Nothing reaches the backend.
func (h *EntityHandler) cancelled(c *gin.Context) bool {
	if c.PostForm("cancel") == "" {
		return false
	}
	h.confirms.Cancel(middlewares.SessionIDFrom(c), c.PostForm("token"))
	return true
}

// confirmed consumes the posted token and checks it was issued for this exact action.
func (h *EntityHandler) confirmed(c *gin.Context, e *catalog.Entity, id, action string) bool {
	p, err := h.confirms.Confirm(middlewares.SessionIDFrom(c), c.PostForm("token"))
	if err != nil {
		return false
	}
	return p.Entity == e.Slug && p.ID == id && p.Action == action
}

// load fetches the record named by :id. On failure it reports and redirects to the
// list, and returns false.
func (h *EntityHandler) load(c *gin.Context, e *catalog.Entity) (record.Record, bool) {
	ctx := c.Request.Context()
	id := c.Param("id")

	r, err := h.catalog.Gateway.Get(ctx, e.Resource, id)
	if err == nil {
		if r.ID() == "" {
			r["_id"] = id
		}
		return r, true
	}

	if h.sessionExpired(c, err) {
		return nil, false
	}
	if errors.Is(err, catalog.ErrNoRecord) {
		_ = notifications.Error(ctx, h.notifier, e.Singular+" not found")
	}
	h.log.WarnContext(ctx, "record load failed", "entity", e.Slug, "id", id, "err", err)
	h.redirect(c, e.Path())
	return nil, false
}

// sessionExpired sends the browser to login when the backend rejected the token.
// The client has already cleared the session and shown the toast.
func (h *EntityHandler) sessionExpired(c *gin.Context, err error) bool {
	var be *backend.Error
	if !errors.As(err, &be) || !be.Unauthorized() {
		return false
	}
	target := c.Request.URL.RequestURI()
	if c.Request.Method != http.MethodGet {
		target = guard.DefaultLanding
	}
	h.redirect(c, guard.LoginURL(target))
	return true
}

func (h *EntityHandler) redirect(c *gin.Context, location string) {
	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		c.Redirect(http.StatusFound, location)
		return
	}
	seeOther(c, location)
}
