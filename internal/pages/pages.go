package pages

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/abduss/practiceroom/internal/auth"
	"github.com/abduss/practiceroom/internal/config"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// HomePath is where authenticated visitors of the login page are sent.
const HomePath = "/home"

type page struct {
	path     string
	template string
	title    string
}

// protectedPages are only rendered for a signed-in musician.
var protectedPages = []page{
	{path: HomePath, template: "home.html", title: "Practice"},
	{path: "/profile", template: "profile.html", title: "Profile"},
	{path: "/tuner", template: "tuner.html", title: "Tuner"},
	{path: "/pitch", template: "pitch.html", title: "Pitch Trainer"},
	{path: "/chords", template: "chords.html", title: "Chord Finder"},
	{path: "/spectrum", template: "spectrum.html", title: "Spectrum"},
	{path: "/metronome", template: "metronome.html", title: "Metronome"},
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	return tmpl, nil
}

// Register installs the page templates and routes on router. The session
// middleware must already be in the chain.
func Register(router *gin.Engine, cfg config.PagesConfig) error {
	tmpl, err := Templates()
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)

	h := &handler{clientConfig: cfg.ClientConfig}
	router.GET("/", h.render("index.html", "Practice Room"))
	router.GET(auth.LoginPath, h.login)

	protected := router.Group("/", auth.RequirePage())
	for _, p := range protectedPages {
		protected.GET(p.path, h.render(p.template, p.title))
	}

	if cfg.StaticDir != "" {
		router.Static("/static", cfg.StaticDir)
	}
	return nil
}

type handler struct {
	clientConfig map[string]string
}

func (h *handler) login(c *gin.Context) {
	if _, ok := auth.CurrentIdentity(c); ok {
		c.Redirect(http.StatusFound, HomePath)
		return
	}
	h.render("auth.html", "Sign in")(c)
}

func (h *handler) render(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := gin.H{
			"title":  title,
			"config": h.clientConfig,
		}
		if identity, ok := auth.CurrentIdentity(c); ok {
			data["user"] = identity
		}
		c.HTML(http.StatusOK, name, data)
	}
}
