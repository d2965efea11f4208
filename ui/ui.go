// Package ui serves the demo page that subscribes to the ping stream from
// the browser.
package ui

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pingstream/server/middleware"
)

// Title is the heading of the demo page.
const Title = "Server-Sent Events Page"

//go:embed templates/*.html
var templates embed.FS

// Register loads the page template into engine and serves it on GET /.
// streamPath is the endpoint the page's EventSource connects to.
func Register(engine *gin.Engine, streamPath string) error {
	tmpl, err := template.ParseFS(templates, "templates/*.html")
	if err != nil {
		return fmt.Errorf("parsing ui templates: %w", err)
	}
	engine.SetHTMLTemplate(tmpl)
	engine.GET("/", index(streamPath))
	return nil
}

func index(streamPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache")
		c.HTML(http.StatusOK, "index.html", gin.H{
			"Title":      Title,
			"StreamPath": streamPath,
			"Nonce":      middleware.NonceFromContext(c.Request.Context()),
		})
	}
}
