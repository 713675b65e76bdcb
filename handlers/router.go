package handlers

import (
	"io/fs"
	"net/http"
	"path"

	"college-roster-go/db"
	"college-roster-go/logger"
	"college-roster-go/metrics"
	"college-roster-go/web"
	"github.com/gin-gonic/gin"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger logger.Logger
	// Metrics enables request metrics and GET /metrics when set.
	Metrics *metrics.Manager
	// Public is the static asset tree; defaults to the embedded one.
	Public fs.FS
}

// NewRouter builds the gin engine serving the roster routes. The store
// must already be initialized.
func NewRouter(store db.Store, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Public == nil {
		opts.Public = web.Public()
	}

	router := gin.New()
	// unmatched paths and methods must fall through to the 404 handler
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleMethodNotAllowed = false

	router.Use(Recovery(opts.Logger), RequestID(), AccessLog(opts.Logger))
	if opts.Metrics != nil {
		router.Use(Metrics(opts.Metrics))
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	apiHandler := NewAPIHandler(store, opts.Logger)

	router.GET("/", page(web.HomeView))
	router.GET("/about", page(web.AboutView))

	router.GET("/students", apiHandler.GetStudents)
	router.GET("/students/add", page(web.AddStudentView))
	router.POST("/students/add", apiHandler.AddStudent)
	router.POST("/students/import", apiHandler.ImportStudents)
	router.GET("/student/:num", apiHandler.GetStudentByNum)
	router.GET("/tas", apiHandler.GetTAs)
	router.GET("/courses", apiHandler.GetCourses)

	router.NoRoute(notFound(opts.Public))
	return router
}

// page serves an embedded view. Views are read once, at route setup.
func page(name string) gin.HandlerFunc {
	body, err := web.View(name)
	if err != nil {
		panic("handlers: missing view " + name + ": " + err.Error())
	}
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", body)
	}
}

// notFound serves public assets and answers everything else with a plain 404.
func notFound(public fs.FS) gin.HandlerFunc {
	files := web.FileSystem(public)
	return func(c *gin.Context) {
		method := c.Request.Method
		if (method == http.MethodGet || method == http.MethodHead) && web.HasAsset(public, c.Request.URL.Path) {
			c.FileFromFS(path.Clean("/"+c.Request.URL.Path), files)
			return
		}
		c.String(http.StatusNotFound, msgPageNotFound)
	}
}
