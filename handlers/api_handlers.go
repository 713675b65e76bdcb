package handlers

import (
	"net/http"

	"college-roster-go/db"
	"college-roster-go/logger"
	"college-roster-go/models"
	"github.com/gin-gonic/gin"
)

// Response bodies of the roster routes.
const (
	msgFetchStudentsFailed = "Failed to fetch students"
	msgFetchTAsFailed      = "Failed to fetch TAs"
	msgFetchCoursesFailed  = "Failed to fetch courses"
	msgStudentNotFound     = "Student not found"
	msgSaveStudentFailed   = "Failed to save student data"
	msgPageNotFound        = "Page Not Found"
	msgImportMissingFile   = "Missing 'file' in form data"
	msgImportFailed        = "Failed to import students"
)

// APIHandler holds the dependencies for the roster handlers
type APIHandler struct {
	Store db.Store
	log   logger.Logger
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(store db.Store, log logger.Logger) *APIHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &APIHandler{Store: store, log: log}
}

// GetStudents handles GET /students and GET /students?course=
func (h *APIHandler) GetStudents(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		students []models.Student
		err      error
	)
	if course := c.Query("course"); course != "" {
		students, err = h.Store.GetStudentsByCourse(ctx, course)
	} else {
		students, err = h.Store.GetAllStudents(ctx)
	}
	if err != nil {
		h.log.Error(ctx, "fetch students failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgFetchStudentsFailed})
		return
	}
	if students == nil {
		// Return empty list instead of null for JSON consistency
		students = []models.Student{}
	}
	c.JSON(http.StatusOK, students)
}

// GetTAs handles GET /tas
func (h *APIHandler) GetTAs(c *gin.Context) {
	ctx := c.Request.Context()
	tas, err := h.Store.GetTAs(ctx)
	if err != nil {
		h.log.Error(ctx, "fetch TAs failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgFetchTAsFailed})
		return
	}
	if tas == nil {
		tas = []models.Student{}
	}
	c.JSON(http.StatusOK, tas)
}

// GetCourses handles GET /courses
func (h *APIHandler) GetCourses(c *gin.Context) {
	ctx := c.Request.Context()
	courses, err := h.Store.GetCourses(ctx)
	if err != nil {
		h.log.Error(ctx, "fetch courses failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgFetchCoursesFailed})
		return
	}
	if courses == nil {
		courses = []models.Course{}
	}
	c.JSON(http.StatusOK, courses)
}

// GetStudentByNum handles GET /student/:num. Every failure, not only a
// missing student, is reported as 404.
func (h *APIHandler) GetStudentByNum(c *gin.Context) {
	ctx := c.Request.Context()
	num := c.Param("num")

	student, err := h.Store.GetStudentByNum(ctx, num)
	if err != nil {
		h.log.Warn(ctx, "student lookup failed", logger.String("num", num), logger.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"message": msgStudentNotFound})
		return
	}
	c.JSON(http.StatusOK, student)
}

// AddStudent handles POST /students/add with a URL-encoded form body
func (h *APIHandler) AddStudent(c *gin.Context) {
	ctx := c.Request.Context()

	if err := c.Request.ParseForm(); err != nil {
		h.log.Warn(ctx, "unreadable student form", logger.Error(err))
		c.String(http.StatusInternalServerError, msgSaveStudentFailed)
		return
	}
	record := make(db.Record, len(c.Request.PostForm))
	for field, values := range c.Request.PostForm {
		if len(values) > 0 {
			record[field] = values[0]
		}
	}

	student, err := h.Store.AddStudent(ctx, record)
	if err != nil {
		h.log.Error(ctx, "add student failed", logger.Error(err))
		c.String(http.StatusInternalServerError, msgSaveStudentFailed)
		return
	}

	h.log.Debug(ctx, "student saved", logger.Int("studentNum", student.StudentNum))
	c.Redirect(http.StatusSeeOther, "/students")
}

// ImportStudents handles POST /students/import with a multipart Excel upload
func (h *APIHandler) ImportStudents(c *gin.Context) {
	ctx := c.Request.Context()

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgImportMissingFile})
		return
	}
	file, err := header.Open()
	if err != nil {
		h.log.Error(ctx, "open uploaded file failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgImportFailed})
		return
	}
	defer file.Close()

	h.log.Info(ctx, "received roster upload", logger.String("filename", header.Filename))

	res, err := db.ImportStudents(ctx, h.Store, file, h.log)
	if err != nil {
		h.log.Error(ctx, "import failed", logger.String("filename", header.Filename), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgImportFailed})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Import successful",
		"imported": res.Imported,
		"skipped":  res.Skipped,
	})
}
