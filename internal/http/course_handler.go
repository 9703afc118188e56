package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"elearn-api/internal/repository"
)

// CourseHandler expone lectura de cursos.
type CourseHandler struct {
	logger  *zap.Logger
	courses repository.CourseRepository
}

func NewCourseHandler(logger *zap.Logger, courses repository.CourseRepository) *CourseHandler {
	return &CourseHandler{
		logger:  logger,
		courses: courses,
	}
}

// GetCourse maneja GET /courses/:id.
func (h *CourseHandler) GetCourse(c *gin.Context) {
	id := c.Param("id")

	course, err := h.courses.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "course not found"})
			return
		}
		h.logger.Error("get course failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load course"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"course": course})
}
