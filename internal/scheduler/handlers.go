package scheduler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for scheduled task inspection and
// manual runs.
type Handlers struct {
	scheduler *Scheduler
}

// NewHandlers creates scheduler handlers.
func NewHandlers(scheduler *Scheduler) *Handlers {
	return &Handlers{scheduler: scheduler}
}

// RegisterRoutes registers scheduler routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/scheduler/tasks", h.ListTasks)
	g.GET("/scheduler/tasks/:id", h.GetTask)
	g.POST("/scheduler/tasks/:id/run", h.RunTask)
}

// ListTasks returns all registered tasks.
// GET /api/scheduler/tasks
func (h *Handlers) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scheduler.ListTasks())
}

// GetTask returns one task.
// GET /api/scheduler/tasks/:id
func (h *Handlers) GetTask(c echo.Context) error {
	task, err := h.scheduler.GetTask(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, task)
}

// RunTask triggers a task outside its schedule.
// POST /api/scheduler/tasks/:id/run
func (h *Handlers) RunTask(c echo.Context) error {
	taskID := c.Param("id")
	if err := h.scheduler.RunNow(taskID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Task started",
		"taskId":  taskID,
	})
}
