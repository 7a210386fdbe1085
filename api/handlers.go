package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

const requestBodyMaxSize = 64 * 1024 // 64 KiB

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.GET("/api/tasks", listTasks(store, auth, logger))
	e.POST("/api/tasks", createTask(store, auth, deduper))
	e.PATCH("/api/tasks/:id", updateTaskStatus(store, auth))
	e.DELETE("/api/tasks/:id", deleteTask(store, auth))
	e.GET("/api/tasks/stream", streamTasks(store, auth))
	e.GET("/healthz", healthz(store))
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, err.Error())
		}
		return c.NoContent(http.StatusOK)
	}
}

func listTasks(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newListRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		fetchStart := time.Now()
		tasks, fetchErr := store.FetchTasks(ctx, userID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func createTask(store Storage, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req createTaskRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Title = strings.TrimSpace(req.Title)
		if err := validate.Struct(req); err != nil {
			return c.String(http.StatusBadRequest, "invalid task")
		}

		// New tasks land in the todo column unless the client says otherwise.
		status := domain.StatusTodo
		if req.Status != "" {
			status = domain.Status(req.Status)
		}

		idemKey := c.Request().Header.Get(headerIdempotencyKey)
		if deduper != nil && idemKey != "" {
			added, dedupErr := deduper.Add(ctx, userID, idemKey)
			if dedupErr != nil {
				c.Logger().Error(dedupErr)
				return c.String(http.StatusInternalServerError, "idempotency check failed")
			}
			if !added {
				return c.String(http.StatusConflict, "duplicate request")
			}
		}

		task, err := store.CreateTask(ctx, userID, domain.Task{
			ID:     uuid.NewString(),
			Title:  req.Title,
			Status: status,
		})
		if err != nil {
			if deduper != nil && idemKey != "" {
				if rmErr := deduper.Remove(ctx, userID, idemKey); rmErr != nil {
					c.Logger().Errorf("deduper remove: %v", rmErr)
				}
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func updateTaskStatus(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req updateStatusRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := validate.Struct(req); err != nil {
			return c.String(http.StatusBadRequest, "invalid status")
		}

		task, err := store.UpdateTaskStatus(ctx, userID, c.Param("id"), domain.Status(req.Status))
		if err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.String(http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		if err := store.SoftDeleteTask(ctx, userID, c.Param("id")); err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.String(http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func decodeBody(r io.Reader, dst any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(r, requestBodyMaxSize))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
