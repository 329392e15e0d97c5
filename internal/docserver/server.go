package docserver

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/blackwell-systems/libractl/internal/logging"
	"github.com/blackwell-systems/libractl/internal/remote"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// Options configures a Server.
type Options struct {
	// Token, when set, is required as a bearer token on /v1 routes.
	Token   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Server exposes a remote.Store over the /v1 REST API.
type Server struct {
	app     *fiber.App
	store   remote.Store
	metrics *Metrics
	log     *zap.Logger
	token   string
	timeout time.Duration
}

// New builds the fiber app around store.
func New(store remote.Store, opts Options) *Server {
	s := &Server{
		store:   store,
		metrics: NewMetrics(),
		log:     logging.OrNop(opts.Logger),
		token:   opts.Token,
		timeout: opts.Timeout,
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "libractl-docserver",
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(s.requestLogger)
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	v1 := s.app.Group("/v1", s.requireToken)
	v1.Get("/:coll", s.list)
	v1.Post("/:coll", s.create)
	v1.Get("/:coll/:id", s.get)
	v1.Put("/:coll/:id", s.put)
	v1.Patch("/:coll/:id", s.update)
	v1.Delete("/:coll/:id", s.delete)
	return s
}

// App returns the fiber app; tests drive it with app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()
	select {
	case <-ctx.Done():
		s.log.Info("Shutting down document server")
		return s.app.ShutdownWithTimeout(5 * time.Second)
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	id := c.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("X-Request-ID", id)
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	c.SetUserContext(ctx)

	err := c.Next()
	s.log.Debug("Request served",
		zap.String("request_id", id),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(start)),
	)
	return err
}

func (s *Server) requireToken(c *fiber.Ctx) error {
	if s.token == "" {
		return c.Next()
	}
	auth := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.token {
		return fiber.NewError(fiber.StatusUnauthorized, "missing or invalid bearer token")
	}
	return c.Next()
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	msg := err.Error()
	if code == fiber.StatusInternalServerError {
		s.log.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
		msg = "internal error"
	}
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "error",
		"message": msg,
	})
}

// params validates the route parameters.
func params(c *fiber.Ctx, withID bool) (coll, id string, err error) {
	coll = c.Params("coll")
	if !nameRe.MatchString(coll) {
		return "", "", fiber.NewError(fiber.StatusBadRequest, "invalid collection name")
	}
	if withID {
		id = c.Params("id")
		if !nameRe.MatchString(id) {
			return "", "", fiber.NewError(fiber.StatusBadRequest, "invalid document id")
		}
	}
	return coll, id, nil
}

// body copies the request body; fasthttp reuses its buffers.
func body(c *fiber.Ctx) (json.RawMessage, error) {
	b := c.Body()
	if !json.Valid(b) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "body must be a JSON document")
	}
	return append(json.RawMessage(nil), b...), nil
}

// ifMatch parses an If-Match header carrying a version number.
func ifMatch(c *fiber.Ctx) (int64, error) {
	h := strings.TrimSpace(c.Get(fiber.HeaderIfMatch))
	if h == "" || h == "*" {
		return 0, nil
	}
	h = strings.TrimPrefix(h, "W/")
	h = strings.Trim(h, `"`)
	v, err := strconv.ParseInt(h, 10, 64)
	if err != nil || v <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "If-Match must carry a document version")
	}
	return v, nil
}

// storeError maps store sentinels onto HTTP statuses and counts the failure.
func (s *Server) storeError(coll, op string, err error) error {
	var status int
	switch {
	case errors.Is(err, remote.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, remote.ErrConflict):
		status = fiber.StatusPreconditionFailed
	case errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusGatewayTimeout
	default:
		s.metrics.fail(coll, op, "500")
		return err
	}
	s.metrics.fail(coll, op, strconv.Itoa(status))
	return fiber.NewError(status, err.Error())
}

func (s *Server) reply(c *fiber.Ctx, status int, doc remote.Document) error {
	c.Set(fiber.HeaderETag, strconv.Quote(strconv.FormatInt(doc.Version, 10)))
	return c.Status(status).JSON(doc)
}

func (s *Server) list(c *fiber.Ctx) error {
	coll, _, err := params(c, false)
	if err != nil {
		return err
	}
	s.metrics.observe(coll, "list")
	docs, err := s.store.List(c.UserContext(), coll)
	if err != nil {
		return s.storeError(coll, "list", err)
	}
	if docs == nil {
		docs = []remote.Document{}
	}
	return c.JSON(fiber.Map{"documents": docs})
}

func (s *Server) get(c *fiber.Ctx) error {
	coll, id, err := params(c, true)
	if err != nil {
		return err
	}
	s.metrics.observe(coll, "get")
	doc, err := s.store.Get(c.UserContext(), coll, id)
	if err != nil {
		return s.storeError(coll, "get", err)
	}
	return s.reply(c, fiber.StatusOK, doc)
}

func (s *Server) create(c *fiber.Ctx) error {
	coll, _, err := params(c, false)
	if err != nil {
		return err
	}
	data, err := body(c)
	if err != nil {
		return err
	}
	s.metrics.observe(coll, "create")
	doc, err := s.store.Create(c.UserContext(), coll, data)
	if err != nil {
		return s.storeError(coll, "create", err)
	}
	return s.reply(c, fiber.StatusCreated, doc)
}

func (s *Server) put(c *fiber.Ctx) error {
	coll, id, err := params(c, true)
	if err != nil {
		return err
	}
	data, err := body(c)
	if err != nil {
		return err
	}
	s.metrics.observe(coll, "put")
	doc, err := s.store.Put(c.UserContext(), coll, id, data)
	if err != nil {
		return s.storeError(coll, "put", err)
	}
	return s.reply(c, fiber.StatusOK, doc)
}

func (s *Server) update(c *fiber.Ctx) error {
	coll, id, err := params(c, true)
	if err != nil {
		return err
	}
	version, err := ifMatch(c)
	if err != nil {
		return err
	}
	data, err := body(c)
	if err != nil {
		return err
	}
	s.metrics.observe(coll, "update")
	doc, err := s.store.Update(c.UserContext(), coll, id, data, version)
	if err != nil {
		return s.storeError(coll, "update", err)
	}
	return s.reply(c, fiber.StatusOK, doc)
}

func (s *Server) delete(c *fiber.Ctx) error {
	coll, id, err := params(c, true)
	if err != nil {
		return err
	}
	s.metrics.observe(coll, "delete")
	if err := s.store.Delete(c.UserContext(), coll, id); err != nil {
		return s.storeError(coll, "delete", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
