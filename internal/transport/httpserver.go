package transport

import (
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/kapu/werewolf-arena-go/internal/gateway"
	"github.com/kapu/werewolf-arena-go/internal/obslog"
)

// Server exposes the tool gateway over HTTP. Every tool is a POST to
// /tools/<name> with a JSON body; the caller identifies itself with
// the X-Caller-Id header. The response status is always 200, failures
// travel inside the envelope.
type Server struct {
	addr   string
	gw     *gateway.Gateway
	srv    *fasthttp.Server
	logger *zap.Logger
}

func NewServer(addr string, gw *gateway.Gateway) *Server {
	s := &Server{addr: addr, gw: gw, logger: obslog.L()}
	s.srv = &fasthttp.Server{
		Handler:            s.handle,
		Name:               "matchd",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	return s
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())

	if path == "/healthz" {
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"ok":true}`)
		return
	}

	if !ctx.IsPost() || !strings.HasPrefix(path, "/tools/") {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	tool := strings.TrimPrefix(path, "/tools/")
	caller := gateway.Caller{
		ID:          string(ctx.Request.Header.Peek("X-Caller-Id")),
		ObserverKey: string(ctx.Request.Header.Peek("X-Observer-Key")),
	}

	out := s.gw.Handle(ctx, caller, tool, ctx.PostBody())
	ctx.SetContentType("application/json")
	ctx.SetBody(out)
}

func (s *Server) Start() error {
	s.logger.Info("http_server_listening", zap.String("addr", s.addr))
	return s.srv.ListenAndServe(s.addr)
}

func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}
