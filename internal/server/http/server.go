package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/runtime"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/server/http/controllers"
	dispatchsvc "github.com/Talhamuhammadali/event-driven-mircorservice/internal/services/dispatch"
	relaysvc "github.com/Talhamuhammadali/event-driven-mircorservice/internal/services/relay"
	logpkg "github.com/Talhamuhammadali/event-driven-mircorservice/pkg/log"
)

type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
}

// New builds the gateway: dispatch and relay services plus the controller
// routes, behind permissive CORS.
func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	dispatch := dispatchsvc.NewWithLogger(rt, logger.With(logpkg.Component("dispatch")))
	relay := relaysvc.NewWithLogger(rt, logger.With(logpkg.Component("relay")))

	mux := http.NewServeMux()
	controllers.NewControllerRegistry(rt, dispatch, relay).RegisterAllRoutes(mux)

	httpLogger := logger.With(logpkg.Component("http"))
	return &Server{
		rt: rt,
		srv: &http.Server{
			Handler: cors(mux),
			// net/http complains about dropped connections and header
			// parse failures through ErrorLog; keep it on the same stream.
			ErrorLog: logpkg.ToStdLogger(httpLogger, logpkg.WarnLevel),
		},
		logger: httpLogger,
	}
}

// ListenAndServe serves until ctx is done, then shuts down draining open
// streams for up to 5 seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.With(logpkg.Str("addr", l.Addr().String())).Info("http.listen")
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		s.logger.Info("http.shutdown")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
