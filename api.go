package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof" // register handlers
	"regexp"
	"strconv"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zephyrtronium/lcong/lcg"
	"github.com/zephyrtronium/lcong/metrics"
	"github.com/zephyrtronium/lcong/spectral"
	"github.com/zephyrtronium/lcong/store"
	"github.com/zephyrtronium/lcong/syncmap"
)

// apiMaxDims is the highest spectral test dimension the API computes.
const apiMaxDims = 10

type server struct {
	store   store.Store
	metrics *metrics.Metrics
	// cache holds spectral test responses by parameters.
	cache   *syncmap.Map[spectralKey, *spectralResponse]
	limits  spectral.Options
	timeout time.Duration
	merit   float64
}

type spectralKey struct {
	a, m uint64
	dims int
}

func newServer(st store.Store, met *metrics.Metrics, cfg *Config) *server {
	return &server{
		store:   st,
		metrics: met,
		cache:   syncmap.New[spectralKey, *spectralResponse](cfg.HTTP.Cache),
		limits:  cfg.Limits.Options(),
		timeout: fseconds(cfg.Limits.Timeout),
		merit:   cfg.Thresholds.Merit,
	}
}

func (s *server) handler() *http.ServeMux {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollectorMemStatsMetricsDisabled(),
		collectors.WithGoCollectorRuntimeMetrics(
			collectors.GoRuntimeMetricsRule{
				Matcher: regexp.MustCompile(`^(/gc/heap/allocs:bytes|/memory/classes/total:bytes|/sched/gomaxprocs:threads|/sched/goroutines:goroutines)$`),
			},
		),
	))
	reg.MustRegister(s.metrics.Collectors()...)
	opts := promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, opts))
	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("GET /api/result", s.apiResult)
	mux.HandleFunc("GET /api/results", s.apiResults)
	mux.HandleFunc("GET /api/spectral", s.apiCached)
	mux.HandleFunc("POST /api/spectral", s.apiSpectral)
	return mux
}

// listen serves the API until ctx is done.
func (s *server) listen(ctx context.Context, listen string) error {
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("couldn't start API server: %w", err)
	}
	srv := http.Server{
		Handler:     s.handler(),
		ReadTimeout: 5 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}
	go func() {
		slog.InfoContext(ctx, "HTTP API server", slog.Any("addr", l.Addr()))
		err := srv.Serve(l)
		if err == http.ErrServerClosed {
			return
		}
		slog.ErrorContext(ctx, "HTTP API server closed", slog.Any("err", err))
	}()
	<-ctx.Done()
	// The context is now done, so it is obviously the wrong choice for
	// managing the shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func jsonerror(w http.ResponseWriter, status int, msg string) {
	v := struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}{
		Error:  msg,
		Status: status,
	}
	b, err := json.Marshal(&v)
	if err != nil {
		panic(err)
	}
	w.WriteHeader(status)
	w.Write(b)
}

func (s *server) apiResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "result"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	key := store.Key{Source: r.FormValue("source")}
	if key.Source == "" {
		key.Source = store.SourceLCG
	}
	for _, p := range []struct {
		name string
		v    *uint64
	}{{"x0", &key.X0}, {"a", &key.A}, {"c", &key.C}, {"m", &key.M}} {
		q := r.FormValue(p.name)
		if q == "" {
			jsonerror(w, http.StatusBadRequest, "missing "+p.name)
			return
		}
		var err error
		*p.v, err = lcg.ParseValue(q)
		if err != nil {
			log.WarnContext(ctx, "bad request", slog.String(p.name, q), slog.Any("err", err))
			jsonerror(w, http.StatusBadRequest, "invalid "+p.name)
			return
		}
	}
	rec, err := s.store.Load(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.InfoContext(ctx, "no result", slog.String("key", key.String()))
		jsonerror(w, http.StatusNotFound, "no result for parameters")
		return
	case err != nil:
		log.ErrorContext(ctx, "couldn't load result", slog.Any("err", err))
		jsonerror(w, http.StatusInternalServerError, err.Error())
		return
	}
	u := struct {
		Data   *store.Record `json:"data"`
		Status int           `json:"status"`
	}{
		Data:   rec,
		Status: http.StatusOK,
	}
	b, err := json.Marshal(&u)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}

// apiResults streams all stored records as a sequence of JSON objects.
func (s *server) apiResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "results"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/jsonl")
	e := jsontext.NewEncoder(w)
	var n int
	for rec, err := range s.store.Records(ctx) {
		if err != nil {
			log.ErrorContext(ctx, "couldn't list results", slog.Any("err", err))
			if n == 0 {
				jsonerror(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		if err := json.MarshalEncode(e, rec); err != nil {
			log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
			return
		}
		n++
	}
	log.InfoContext(ctx, "listed", slog.Int("n", n))
}

// apiCached responds with the cached spectral test results from oldest to
// newest.
func (s *server) apiCached(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "cached"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	res := make([]*spectralResponse, 0, s.cache.Len())
	for _, v := range s.cache.All() {
		res = append(res, v)
	}
	u := struct {
		Data   []*spectralResponse `json:"data"`
		Status int                 `json:"status"`
	}{
		Data:   res,
		Status: http.StatusOK,
	}
	b, err := json.Marshal(&u)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}

type apiSpectralRequest struct {
	// A and M are parameter expressions.
	A    string `json:"a"`
	M    string `json:"m"`
	Dims int    `json:"dims,omitzero"`
}

type spectralResponse struct {
	A        uint64      `json:"a"`
	M        uint64      `json:"m"`
	Spectral []store.Dim `json:"spectral"`
	Error    string      `json:"error,omitzero"`
}

// apiSpectral runs spectral tests for each request object in the body and
// responds with the results in order.
func (s *server) apiSpectral(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "spectral"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	d := jsontext.NewDecoder(r.Body)
	var res []*spectralResponse
	for {
		var req apiSpectralRequest
		err := json.UnmarshalDecode(d, &req)
		switch err {
		case nil: // do nothing
		case io.EOF:
			u := struct {
				Data   []*spectralResponse `json:"data"`
				Status int                 `json:"status"`
			}{
				Data:   res,
				Status: http.StatusOK,
			}
			b, err := json.Marshal(&u)
			if err != nil {
				panic(err)
			}
			if _, err := w.Write(b); err != nil {
				log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
			}
			return
		default:
			log.ErrorContext(ctx, "read request", slog.Any("err", err))
			jsonerror(w, http.StatusBadRequest, "request read failed")
			return
		}
		key, err := req.key()
		if err != nil {
			log.WarnContext(ctx, "bad request", slog.Any("err", err))
			jsonerror(w, http.StatusBadRequest, err.Error())
			return
		}
		if v, ok := s.cache.Load(key); ok {
			log.DebugContext(ctx, "cached", slog.Uint64("a", key.a), slog.Uint64("m", key.m), slog.Int("dims", key.dims))
			res = append(res, v)
			continue
		}
		v, err := s.spectral(ctx, key)
		if err != nil && ctx.Err() != nil {
			log.WarnContext(ctx, "request canceled", slog.Any("err", err))
			return
		}
		res = append(res, v)
	}
}

func (req *apiSpectralRequest) key() (spectralKey, error) {
	a, err := lcg.ParseValue(req.A)
	if err != nil {
		return spectralKey{}, fmt.Errorf("invalid a: %w", err)
	}
	m, err := lcg.ParseValue(req.M)
	if err != nil {
		return spectralKey{}, fmt.Errorf("invalid m: %w", err)
	}
	dims := req.Dims
	if dims == 0 {
		dims = 6
	}
	if dims < 2 || dims > apiMaxDims {
		return spectralKey{}, fmt.Errorf("dims must be between 2 and %d", apiMaxDims)
	}
	return spectralKey{a: a, m: m, dims: dims}, nil
}

// spectral runs a spectral test and caches the response unless it was
// interrupted.
func (s *server) spectral(ctx context.Context, key spectralKey) (*spectralResponse, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := spectral.Run(ctx, key.a, key.m, key.dims, s.limits)
	s.metrics.SpectralLatency.Observe(time.Since(start).Seconds(), strconv.Itoa(key.dims))
	v := &spectralResponse{A: key.a, M: key.m, Spectral: []store.Dim{}}
	if res != nil {
		v.Spectral = dims(res, s.merit)
	}
	if err != nil {
		s.metrics.SpectralFailures.Observe(1)
		v.Error = err.Error()
		if ctx.Err() != nil {
			return v, err
		}
	}
	s.cache.Store(key, v)
	return v, err
}
