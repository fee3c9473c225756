// Package server serves the booking form and the cancellation prediction.
package server

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/reservo/internal/telemetry"
	"github.com/KaramelBytes/reservo/internal/train"
)

const shutdownTimeout = 10 * time.Second

// Prediction is what the page shows after a valid submission.
type Prediction struct {
	Cancel      bool
	Probability float64
}

func (p Prediction) Label() string {
	if p.Cancel {
		return "likely to cancel"
	}
	return "not likely to cancel"
}

// Server wraps a loaded model artifact behind the form endpoints.
type Server struct {
	art     *train.Artifact
	metrics *telemetry.Metrics
	log     zerolog.Logger
	engine  *gin.Engine
}

// New builds the router. The artifact is read only after this point.
func New(art *train.Artifact, metrics *telemetry.Metrics, log zerolog.Logger) *Server {
	s := &Server{art: art, metrics: metrics, log: log.With().Str("component", "server").Logger()}

	features := Features()
	sort.Strings(features)
	if missing := art.Missing(features); len(missing) > 0 {
		fill := make(map[string]float64, len(missing))
		for _, f := range missing {
			fill[f] = art.Fill[f]
		}
		s.log.Info().Strs("features", missing).Interface("fill", fill).Msg("model features not on the form are filled with training medians")
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.SetHTMLTemplate(template.Must(template.New("index").Funcs(template.FuncMap{
		"pct": func(p float64) float64 { return p * 100 },
	}).Parse(indexHTML)))
	r.GET("/", s.handleIndex)
	r.POST("/", s.handlePredict)
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index", gin.H{})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"features":   s.art.Features,
		"trained_at": s.art.TrainedAt,
	})
}

func (s *Server) handlePredict(c *gin.Context) {
	var form Form
	if err := c.ShouldBind(&form); err != nil {
		s.reject(c, err)
		return
	}
	values, err := form.Values()
	if err != nil {
		s.reject(c, err)
		return
	}

	start := time.Now()
	p, err := s.art.CancelProbability(values)
	if err != nil {
		s.reject(c, err)
		return
	}
	pred := Prediction{Cancel: p > 0.5, Probability: p}
	s.metrics.ObservePrediction(pred.Cancel, time.Since(start))
	s.log.Info().Bool("cancel", pred.Cancel).Float64("probability", p).Msg("prediction served")

	c.HTML(http.StatusOK, "index", gin.H{"Prediction": pred, "Form": c.Request.PostForm})
}

func (s *Server) reject(c *gin.Context, err error) {
	s.metrics.FormRejections.Inc()
	s.log.Debug().Err(err).Msg("form rejected")
	c.HTML(http.StatusBadRequest, "index", gin.H{"Error": err.Error(), "Form": c.Request.PostForm})
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("addr", addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info().Msg("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
