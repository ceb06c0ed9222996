package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"orgmaturity/internal/assessment"
	"orgmaturity/internal/framework"
	"orgmaturity/internal/report"
	"orgmaturity/internal/scoring"
)

// Options configures the HTTP surface.
type Options struct {
	// AllowOrigins lists browser origins allowed by CORS. Empty allows all.
	AllowOrigins []string
	// Now stamps generated reports; nil uses time.Now.
	Now          func() time.Time
}

// Server exposes a Session as a JSON API.
type Server struct {
	session *Session
	logger  *zap.Logger
	now     func() time.Time
	router  *gin.Engine
}

type levelRequest struct {
	Level *int `json:"level"`
}

type levelView struct {
	Level framework.Level `json:"level"`
	Name  string          `json:"name"`
}

type elementView struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	DomainID     string             `json:"domain_id,omitempty"`
	ComponentID  string             `json:"component_id,omitempty"`
	Descriptions map[string]string  `json:"descriptions,omitempty"`
	Weights      map[string]float64 `json:"weights,omitempty"`
}

type componentView struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Elements []elementView `json:"elements"`
}

type domainView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Components []componentView `json:"components"`
}

// New builds the router.
func New(session *Session, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{session: session, logger: logger, now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	corsCfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(opts.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.AllowOrigins
	}
	r.Use(cors.New(corsCfg))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	r.GET("/health", s.handleHealth)
	api := r.Group("/api")
	api.GET("/framework", s.handleFramework)
	api.GET("/elements/:id", s.handleElement)
	api.GET("/scores", s.handleScores)
	api.PUT("/scores/:id", s.handleSetScore)
	api.PUT("/target", s.handleSetTarget)
	api.GET("/report", s.handleReport)
	api.POST("/reset", s.handleReset)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleFramework(c *gin.Context) {
	fw := s.session.Framework()
	levels := make([]levelView, 0, len(fw.Levels()))
	for _, l := range fw.Levels() {
		levels = append(levels, levelView{Level: l.Level, Name: l.Name})
	}
	domains := make([]domainView, 0)
	for _, d := range fw.Registry.Domains() {
		dv := domainView{ID: d.ID, Name: d.Name, Components: make([]componentView, 0, len(d.Components))}
		for _, comp := range d.Components {
			cv := componentView{ID: comp.ID, Name: comp.Name, Elements: make([]elementView, 0, len(comp.Elements))}
			for _, el := range comp.Elements {
				cv.Elements = append(cv.Elements, elementView{ID: el.ID, Name: el.Name})
			}
			dv.Components = append(dv.Components, cv)
		}
		domains = append(domains, dv)
	}
	c.JSON(http.StatusOK, gin.H{
		"source":  fw.Source,
		"levels":  levels,
		"domains": domains,
	})
}

func (s *Server) handleElement(c *gin.Context) {
	fw := s.session.Framework()
	rec, ok := fw.Registry.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown element " + strconv.Quote(c.Param("id"))})
		return
	}
	view := elementView{
		ID:           rec.Element.ID,
		Name:         rec.Element.Name,
		DomainID:     rec.DomainID,
		ComponentID:  rec.ComponentID,
		Descriptions: map[string]string{},
		Weights:      map[string]float64{},
	}
	for _, level := range framework.AllLevels() {
		key := strconv.Itoa(int(level))
		if text, ok := fw.Registry.Description(rec.Element.ID, level); ok {
			view.Descriptions[key] = text
		}
		w, err := fw.Weights.WeightOf(level, rec.Element.ID)
		if err != nil {
			s.fail(c, err)
			return
		}
		view.Weights[key] = w
	}
	steps, err := fw.Recommendations.Lookup(rec.Element.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"element": view, "steps": steps})
}

func (s *Server) handleScores(c *gin.Context) {
	target, scores := s.session.Snapshot()
	c.JSON(http.StatusOK, gin.H{"target_level": target, "scores": scores})
}

func (s *Server) handleSetScore(c *gin.Context) {
	level, ok := s.bindLevel(c)
	if !ok {
		return
	}
	if err := s.session.SetScore(c.Param("id"), level); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"element_id": c.Param("id"), "level": level})
}

func (s *Server) handleSetTarget(c *gin.Context) {
	level, ok := s.bindLevel(c)
	if !ok {
		return
	}
	if err := s.session.SetTarget(level); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"target_level": level})
}

func (s *Server) handleReport(c *gin.Context) {
	topN := scoring.DefaultTopN
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "top must be a non-negative integer"})
			return
		}
		topN = n
	}

	var rep *report.Report
	err := s.session.analyzeLocked(topN, func(state *assessment.State, analysis *scoring.Analysis) error {
		var err error
		rep, err = report.Build(s.session.Framework(), state, analysis, topN, s.now())
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) handleReset(c *gin.Context) {
	s.session.Reset()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (s *Server) bindLevel(c *gin.Context) (framework.Level, bool) {
	var req levelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return 0, false
	}
	if req.Level == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "level is required"})
		return 0, false
	}
	return framework.Level(*req.Level), true
}

func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case assessment.IsInputError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, framework.ErrUnknownElement):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
