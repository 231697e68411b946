// Package api provides the REST API server for scoregrid
package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/scoregrid/pkg/converter"
	"github.com/james-see/scoregrid/pkg/diag"
)

// @title Scoregrid API
// @version 1.0
// @description API for converting MusicXML and MIDI scores to Humdrum kern and page layout
// @host localhost:8080
// @BasePath /api/v1

// Server serves conversions with a base set of options. Query parameters
// override them per request.
type Server struct {
	opts converter.Options
	log  logrus.FieldLogger
}

// NewServer returns a server converting with opts.
func NewServer(opts converter.Options) *Server {
	return &Server{opts: opts, log: diag.For(opts.Logger, "api")}
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/formats", listFormats)
		v1.POST("/convert/musicxml2kern", s.handleMusicXMLToKern)
		v1.POST("/convert/midi2kern", s.handleMIDIToKern)
		v1.POST("/convert/musicxml2layout", s.handleMusicXMLToLayout)
		v1.POST("/convert/midi2layout", s.handleMIDIToLayout)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return r
}

// Run listens on port until the server fails.
func (s *Server) Run(port int) error {
	s.log.WithField("port", port).Info("starting API server")
	return s.Router().Run(fmt.Sprintf(":%d", port))
}

// StartServer starts the API server on the specified port
func StartServer(port int, opts converter.Options) error {
	return NewServer(opts).Run(port)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "scoregrid",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns the input and output formats and the conversions between them
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"inputs":      []converter.Format{converter.FormatMusicXML, converter.FormatMIDI},
		"outputs":     []converter.Format{converter.FormatKern, converter.FormatLayout},
		"conversions": converter.GetSupportedConversions(),
	})
}

// handleMusicXMLToKern godoc
// @Summary Convert MusicXML to kern
// @Description Upload a MusicXML file and receive a Humdrum kern file
// @Tags convert
// @Accept multipart/form-data
// @Produce text/plain
// @Param file formData file true "MusicXML file to convert"
// @Param recip query bool false "Prepend a **recip spine"
// @Param barnumbers query string false "Set to source to keep source measure numbers"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /convert/musicxml2kern [post]
func (s *Server) handleMusicXMLToKern(c *gin.Context) {
	s.handleConversion(c, converter.FormatMusicXML, converter.FormatKern)
}

// handleMIDIToKern godoc
// @Summary Convert MIDI to kern
// @Description Upload a Standard MIDI File and receive a Humdrum kern file
// @Tags convert
// @Accept multipart/form-data
// @Produce text/plain
// @Param file formData file true "MIDI file to convert"
// @Param recip query bool false "Prepend a **recip spine"
// @Param barnumbers query string false "Set to source to keep source measure numbers"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /convert/midi2kern [post]
func (s *Server) handleMIDIToKern(c *gin.Context) {
	s.handleConversion(c, converter.FormatMIDI, converter.FormatKern)
}

// handleMusicXMLToLayout godoc
// @Summary Lay out a MusicXML score
// @Description Upload a MusicXML file and receive its systems, columns and staff positions
// @Tags convert
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MusicXML file to lay out"
// @Param width query number false "System width"
// @Success 200 {object} layout.Layout
// @Failure 400 {object} map[string]string
// @Router /convert/musicxml2layout [post]
func (s *Server) handleMusicXMLToLayout(c *gin.Context) {
	s.handleConversion(c, converter.FormatMusicXML, converter.FormatLayout)
}

// handleMIDIToLayout godoc
// @Summary Lay out a MIDI file
// @Description Upload a Standard MIDI File and receive its systems, columns and staff positions
// @Tags convert
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI file to lay out"
// @Param width query number false "System width"
// @Success 200 {object} layout.Layout
// @Failure 400 {object} map[string]string
// @Router /convert/midi2layout [post]
func (s *Server) handleMIDIToLayout(c *gin.Context) {
	s.handleConversion(c, converter.FormatMIDI, converter.FormatLayout)
}

// requestOptions applies the query parameters over the server options.
func (s *Server) requestOptions(c *gin.Context) (converter.Options, error) {
	opts := s.opts
	if v := c.Query("recip"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("recip %q: %w", v, diag.ErrInvalidInput)
		}
		opts.Grid.RecipSpine = b
	}
	if c.Query("barnumbers") == "source" {
		opts.Grid.SourceBarNumbers = true
	}
	if v := c.Query("width"); v != "" {
		w, err := strconv.ParseFloat(v, 64)
		if err != nil || w <= 0 {
			return opts, fmt.Errorf("width %q: %w", v, diag.ErrInvalidInput)
		}
		opts.Layout.SystemWidth = w
	}
	return opts, nil
}

func (s *Server) handleConversion(c *gin.Context, from, to converter.Format) {
	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	opts, err := s.requestOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := converter.New(opts).Convert(c.Request.Context(), data, from, to)
	if err != nil {
		code := diag.Classify(err)
		s.log.WithField(diag.FieldCode, code).WithError(err).Warn("conversion failed")
		c.JSON(statusFor(code), gin.H{"error": err.Error(), "code": code})
		return
	}

	outputExt, contentType := ".krn", "text/plain; charset=utf-8"
	if to == converter.FormatLayout {
		outputExt, contentType = ".json", "application/json"
	}
	outputName := strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	if outputName == "" {
		outputName = "converted"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName+outputExt))
	c.Data(http.StatusOK, contentType, result)
}

func statusFor(code diag.Code) int {
	switch code {
	case diag.CodeInput:
		return http.StatusBadRequest
	case diag.CodeUnsupported:
		return http.StatusUnsupportedMediaType
	case diag.CodeConfig:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
