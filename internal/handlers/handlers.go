package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/leaf-check/internal/auth"
	"github.com/example/leaf-check/internal/crop"
	"github.com/example/leaf-check/internal/usecase"
)

// MaxUploadSize caps the size of an uploaded leaf image.
const MaxUploadSize = 10 << 20

// multipartOverhead leaves room for form boundaries and the crop field.
const multipartOverhead = 1 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// AnalysisService is the use case surface the API needs.
type AnalysisService interface {
	Analyze(ctx context.Context, username, cropLabel string, imageBytes []byte) (*usecase.Analysis, error)
	GetAnalysis(ctx context.Context, username, id string) (*usecase.Analysis, error)
	Report(ctx context.Context, username, id string) ([]byte, error)
	DiseaseInfo(cropLabel, class string) (crop.DiseaseInfo, error)
	Crops() []usecase.CropSummary
}

// AccountService registers users and issues tokens.
type AccountService interface {
	Register(ctx context.Context, username, password string) error
	Authenticate(ctx context.Context, username, password string) (string, time.Time, error)
}

// Dependencies groups what RegisterRoutes wires. Metrics is optional.
type Dependencies struct {
	Analyses AnalysisService
	Accounts AccountService
	Auth     auth.Service
	Metrics  http.Handler
	Logger   *zap.Logger
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	router.POST("/auth/register", func(c *gin.Context) {
		var req credentials
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		err := deps.Accounts.Register(c.Request.Context(), req.Username, req.Password)
		switch {
		case err == nil:
			c.JSON(http.StatusCreated, gin.H{"username": strings.ToLower(strings.TrimSpace(req.Username))})
		case errors.Is(err, auth.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			logger.Error("registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
	})

	router.POST("/auth/login", func(c *gin.Context) {
		var req credentials
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		token, expires, err := deps.Accounts.Authenticate(c.Request.Context(), req.Username, req.Password)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expires})
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		default:
			logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
	})

	api := router.Group("/api", auth.RequireLogin(deps.Auth))

	api.GET("/me", func(c *gin.Context) {
		username, ok := currentUser(c, deps.Auth)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": username})
	})

	api.GET("/crops", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"crops": deps.Analyses.Crops()})
	})

	api.GET("/crops/:crop/diseases/:class", func(c *gin.Context) {
		info, err := deps.Analyses.DiseaseInfo(c.Param("crop"), c.Param("class"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"class":        c.Param("class"),
			"display_name": crop.DisplayName(c.Param("class")),
			"info":         info,
		})
	})

	api.POST("/analyses", func(c *gin.Context) {
		username, ok := currentUser(c, deps.Auth)
		if !ok {
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+multipartOverhead)

		data, status, err := readUpload(c)
		if err != nil {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		cropLabel := strings.TrimSpace(c.PostForm("crop"))
		if cropLabel == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "crop is required"})
			return
		}

		analysis, err := deps.Analyses.Analyze(c.Request.Context(), username, cropLabel, data)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, analysis)
	})

	api.GET("/analyses/:id", func(c *gin.Context) {
		username, ok := currentUser(c, deps.Auth)
		if !ok {
			return
		}
		analysis, err := deps.Analyses.GetAnalysis(c.Request.Context(), username, c.Param("id"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, analysis)
	})

	api.GET("/analyses/:id/report", func(c *gin.Context) {
		username, ok := currentUser(c, deps.Auth)
		if !ok {
			return
		}
		id := c.Param("id")
		pdf, err := deps.Analyses.Report(c.Request.Context(), username, id)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="leaf-report-%s.pdf"`, id))
		c.Data(http.StatusOK, "application/pdf", pdf)
	})
}

func currentUser(c *gin.Context, svc auth.Service) (string, bool) {
	username, ok := svc.Username(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	return username, true
}

// readUpload returns the bytes of the "image" form file, or the status to reply with.
func readUpload(c *gin.Context) ([]byte, int, error) {
	file, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusRequestEntityTooLarge, errors.New("image exceeds the upload limit")
		}
		return nil, http.StatusBadRequest, errors.New("image file is required")
	}
	if file.Size > MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, errors.New("image exceeds the upload limit")
	}

	declared := strings.ToLower(strings.TrimSpace(strings.Split(file.Header.Get("Content-Type"), ";")[0]))
	if declared != "" && declared != "application/octet-stream" && !allowedImageTypes[declared] {
		return nil, http.StatusUnsupportedMediaType, fmt.Errorf("unsupported content type %q", declared)
	}

	src, err := file.Open()
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("unable to open image")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("failed to read image")
	}
	if len(data) > MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, errors.New("image exceeds the upload limit")
	}
	if sniffed := http.DetectContentType(data); !allowedImageTypes[sniffed] {
		return nil, http.StatusUnsupportedMediaType, fmt.Errorf("unsupported content type %q", sniffed)
	}
	return data, http.StatusOK, nil
}

func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case errors.Is(err, usecase.ErrUnknownCrop), errors.Is(err, usecase.ErrUnknownDisease):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, usecase.ErrAnalysisNotFound):
		status, message = http.StatusNotFound, "analysis not found"
	case errors.Is(err, usecase.ErrModelUnavailable):
		status, message = http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, usecase.ErrInvalidImage):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, usecase.ErrPredictionFailed):
		message = "prediction failed"
	}
	// prediction failures are logged where they happen
	if status >= http.StatusInternalServerError && !errors.Is(err, usecase.ErrPredictionFailed) {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": message})
}

// RequestLogger logs one structured line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("access")
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
			zap.String("client_ip", c.ClientIP()),
		}
		if username, ok := auth.GetUsername(c.Request.Context()); ok {
			fields = append(fields, zap.String("username", username))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("request", fields...)
	}
}
