package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/example/leaf-check/internal/auth"
	"github.com/example/leaf-check/internal/container"
	"github.com/example/leaf-check/internal/crop"
	"github.com/example/leaf-check/internal/usecase"
)

const testJWTSecret = "test-secret"

type stubAnalyses struct {
	analyzeErr   error
	analyzeCalls int
	lastCrop     string
	lastUser     string
	getErr       error
	reportErr    error
}

func (s *stubAnalyses) Analyze(_ context.Context, username, cropLabel string, imageBytes []byte) (*usecase.Analysis, error) {
	s.analyzeCalls++
	s.lastCrop, s.lastUser = cropLabel, username
	if s.analyzeErr != nil {
		return nil, s.analyzeErr
	}
	return &usecase.Analysis{
		ID:       "analysis-1",
		Username: username,
		Crop:     cropLabel,
		Result:   crop.PredictionResult{PredictedClass: "Brown spot", ConfidenceScore: 95.5},
	}, nil
}

func (s *stubAnalyses) GetAnalysis(_ context.Context, username, id string) (*usecase.Analysis, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &usecase.Analysis{ID: id, Username: username, Crop: "rice"}, nil
}

func (s *stubAnalyses) Report(_ context.Context, username, id string) ([]byte, error) {
	if s.reportErr != nil {
		return nil, s.reportErr
	}
	return []byte("%PDF-1.3"), nil
}

func (s *stubAnalyses) DiseaseInfo(cropLabel, class string) (crop.DiseaseInfo, error) {
	if cropLabel != "rice" {
		return crop.DiseaseInfo{}, usecase.ErrUnknownCrop
	}
	if class != "_Healthy" {
		return crop.DiseaseInfo{}, usecase.ErrUnknownDisease
	}
	return crop.DiseaseInfo{Description: "healthy", Severity: crop.SeverityNone}, nil
}

func (s *stubAnalyses) Crops() []usecase.CropSummary {
	return []usecase.CropSummary{{Crop: container.Crop{Label: "rice", Name: "Rice", Icon: "🌾"}, Title: "🌾 Rice", Classes: []string{"_Healthy"}}}
}

type stubAccounts struct {
	registerErr error
	authErr     error
}

func (s *stubAccounts) Register(context.Context, string, string) error { return s.registerErr }

func (s *stubAccounts) Authenticate(context.Context, string, string) (string, time.Time, error) {
	if s.authErr != nil {
		return "", time.Time{}, s.authErr
	}
	return "signed-token", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func newTestRouter(t *testing.T, analyses *stubAnalyses, accounts *stubAccounts) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtSvc, err := auth.NewJWTService(testJWTSecret, "", "", time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build jwt service: %v", err)
	}

	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize
	router.Use(RequestLogger(zap.NewNop()))
	RegisterRoutes(router, Dependencies{
		Analyses: analyses,
		Accounts: accounts,
		Auth:     jwtSvc,
		Metrics:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		Logger:   zap.NewNop(),
	})
	return router
}

func TestAnalyzeRejectsLargeUpload(t *testing.T) {
	analyses := &stubAnalyses{}
	router := newTestRouter(t, analyses, &stubAccounts{})

	token := buildTestToken(t, "user-123")
	body, contentType := buildMultipartBody(t, "image/png", bytes.Repeat([]byte("a"), MaxUploadSize+1), "rice")

	req := httptest.NewRequest(http.MethodPost, "/api/analyses", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
	if analyses.analyzeCalls != 0 {
		t.Fatalf("expected no analysis, got %d", analyses.analyzeCalls)
	}
}

func TestAnalyzeRejectsUnsupportedContentType(t *testing.T) {
	for name, tc := range map[string]struct {
		contentType string
		payload     []byte
	}{
		"declared text":   {contentType: "text/plain", payload: []byte("hello")},
		"sniffed as text": {contentType: "image/png", payload: []byte("hello, not a png")},
	} {
		t.Run(name, func(t *testing.T) {
			router := newTestRouter(t, &stubAnalyses{}, &stubAccounts{})

			token := buildTestToken(t, "user-123")
			body, contentType := buildMultipartBody(t, tc.contentType, tc.payload, "rice")

			req := httptest.NewRequest(http.MethodPost, "/api/analyses", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", "Bearer "+token)

			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusUnsupportedMediaType {
				t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
			}
		})
	}
}

func TestAnalyzeCreatesAnalysis(t *testing.T) {
	analyses := &stubAnalyses{}
	router := newTestRouter(t, analyses, &stubAccounts{})

	body, contentType := buildMultipartBody(t, "image/png", pngPayload(t), "rice")
	req := httptest.NewRequest(http.MethodPost, "/api/analyses", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "alice"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, resp.Code, resp.Body.String())
	}
	if analyses.lastUser != "alice" || analyses.lastCrop != "rice" {
		t.Fatalf("unexpected call: user=%q crop=%q", analyses.lastUser, analyses.lastCrop)
	}

	var payload usecase.Analysis
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.ID != "analysis-1" || payload.Result.PredictedClass != "Brown spot" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestAnalyzeRequiresCrop(t *testing.T) {
	router := newTestRouter(t, &stubAnalyses{}, &stubAccounts{})

	body, contentType := buildMultipartBody(t, "image/png", pngPayload(t), "")
	req := httptest.NewRequest(http.MethodPost, "/api/analyses", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "alice"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestAnalyzeErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: usecase.ErrUnknownCrop, want: http.StatusNotFound},
		{err: usecase.ErrModelUnavailable, want: http.StatusServiceUnavailable},
		{err: usecase.ErrInvalidImage, want: http.StatusUnprocessableEntity},
		{err: usecase.ErrPredictionFailed, want: http.StatusInternalServerError},
		{err: errors.New("redis down"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			router := newTestRouter(t, &stubAnalyses{analyzeErr: tt.err}, &stubAccounts{})

			body, contentType := buildMultipartBody(t, "image/png", pngPayload(t), "rice")
			req := httptest.NewRequest(http.MethodPost, "/api/analyses", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "alice"))

			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, resp.Code)
			}
		})
	}
}

func TestAPIRequiresLogin(t *testing.T) {
	router := newTestRouter(t, &stubAnalyses{}, &stubAccounts{})

	for _, path := range []string{"/api/me", "/api/crops", "/api/analyses/abc", "/api/analyses/abc/report"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected status %d, got %d", path, http.StatusUnauthorized, resp.Code)
		}
	}
}

func TestReadEndpoints(t *testing.T) {
	analyses := &stubAnalyses{}
	router := newTestRouter(t, analyses, &stubAccounts{})
	token := buildTestToken(t, "alice")

	tests := []struct {
		path     string
		want     int
		contains string
	}{
		{path: "/api/me", want: http.StatusOK, contains: `"username":"alice"`},
		{path: "/api/crops", want: http.StatusOK, contains: `"label":"rice"`},
		{path: "/api/crops/rice/diseases/_Healthy", want: http.StatusOK, contains: `"display_name":"Healthy"`},
		{path: "/api/crops/rice/diseases/Rust", want: http.StatusNotFound},
		{path: "/api/crops/wheat/diseases/Rust", want: http.StatusNotFound},
		{path: "/api/analyses/abc", want: http.StatusOK, contains: `"id":"abc"`},
		{path: "/health", want: http.StatusOK, contains: "ok"},
		{path: "/metrics", want: http.StatusOK, contains: "# metrics"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != tt.want {
			t.Fatalf("%s: expected status %d, got %d", tt.path, tt.want, resp.Code)
		}
		if tt.contains != "" && !strings.Contains(resp.Body.String(), tt.contains) {
			t.Fatalf("%s: expected body to contain %s, got %s", tt.path, tt.contains, resp.Body.String())
		}
	}
}

func TestReportEndpoint(t *testing.T) {
	analyses := &stubAnalyses{}
	router := newTestRouter(t, analyses, &stubAccounts{})

	req := httptest.NewRequest(http.MethodGet, "/api/analyses/abc/report", nil)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "alice"))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := resp.Header().Get("Content-Disposition"); !strings.Contains(got, "leaf-report-abc.pdf") {
		t.Fatalf("unexpected disposition %q", got)
	}

	analyses.reportErr = usecase.ErrAnalysisNotFound
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.Code)
	}
}

func TestAuthEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		accounts *stubAccounts
		want     int
	}{
		{name: "register", path: "/auth/register", body: `{"username":"Alice","password":"long enough"}`, accounts: &stubAccounts{}, want: http.StatusCreated},
		{name: "register taken", path: "/auth/register", body: `{"username":"alice","password":"long enough"}`, accounts: &stubAccounts{registerErr: auth.ErrUsernameTaken}, want: http.StatusConflict},
		{name: "register weak", path: "/auth/register", body: `{"username":"alice","password":"x"}`, accounts: &stubAccounts{registerErr: auth.ErrWeakPassword}, want: http.StatusBadRequest},
		{name: "register malformed", path: "/auth/register", body: `{`, accounts: &stubAccounts{}, want: http.StatusBadRequest},
		{name: "login", path: "/auth/login", body: `{"username":"alice","password":"long enough"}`, accounts: &stubAccounts{}, want: http.StatusOK},
		{name: "login rejected", path: "/auth/login", body: `{"username":"alice","password":"nope"}`, accounts: &stubAccounts{authErr: auth.ErrInvalidCredentials}, want: http.StatusUnauthorized},
		{name: "login store failure", path: "/auth/login", body: `{"username":"alice","password":"nope"}`, accounts: &stubAccounts{authErr: errors.New("db")}, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &stubAnalyses{}, tt.accounts)

			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != tt.want {
				t.Fatalf("expected status %d, got %d: %s", tt.want, resp.Code, resp.Body.String())
			}
		})
	}
}

func pngPayload(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func buildMultipartBody(t *testing.T, contentType string, payload []byte, cropLabel string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if cropLabel != "" {
		if err := writer.WriteField("crop", cropLabel); err != nil {
			t.Fatalf("failed to write crop field: %v", err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="upload"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func buildTestToken(t *testing.T, subject string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
