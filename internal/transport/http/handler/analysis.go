package handler

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rice-quality-analyzer/internal/app"
	"rice-quality-analyzer/internal/imagecodec"
	"rice-quality-analyzer/internal/report"
	"rice-quality-analyzer/internal/session"
	"rice-quality-analyzer/internal/transport/http/middleware"
	"rice-quality-analyzer/internal/transport/http/response"
)

// Analyzer is the report pipeline as seen by the handlers.
type Analyzer interface {
	Analyze(ctx context.Context, input app.AnalyzeInput) (*app.AnalysisResult, error)
}

// DocumentGenerator renders a report as a downloadable document.
type DocumentGenerator interface {
	Generate(text string) ([]byte, error)
}

type feature struct {
	Name   string
	Detail string
}

var features = []feature{
	{Name: "Rice Type Classification", Detail: "e.g., Basmati, Jasmine, Indica"},
	{Name: "Quality Check", Detail: "Broken grains %, impurities %, discoloration %"},
	{Name: "Foreign Object Detection", Detail: "Husks, stones, debris"},
	{Name: "Grain Size & Shape Analysis", Detail: "length, width, uniformity"},
	{Name: "Processing Recommendations", Detail: "milling, sorting, storage"},
}

type imageView struct {
	Filename string
	DataURL  template.URL
	Width    int
	Height   int
}

type pageView struct {
	Title      string
	Features   []feature
	Accept     string
	Image      *imageView
	HasResult  bool
	Result     string
	ResultHTML template.HTML
	PDFName    string
	Error      string
}

type AnalysisHandler struct {
	analyzer       Analyzer
	documents      DocumentGenerator
	sessions       *session.Manager
	title          string
	maxUploadBytes int64
}

func NewAnalysisHandler(analyzer Analyzer, documents DocumentGenerator, sessions *session.Manager, title string, maxUploadBytes int64) *AnalysisHandler {
	if title == "" {
		title = "Rice Quality Analyzer"
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 5 << 20
	}
	return &AnalysisHandler{
		analyzer:       analyzer,
		documents:      documents,
		sessions:       sessions,
		title:          title,
		maxUploadBytes: maxUploadBytes,
	}
}

// Index renders the single page for the caller's session.
func (h *AnalysisHandler) Index(c *gin.Context) {
	state, ok := middleware.State(c)
	if !ok {
		c.String(http.StatusInternalServerError, "session unavailable")
		return
	}
	h.render(c, http.StatusOK, state, "")
}

// Analyze runs the pipeline on the uploaded form field "image". Success stores the
// image and report and redirects to the page; failure re-renders the page with the
// error and leaves the session untouched.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	state, ok := middleware.State(c)
	if !ok {
		c.String(http.StatusInternalServerError, "session unavailable")
		return
	}

	result, err := h.runAnalysis(c, state)
	if err != nil {
		status, _, msg := classifyError(err)
		h.render(c, status, state, msg)
		return
	}

	state.SetAnalysis(result.Image, result.Report)
	if err := h.sessions.Save(c.Request.Context(), state); err != nil {
		log.Printf("save session %s failed: %v", state.ID, err)
		h.render(c, http.StatusInternalServerError, state, "Could not store the analysis result. Please try again.")
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Clear drops the analysis result and returns to the page.
func (h *AnalysisHandler) Clear(c *gin.Context) {
	state, ok := middleware.State(c)
	if !ok {
		c.String(http.StatusInternalServerError, "session unavailable")
		return
	}
	if err := h.clear(c.Request.Context(), state); err != nil {
		h.render(c, http.StatusInternalServerError, state, "Could not clear the analysis. Please try again.")
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// DownloadPDF streams the current report as rice_quality_report.pdf.
func (h *AnalysisHandler) DownloadPDF(c *gin.Context) {
	state, ok := middleware.State(c)
	if !ok || !state.HasResult() {
		response.Error(c, http.StatusNotFound, response.CodeReportNotFound, "no analysis report available")
		return
	}

	data, err := h.documents.Generate(state.Result)
	if err != nil {
		log.Printf("generate pdf for session %s failed: %v", state.ID, err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "generate pdf failed")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	c.Data(http.StatusOK, report.MimeType, data)
}

// CreateAnalysis is the JSON variant of Analyze.
func (h *AnalysisHandler) CreateAnalysis(c *gin.Context) {
	state, ok := middleware.State(c)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "session unavailable")
		return
	}

	result, err := h.runAnalysis(c, state)
	if err != nil {
		status, code, msg := classifyError(err)
		response.Error(c, status, code, msg)
		return
	}

	state.SetAnalysis(result.Image, result.Report)
	if err := h.sessions.Save(c.Request.Context(), state); err != nil {
		log.Printf("save session %s failed: %v", state.ID, err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "store analysis failed")
		return
	}
	response.OK(c, stateData(state))
}

// GetAnalysis returns the current session state.
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	state, ok := middleware.State(c)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "session unavailable")
		return
	}
	response.OK(c, stateData(state))
}

// DeleteAnalysis is the JSON variant of Clear.
func (h *AnalysisHandler) DeleteAnalysis(c *gin.Context) {
	state, ok := middleware.State(c)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "session unavailable")
		return
	}
	if err := h.clear(c.Request.Context(), state); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "clear analysis failed")
		return
	}
	response.OK(c, stateData(state))
}

// multipartOverhead is the room left above the upload cap for boundaries and other fields.
const multipartOverhead = 1 << 20

// limitedBody caps the request body and remembers whether the cap was hit.
type limitedBody struct {
	io.ReadCloser
	exceeded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		b.exceeded = true
	}
	return n, err
}

func (h *AnalysisHandler) runAnalysis(c *gin.Context, state *session.State) (*app.AnalysisResult, error) {
	tooLarge := fmt.Errorf("%w (max %d bytes)", app.ErrImageTooLarge, h.maxUploadBytes)
	bodyLimit := h.maxUploadBytes + multipartOverhead
	if c.Request.ContentLength > bodyLimit {
		return nil, tooLarge
	}
	body := &limitedBody{ReadCloser: http.MaxBytesReader(c.Writer, c.Request.Body, bodyLimit)}
	c.Request.Body = body

	file, err := c.FormFile("image")
	if err != nil {
		if body.exceeded {
			return nil, tooLarge
		}
		return nil, app.ErrImageMissing
	}
	if file.Size > h.maxUploadBytes {
		return nil, tooLarge
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open upload: %w", app.ErrImageDecode, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %w", app.ErrImageDecode, err)
	}

	return h.analyzer.Analyze(c.Request.Context(), app.AnalyzeInput{
		SessionID: state.ID,
		Filename:  file.Filename,
		Data:      data,
	})
}

func (h *AnalysisHandler) clear(ctx context.Context, state *session.State) error {
	state.ClearResult()
	if err := h.sessions.Save(ctx, state); err != nil {
		log.Printf("save session %s failed: %v", state.ID, err)
		return err
	}
	return nil
}

func (h *AnalysisHandler) render(c *gin.Context, status int, state *session.State, errMsg string) {
	view := pageView{
		Title:    h.title,
		Features: features,
		Accept:   acceptList(),
		PDFName:  report.Filename,
		Error:    errMsg,
	}
	if state.Image != nil {
		view.Image = &imageView{
			Filename: state.Image.Filename,
			DataURL:  template.URL(state.Image.DataURL()),
			Width:    state.Image.Width,
			Height:   state.Image.Height,
		}
	}
	if state.HasResult() {
		view.HasResult = true
		view.Result = state.Result
		rendered, err := report.RenderHTML(state.Result)
		if err != nil {
			log.Printf("render report html failed: %v", err)
			rendered = template.HTML(template.HTMLEscapeString(state.Result))
		}
		view.ResultHTML = rendered
	}
	c.HTML(status, "index.html", view)
}

// classifyError maps pipeline errors to HTTP status, response code and the message
// shown to the user.
func classifyError(err error) (int, int, string) {
	switch {
	case errors.Is(err, app.ErrImageMissing):
		return http.StatusBadRequest, response.CodeBadRequest, "Please select an image of rice grains (form field 'image')."
	case errors.Is(err, app.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, response.CodeImageTooLarge, "Image processing error: " + err.Error()
	case errors.Is(err, app.ErrImageDecode):
		return http.StatusBadRequest, response.CodeImageInvalid, "Image processing error: " + detail(err, app.ErrImageDecode)
	case errors.Is(err, app.ErrVisionAPI):
		return http.StatusBadGateway, response.CodeVisionUnavailable, "API communication error: " + detail(err, app.ErrVisionAPI)
	default:
		log.Printf("unexpected analysis error: %v", err)
		return http.StatusInternalServerError, response.CodeInternalServer, "analysis failed"
	}
}

func detail(err, kind error) string {
	msg := strings.TrimPrefix(err.Error(), kind.Error())
	msg = strings.TrimPrefix(msg, ": ")
	if msg == "" {
		return kind.Error()
	}
	return msg
}

func acceptList() string {
	parts := make([]string, 0, len(imagecodec.AllowedExtensions)*2)
	for _, ext := range imagecodec.AllowedExtensions {
		parts = append(parts, "."+ext)
	}
	parts = append(parts, "image/png", "image/jpeg")
	return strings.Join(parts, ",")
}

type analysisData struct {
	SessionID string     `json:"session_id"`
	HasResult bool       `json:"has_result"`
	Result    string     `json:"result,omitempty"`
	Image     *imageMeta `json:"image,omitempty"`
	UpdatedAt string     `json:"updated_at"`
}

type imageMeta struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Bytes    int    `json:"bytes"`
}

func stateData(state *session.State) analysisData {
	data := analysisData{
		SessionID: state.ID,
		HasResult: state.HasResult(),
		Result:    state.Result,
		UpdatedAt: state.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if state.Image != nil {
		data.Image = &imageMeta{
			Filename: state.Image.Filename,
			Format:   state.Image.Format,
			Width:    state.Image.Width,
			Height:   state.Image.Height,
			Bytes:    len(state.Image.Data),
		}
	}
	return data
}
