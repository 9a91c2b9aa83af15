package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/GoCodeAlone/wfgen/ai"
	"github.com/GoCodeAlone/wfgen/compiler"
	"github.com/GoCodeAlone/wfgen/graph"
	"github.com/GoCodeAlone/wfgen/progress"
	"github.com/gorilla/websocket"
)

// GeneratorFunc returns the generator to serve a request with. The server
// swaps generators when the catalog or rules files are reloaded.
type GeneratorFunc func() *compiler.Generator

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// GenerateRequest is the body of POST /api/workflows/generate and the first
// message of a stream.
type GenerateRequest struct {
	Task string `json:"task"`
}

// GenerateResponse is the result of one generation.
type GenerateResponse struct {
	RequestID   string              `json:"requestId"`
	Steps       []graph.Step        `json:"steps"`
	Workflow    *graph.Workflow     `json:"workflow"`
	Fallbacks   []compiler.Fallback `json:"fallbacks"`
	Diagnostics []graph.Diagnostic  `json:"diagnostics,omitempty"`
}

func newGenerateResponse(res *compiler.Result) GenerateResponse {
	fbs := res.Fallbacks
	if fbs == nil {
		fbs = []compiler.Fallback{}
	}
	return GenerateResponse{
		RequestID:   res.RequestID,
		Steps:       res.Steps,
		Workflow:    res.Workflow,
		Fallbacks:   fbs,
		Diagnostics: res.Diagnostics,
	}
}

// AssembleRequest is the body of POST /api/workflows/assemble.
type AssembleRequest struct {
	Name  string       `json:"name"`
	Steps []graph.Step `json:"steps"`
}

// StreamMessage is one server-to-client WebSocket frame.
type StreamMessage struct {
	Type     string            `json:"type"`
	Progress *progress.Event   `json:"progress,omitempty"`
	Result   *GenerateResponse `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Stream message types.
const (
	MessageProgress = "progress"
	MessageResult   = "result"
	MessageError    = "error"
)

// WorkflowHandler serves the generation endpoints.
type WorkflowHandler struct {
	generator GeneratorFunc
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// NewWorkflowHandler creates a new WorkflowHandler.
func NewWorkflowHandler(generator GeneratorFunc, logger *slog.Logger) *WorkflowHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowHandler{
		generator: generator,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Generate handles POST /api/workflows/generate.
func (h *WorkflowHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.generator().Generate(r.Context(), req.Task)
	if err != nil {
		status, msg := generateErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("generation failed", "error", err)
		}
		WriteError(w, status, msg)
		return
	}
	WriteJSON(w, http.StatusOK, newGenerateResponse(res))
}

// Assemble handles POST /api/workflows/assemble: it lays out and wires a
// caller-supplied step plan without any completion call.
func (h *WorkflowHandler) Assemble(w http.ResponseWriter, r *http.Request) {
	var req AssembleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Steps) == 0 {
		WriteError(w, http.StatusBadRequest, "steps are required")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = graph.DefaultWorkflowName
	}
	WriteJSON(w, http.StatusOK, newGenerateResponse(h.generator().AssembleSteps(name, req.Steps)))
}

// generateErrorStatus maps a generation error to an HTTP status and a message
// safe to return to the client.
func generateErrorStatus(err error) (int, string) {
	var gr *ai.GuardrailError
	switch {
	case errors.Is(err, compiler.ErrEmptyTask):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &gr):
		return http.StatusUnprocessableEntity, "task rejected: " + strings.Join(gr.Reasons, "; ")
	case errors.Is(err, ai.ErrCircuitOpen), errors.Is(err, ai.ErrNoProvider):
		return http.StatusServiceUnavailable, "completion provider unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "generation timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "generation cancelled"
	}
	var se *compiler.StageError
	if errors.As(err, &se) {
		return http.StatusBadGateway, "completion failed at stage " + se.Stage
	}
	return http.StatusInternalServerError, "internal error"
}

// Stream handles GET /api/workflows/stream. After the upgrade the client
// sends one GenerateRequest; the server answers with progress frames and a
// final result or error frame, then closes.
func (h *WorkflowHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	var req GenerateRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(StreamMessage{Type: MessageError, Error: "invalid request"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The peer closing the socket cancels the generation.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	events := make(chan progress.Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range events {
			if err := conn.WriteJSON(StreamMessage{Type: MessageProgress, Progress: &e}); err != nil {
				cancel()
			}
		}
	}()

	res, genErr := h.generator().GenerateWithProgress(ctx, req.Task, progress.Channel(events))
	close(events)
	<-done

	msg := StreamMessage{Type: MessageResult}
	if genErr != nil {
		_, text := generateErrorStatus(genErr)
		msg = StreamMessage{Type: MessageError, Error: text}
	} else {
		resp := newGenerateResponse(res)
		msg.Result = &resp
	}
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("websocket write failed", "error", err)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
