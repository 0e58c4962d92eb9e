package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"voiceagent/audiostore"
	"voiceagent/core"
	"voiceagent/fallback"
	"voiceagent/handlers/tts"
	"voiceagent/metrics"
	"voiceagent/orchestrator"
	"voiceagent/protocol"
	"voiceagent/session"
	"voiceagent/transports/websocket"
)

const (
	DefaultMaxUploadBytes = 25 << 20
	maxJSONBodyBytes      = 64 << 10
	multipartMemory       = 8 << 20
)

// uploadFields are the multipart field names accepted for the recording.
var uploadFields = []string{"audio_file", "audio"}

// VoiceSynthesizer renders arbitrary text, used by /generate-audio.
type VoiceSynthesizer interface {
	SynthesizeVoice(ctx context.Context, text, voice string) (*tts.Speech, error)
}

type Handler struct {
	Orchestrator *orchestrator.Orchestrator
	Audio        audiostore.Store
	Speech       VoiceSynthesizer
	Fallback     *fallback.Fallback
	Hub          *websocket.Hub
	Metrics      *metrics.Metrics
	HealthChecks []HealthCheck

	MaxUploadBytes int64
	Logger         *core.Logger
}

func (h *Handler) logger() *core.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return core.GetLogger()
}

func (h *Handler) sessions() session.Store {
	return h.Orchestrator.Store()
}

type chatResponse struct {
	UserMessage     string `json:"user_message,omitempty"`
	AIResponse      string `json:"ai_response,omitempty"`
	AudioURL        string `json:"audio_url,omitempty"`
	Truncated       bool   `json:"truncated,omitempty"`
	Error           string `json:"error,omitempty"`
	Kind            string `json:"kind,omitempty"`
	FallbackMessage string `json:"fallback_message,omitempty"`
	TurnID          string `json:"turn_id"`
}

// Chat runs one turn for the recording uploaded under audio_file.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("session_key")
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	tooLarge := func() {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": fmt.Sprintf("recording exceeds %d bytes", limit),
		})
	}
	if r.ContentLength > limit {
		tooLarge()
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	payload, err := readUpload(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			tooLarge()
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx := r.Context()
	if id := r.Header.Get(protocol.TurnIDHeader); id != "" {
		ctx = core.ContextWithTurnID(ctx, id)
	}
	res := h.Orchestrator.Run(ctx, key, payload)
	resp := chatResponse{
		UserMessage: res.UserText,
		AIResponse:  res.AssistantText,
		Truncated:   res.Truncated,
		TurnID:      res.TurnID,
	}
	switch res.Status {
	case orchestrator.StatusSuccess:
		if res.Audio != nil {
			resp.AudioURL = res.Audio.URL
		}
	case orchestrator.StatusPartial:
		if res.Audio != nil && res.Audio.Fallback {
			resp.AudioURL = res.Audio.URL
		}
	default:
		resp.Error = res.Err.Error()
		resp.Kind = string(res.Kind())
		resp.FallbackMessage = res.FallbackMessage
		if res.Audio != nil {
			resp.AudioURL = res.Audio.URL
		}
	}
	writeJSON(w, StatusForResult(res), resp)
}

// readUpload pulls the first recording field out of a multipart body. A
// request with no recording yields an empty payload, which the orchestrator
// rejects as too short.
func readUpload(r *http.Request) (core.AudioPayload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return core.AudioPayload{}, fmt.Errorf("expected multipart/form-data with an %q field", uploadFields[0])
		}
		return core.AudioPayload{}, err
	}
	for _, field := range uploadFields {
		file, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return core.AudioPayload{}, err
		}
		defer file.Close()
		return payloadFrom(file, header)
	}
	return core.AudioPayload{}, nil
}

func payloadFrom(file multipart.File, header *multipart.FileHeader) (core.AudioPayload, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return core.AudioPayload{}, fmt.Errorf("read upload: %w", err)
	}
	return core.AudioPayload{
		Data:     data,
		MimeType: header.Header.Get("Content-Type"),
		Filename: header.Filename,
	}, nil
}

type historyMessage struct {
	Role      core.MessageRole `json:"role"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
}

type historyResponse struct {
	Status    string           `json:"status"`
	SessionID string           `json:"session_id"`
	Messages  []historyMessage `json:"messages"`
}

// History lists a session's turns as alternating user/assistant messages.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("session_key")
	sess, err := h.sessions().Get(r.Context(), key)
	if err != nil {
		h.logger().Error("history lookup failed", "session_key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session store unavailable"})
		return
	}
	resp := historyResponse{Status: "new_session", SessionID: key, Messages: []historyMessage{}}
	if sess != nil && len(sess.Turns) > 0 {
		resp.Status = "success"
		for _, t := range sess.Turns {
			resp.Messages = append(resp.Messages,
				historyMessage{Role: core.MessageRoleUser, Content: t.UserText, CreatedAt: t.CreatedAt},
				historyMessage{Role: core.MessageRoleAssistant, Content: t.AssistantText, CreatedAt: t.CreatedAt},
			)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) NewSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": session.NewKey()})
}

// ResetSession abandons the given key and hands out a fresh one.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("session_key")
	next, err := h.sessions().Reset(r.Context(), key)
	if err != nil {
		h.logger().Error("session reset failed", "session_key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": next, "previous_session_id": key})
}

func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event stream disabled"})
		return
	}
	h.Hub.ServeSession(w, r, r.PathValue("session_key"))
}

type generateAudioRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// GenerateAudio synthesizes text outside of a turn.
func (h *Handler) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return
	}
	var req generateAudioRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	var speech *tts.Speech
	if h.Speech == nil {
		err = core.NewStageError(core.StageSynthesize, core.KindUpstreamUnavailable, core.ErrNotConfigured)
	} else {
		speech, err = h.Speech.SynthesizeVoice(r.Context(), req.Text, req.VoiceID)
	}
	if err != nil {
		h.logger().Warn("audio generation failed", "error", err)
		msg := fallback.DefaultMessages().TTSError
		if h.Fallback != nil {
			msg = h.Fallback.Message(err)
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":            err.Error(),
			"fallback_message": msg,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"audio_url": speech.Audio.URL,
		"truncated": speech.Truncated,
	})
}

// ServeAudio serves a clip from the audio store.
func (h *Handler) ServeAudio(w http.ResponseWriter, r *http.Request) {
	if h.Audio == nil {
		http.NotFound(w, r)
		return
	}
	clip, err := h.Audio.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, audiostore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger().Error("audio lookup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "audio store unavailable"})
		return
	}
	w.Header().Set("Content-Type", clip.MimeType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, "", clip.CreatedAt, bytes.NewReader(clip.Data))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
