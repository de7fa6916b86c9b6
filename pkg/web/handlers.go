package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/germanamz/contentcrew/pkg/content"
	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
)

type pageData struct {
	PageTitle       string
	Title           string
	Welcome         string
	Warnings        []string
	Defaults        content.Params
	TopicHint       string
	MinTemperature  float64
	MaxTemperature  float64
	TemperatureStep float64
	MinNumResults   int
	MaxNumResults   int
	GenerateLabel   string
	ProgressText    string
	ResultHeader    string
	DownloadLabel   string
	FooterText      string
	FooterLinkText  string
	FooterLinkURL   string
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	data := pageData{
		PageTitle:       content.PageTitle,
		Title:           content.Title,
		Welcome:         content.Welcome,
		Defaults:        content.DefaultParams(),
		TopicHint:       content.TopicHint,
		MinTemperature:  content.MinTemperature,
		MaxTemperature:  content.MaxTemperature,
		TemperatureStep: content.TemperatureStep,
		MinNumResults:   content.MinNumResults,
		MaxNumResults:   content.MaxNumResults,
		GenerateLabel:   content.GenerateLabel,
		ProgressText:    content.ProgressText,
		ResultHeader:    content.ResultHeader,
		DownloadLabel:   content.DownloadLabel,
		FooterText:      content.FooterText,
		FooterLinkText:  content.FooterLinkText,
		FooterLinkURL:   content.FooterLinkURL,
	}
	for _, name := range s.opts.MissingSecrets {
		data.Warnings = append(data.Warnings, content.MissingKeyWarning(name))
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.log.Error("render page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

type createRunResponse struct {
	ID string `json:"id"`
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	params, err := decodeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	params = params.Normalize()
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rn := s.start(params)
	writeJSON(w, http.StatusAccepted, createRunResponse{ID: rn.id})
}

// decodeParams reads a JSON body or form values. Missing fields keep their
// DefaultParams values.
func decodeParams(r *http.Request) (content.Params, error) {
	params := content.DefaultParams()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			return params, fmt.Errorf("invalid request body: %w", err)
		}
		return params, nil
	}

	if err := r.ParseForm(); err != nil {
		return params, fmt.Errorf("invalid form: %w", err)
	}
	if v, ok := r.Form["topic"]; ok && len(v) > 0 {
		params.Topic = v[0]
	}
	if v := r.FormValue("temperature"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, fmt.Errorf("invalid temperature %q", v)
		}
		params.Temperature = t
	}
	if v := r.FormValue("num_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("invalid num_results %q", v)
		}
		params.NumResults = n
	}
	return params, nil
}

type taskView struct {
	Name       string `json:"name"`
	Agent      string `json:"agent"`
	Output     string `json:"output"`
	DurationMS int64  `json:"duration_ms"`
}

type runView struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Params       content.Params `json:"params"`
	FileName     string         `json:"file_name"`
	Content      string         `json:"content,omitempty"`
	HTML         string         `json:"html,omitempty"`
	Error        string         `json:"error,omitempty"`
	Message      string         `json:"message,omitempty"`
	Tasks        []taskView     `json:"tasks,omitempty"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	Started      time.Time      `json:"started"`
	DurationMS   int64          `json:"duration_ms"`
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	rn, ok := s.runs.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("run not found"))
		return
	}

	snap := rn.snapshot()
	view := runView{
		ID:           snap.ID,
		Status:       snap.Status,
		Params:       snap.Params,
		FileName:     content.FileName(snap.Params.Topic),
		Content:      snap.Result.Content,
		InputTokens:  snap.Result.Usage.InputTokens,
		OutputTokens: snap.Result.Usage.OutputTokens,
		Started:      snap.Started,
		DurationMS:   snap.Result.Duration.Milliseconds(),
	}
	for _, t := range snap.Result.Tasks {
		view.Tasks = append(view.Tasks, taskView{
			Name:       t.Name,
			Agent:      t.Agent,
			Output:     t.Raw,
			DurationMS: t.Duration.Milliseconds(),
		})
	}
	if snap.Err != nil {
		view.Error = snap.Err.Error()
		view.Message = content.ErrorMessage(snap.Err)
	}
	if view.Content != "" {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(view.Content), &buf); err != nil {
			s.log.Warn("render article", "run_id", snap.ID, "error", err)
		} else {
			view.HTML = buf.String()
		}
	}

	writeJSON(w, http.StatusOK, view)
}

// doneFrame is the last message of an event stream.
type doneFrame struct {
	Kind   string `json:"kind"`
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	rn, ok := s.runs.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("run not found"))
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Debug("websocket accept", "run_id", rn.id, "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	ctx := conn.CloseRead(r.Context())

	next := 0
	for {
		events, done, changed := rn.since(next)
		for _, e := range events {
			if err := wsjson.Write(ctx, conn, e); err != nil {
				return
			}
		}
		next += len(events)

		if done {
			snap := rn.snapshot()
			frame := doneFrame{Kind: "done", RunID: snap.ID, Status: snap.Status}
			if snap.Err != nil {
				frame.Error = snap.Err.Error()
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				return
			}
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	rn, ok := s.runs.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("run not found"))
		return
	}

	snap := rn.snapshot()
	if snap.Status != StatusSucceeded {
		writeError(w, http.StatusConflict, fmt.Errorf("run is %s", snap.Status))
		return
	}

	name := content.FileName(snap.Params.Topic)
	w.Header().Set("Content-Type", content.MIMEType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	_, _ = w.Write([]byte(snap.Result.Content))
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Message: content.ErrorMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}
