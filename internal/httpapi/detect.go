package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// detectTextInput decodes the `text` field of a /language_detection POST
// body, which accepts a bare string, a list of strings, or an object
// mapping arbitrary keys to strings; the response shape mirrors whichever
// one was sent.
type detectTextInput struct {
	kind   string
	scalar string
	list   []string
	dict   map[string]string
}

func (d *detectTextInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.kind, d.scalar = "scalar", s
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		d.kind, d.list = "list", list
		return nil
	}
	var dict map[string]string
	if err := json.Unmarshal(data, &dict); err == nil {
		d.kind, d.dict = "dict", dict
		return nil
	}
	return errors.New("text must be a string, a list of strings, or an object of strings")
}

type detectRequest struct {
	Text detectTextInput `json:"text"`
}

func (s *Server) handleDetectPOST(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	switch req.Text.kind {
	case "scalar":
		writeJSON(w, http.StatusOK, map[string]string{"language": s.detect.DetectCode(req.Text.scalar)})
	case "list":
		langs := make([]string, len(req.Text.list))
		for i, t := range req.Text.list {
			langs[i] = s.detect.DetectCode(t)
		}
		writeJSON(w, http.StatusOK, map[string][]string{"languages": langs})
	case "dict":
		out := make(map[string]string, len(req.Text.dict))
		for key, t := range req.Text.dict {
			out[key] = s.detect.DetectCode(t)
		}
		writeJSON(w, http.StatusOK, out)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
	}
}

func (s *Server) handleDetectGET(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"language": s.detect.DetectCode(text)})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 10<<20))
	return dec.Decode(v)
}
