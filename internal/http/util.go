package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseInt falls back to def on an absent or malformed value; range
// checks are the caller's.
func parseInt(s string, def int) int {
	if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return i
	}
	return def
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

// readBodyJSON decodes at most maxBytes of the request body into out. An
// empty body leaves out untouched; a body past the limit is an error rather
// than silently cut.
func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return err
	}
	if int64(len(body)) > maxBytes {
		return fmt.Errorf("body exceeds %d bytes", maxBytes)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// splitPath turns "FF-1/history/export" into ("FF-1", "history/export").
func splitPath(p string) (id, rest string) {
	id, rest, _ = strings.Cut(strings.Trim(p, "/"), "/")
	return id, rest
}
