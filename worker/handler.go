// Copyright 2026 The Forkvisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package worker

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

const (
	mimeJson = "application/json; charset=UTF-8"
	mimeText = "text/plain; charset=UTF-8"
)

// Terminator is what the routes need from the serving worker.
type Terminator interface {
	Pid() int
	Terminate()
}

// KillResponse is the body returned by /kill.
type KillResponse struct {
	Msg string `json:"msg"`
}

// Handler holds the worker routes.
type Handler struct {
	t      Terminator
	r      *mux.Router
	logger *log.Logger
}

func (h *Handler) hello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", mimeText)
	fmt.Fprintf(w, "Hello from Worker %d", h.t.Pid())
}

// kill acknowledges, and only then terminates.  The body is flushed to
// the connection before Terminate is called, and the connection is marked
// for close so that shutdown does not wait on keep-alive.
func (h *Handler) kill(w http.ResponseWriter, r *http.Request) {
	b, e := json.Marshal(&KillResponse{
		Msg: fmt.Sprintf("Process ID:%d killed", h.t.Pid()),
	})
	if e != nil {
		http.Error(w, e.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", mimeJson)
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	if _, e := w.Write(b); e != nil {
		h.logger.Errorf("Worker %d failed to acknowledge kill: %v",
			h.t.Pid(), e)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	h.t.Terminate()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

// NewHandler returns the worker routes:
//
//	GET /      greeting naming the serving process
//	GET /kill  acknowledge, then terminate the serving process
//
// A nil logger discards.
func NewHandler(t Terminator, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	r := mux.NewRouter()
	h := &Handler{t: t, r: r, logger: logger}
	r.HandleFunc("/", h.hello).Methods("GET")
	r.HandleFunc("/kill", h.kill).Methods("GET")
	return h
}
