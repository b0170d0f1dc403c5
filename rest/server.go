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

package rest

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/gdamore/forkvisor"
)

// Handler wraps a Pool, adding http.Handler functionality.
type Handler struct {
	p    *forkvisor.Pool
	r    *mux.Router
	user string
	hash []byte
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJson(w http.ResponseWriter, etag string, v interface{}) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		if etag != "" {
			w.Header().Set("Etag", etag)
		}
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	if b, err := json.Marshal(e); err != nil {
		h.internalError(w, err)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(e.Code)
		w.Write(b)
	}
}

func (h *Handler) notModified(w http.ResponseWriter, etag string) {
	w.Header().Set("Etag", etag)
	w.WriteHeader(http.StatusNotModified)
}

// poll implements conditional and long-polling GETs.  It returns the
// current serial, and true if that is the serial the client already has.
func poll(r *http.Request, cur int64, watch func(int64, time.Duration) int64) (int64, bool) {
	old, e := strconv.ParseInt(r.Header.Get("If-None-Match"), 10, 64)
	if e != nil || old != cur {
		return cur, false
	}
	secs, _ := strconv.Atoi(r.Header.Get(PollTimeHeader))
	if secs > MaxPollTime {
		secs = MaxPollTime
	}
	if secs > 0 {
		cur = watch(old, time.Duration(secs)*time.Second)
	}
	return cur, cur == old
}

func etag(n int64) string {
	return strconv.FormatInt(n, 10)
}

func (h *Handler) getPool(w http.ResponseWriter, r *http.Request) {
	sn, same := poll(r, h.p.Serial(), h.p.WatchSerial)
	if same {
		h.notModified(w, etag(sn))
		return
	}
	i := h.p.GetInfo()
	info := &PoolInfo{
		Name:       i.Name,
		Size:       i.Size,
		Live:       i.Live,
		Running:    i.Running,
		Spawned:    i.Spawned,
		Exited:     i.Exited,
		CreateTime: i.CreateTime,
		UpdateTime: i.UpdateTime,
	}
	h.writeJson(w, etag(i.Serial), info)
}

func (h *Handler) listWorkers(w http.ResponseWriter, r *http.Request) {
	_, sn := h.p.Workers()
	sn, same := poll(r, sn, h.p.WatchWorkers)
	if same {
		h.notModified(w, etag(sn))
		return
	}
	ws, sn := h.p.Workers()
	l := make([]int, 0, len(ws))
	for _, wk := range ws {
		l = append(l, wk.Pid())
	}
	h.writeJson(w, etag(sn), l)
}

func (h *Handler) findWorker(r *http.Request) (*forkvisor.Worker, *Error) {
	pid, e := strconv.Atoi(mux.Vars(r)["pid"])
	if e != nil {
		return nil, &Error{http.StatusBadRequest, "Bad pid"}
	}
	wk, e := h.p.Worker(pid)
	if e != nil {
		return nil, &Error{http.StatusNotFound, "Worker not found"}
	}
	return wk, nil
}

func (h *Handler) getWorker(w http.ResponseWriter, r *http.Request) {
	if wk, e := h.findWorker(r); e != nil {
		h.writeError(w, e)
	} else {
		info := &WorkerInfo{
			Pid:     wk.Pid(),
			State:   wk.State().String(),
			Started: wk.Started(),
			Ready:   wk.Ready(),
		}
		h.writeJson(w, "", info)
	}
}

func (h *Handler) killWorker(w http.ResponseWriter, r *http.Request) {
	if wk, e := h.findWorker(r); e != nil {
		h.writeError(w, e)
	} else if err := h.p.Kill(wk.Pid()); err != nil {
		h.writeError(w, &Error{http.StatusBadRequest, err.Error()})
	} else {
		h.writeJson(w, "", ok)
	}
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	_, id := h.p.GetLog(0)
	id, same := poll(r, id, h.p.WatchLog)
	if same {
		h.notModified(w, etag(id))
		return
	}
	recs, id := h.p.GetLog(0)
	h.writeJson(w, etag(id), recs)
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.hash == nil {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if ok && subtle.ConstantTimeCompare([]byte(user), []byte(h.user)) == 1 &&
			bcrypt.CompareHashAndPassword(h.hash, []byte(pass)) == nil {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="forkvisor"`)
		h.writeError(w, &Error{http.StatusUnauthorized, "Unauthorized"})
	})
}

// SetAuth requires HTTP basic authentication for every request.  The
// password is checked against hash, which must be a bcrypt hash.
func (h *Handler) SetAuth(user string, hash []byte) error {
	if _, e := bcrypt.Cost(hash); e != nil {
		return e
	}
	h.user = user
	h.hash = append([]byte{}, hash...)
	return nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

func NewHandler(p *forkvisor.Pool) *Handler {
	r := mux.NewRouter()
	h := &Handler{p: p, r: r}
	r.Use(h.authenticate)
	r.HandleFunc("/pool", h.getPool).Methods("GET")
	r.HandleFunc("/workers", h.listWorkers).Methods("GET")
	r.HandleFunc("/workers/{pid:[0-9]+}", h.getWorker).Methods("GET")
	r.HandleFunc("/workers/{pid:[0-9]+}/kill", h.killWorker).Methods("POST")
	r.HandleFunc("/log", h.getLog).Methods("GET")
	return h
}
