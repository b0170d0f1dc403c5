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
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/context"
)

// Client talks to a Handler.
type Client struct {
	user   string // HTTP Basic-Auth
	pass   string
	auth   bool
	base   string // URI to root of tree on server
	client *http.Client
}

func (c *Client) SetAuth(user string, pass string) {
	c.user = user
	c.pass = pass
	c.auth = true
}

// poll issues a GET against path, decoding the JSON result into v.  If
// etag is not empty it is sent as If-None-Match, and if wait is also
// positive the server may hold the request for up to that many seconds
// waiting for a change.  The new Etag is returned, or "" (and no error)
// if nothing changed.
func (c *Client) poll(ctx context.Context, path string, etag string, wait int, v interface{}) (string, error) {
	req, e := http.NewRequestWithContext(ctx, "GET", c.base+path, nil)
	if e != nil {
		return "", e
	}
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		if wait > 0 {
			req.Header.Set(PollTimeHeader, strconv.Itoa(wait))
		}
	}
	res, e := c.client.Do(req)
	if e != nil {
		return "", e
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotModified {
		return "", nil
	}
	if res.StatusCode != http.StatusOK {
		return "", errorFrom(res)
	}
	body, e := io.ReadAll(res.Body)
	if e != nil {
		return "", e
	}
	if e := json.Unmarshal(body, v); e != nil {
		return "", e
	}
	return res.Header.Get("Etag"), nil
}

func errorFrom(res *http.Response) error {
	e := &Error{}
	if b, err := io.ReadAll(res.Body); err == nil && json.Unmarshal(b, e) == nil && e.Code != 0 {
		return e
	}
	return &Error{Code: res.StatusCode, Message: res.Status}
}

func (c *Client) post(path string) error {
	req, e := http.NewRequest("POST", c.base+path, strings.NewReader(""))
	if e != nil {
		return e
	}
	req.Header.Set("Content-Type", "text/plain") // we don't really care
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return errorFrom(res)
	}
	return nil
}

// Pool returns the pool summary.
func (c *Client) Pool() (*PoolInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v := &PoolInfo{}
	etag, e := c.poll(ctx, "/pool", "", 0, v)
	if e != nil {
		return nil, e
	}
	v.etag = etag
	return v, nil
}

// Watch waits for the pool to change from last.  If nothing changed
// before the server gave up waiting, last itself is returned.  A nil last
// returns the current state at once.
func (c *Client) Watch(ctx context.Context, last *PoolInfo) (*PoolInfo, error) {
	otag := ""
	if last != nil {
		otag = last.etag
	}
	v := &PoolInfo{}
	etag, e := c.poll(ctx, "/pool", otag, MaxPollTime, v)
	if e != nil {
		return nil, e
	}
	if etag == "" {
		return last, nil
	}
	v.etag = etag
	return v, nil
}

// Workers returns the pids of the current pool members, oldest first.
func (c *Client) Workers() ([]int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v := []int{}
	if _, e := c.poll(ctx, "/workers", "", 0, &v); e != nil {
		return nil, e
	}
	return v, nil
}

// Worker returns details for one member.
func (c *Client) Worker(pid int) (*WorkerInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v := &WorkerInfo{}
	if _, e := c.poll(ctx, "/workers/"+strconv.Itoa(pid), "", 0, v); e != nil {
		return nil, e
	}
	return v, nil
}

// KillWorker terminates a member.  The pool will replace it.
func (c *Client) KillWorker(pid int) error {
	return c.post("/workers/" + strconv.Itoa(pid) + "/kill")
}

func (c *Client) pollLog(ctx context.Context, secs int, last *LogInfo) (*LogInfo, error) {
	otag := ""
	if last != nil {
		otag = last.etag
	} else {
		secs = 0
	}
	v := &LogInfo{}
	etag, e := c.poll(ctx, "/log", otag, secs, &v.Records)
	if e != nil {
		return nil, e
	}
	if etag == "" {
		return last, nil
	}
	v.etag = etag
	return v, nil
}

// GetLog returns the pool event log.
func (c *Client) GetLog() (*LogInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.pollLog(ctx, 0, nil)
}

// WatchLog waits for the event log to change from last.
func (c *Client) WatchLog(ctx context.Context, last *LogInfo) (*LogInfo, error) {
	return c.pollLog(ctx, MaxPollTime, last)
}

// NewClient returns a Client handle.  The transport may be nil to use
// a default transport, but it may also be adjusted to support additional
// options such as TLS.  baseURI is the base URL to use.
func NewClient(t *http.Transport, baseURI string) *Client {
	if t == nil {
		t = &http.Transport{}
	}
	return &Client{
		base:   strings.TrimRight(baseURI, "/"),
		client: &http.Client{Transport: t},
	}
}
