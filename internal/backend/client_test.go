package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hiroki-koketsu/upahead/internal/model"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) Token(context.Context) (string, error) { return "", model.ErrNotAuthenticated }

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", staticToken("tok"), WithHTTPClient(srv.Client()))
}

func TestUpload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/assignments/upload", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "tasks.csv" || string(data) != "title\nA\n" {
			t.Errorf("file = %q %q", header.Filename, data)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"message":"ok","totalRows":2,"validRows":1,"invalidRows":1,"errors":[{"row":2,"field":"title","message":"Title is required"}]}`)
	})
	c := newTestClient(t, mux)

	res, err := c.Upload(context.Background(), "tasks.csv", strings.NewReader("title\nA\n"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !res.Success || res.TotalRows != 2 || res.ValidRows != 1 || len(res.Errors) != 1 || res.Errors[0].Row != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestUploadErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "structured", body: `{"error":{"message":"Unsupported file type"}}`, want: "Unsupported file type"},
		{name: "no body", body: ``, want: "Upload failed: Bad Request"},
		{name: "not json", body: `<html>`, want: "Upload failed: Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, tt.body)
			}))

			_, err := c.Upload(context.Background(), "a.csv", strings.NewReader("x"))
			var se *model.ServerError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *ServerError", err)
			}
			if se.Message != tt.want || se.Status != http.StatusBadRequest {
				t.Errorf("ServerError = %+v, want message %q", se, tt.want)
			}
			if !errors.Is(err, model.ErrServerRejected) {
				t.Error("not matched as ErrServerRejected")
			}
		})
	}
}

func TestErrorExtraction(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		body           string
		wantMessage    string
		wantCode       string
		wantSuggestion string
	}{
		{
			name:           "nested",
			status:         http.StatusBadRequest,
			body:           `{"error":{"message":"Could not parse","code":"UNPARSEABLE_PROMPT","suggestion":"Try naming a date"}}`,
			wantMessage:    "Could not parse",
			wantCode:       "UNPARSEABLE_PROMPT",
			wantSuggestion: "Try naming a date",
		},
		{name: "string error", status: http.StatusForbidden, body: `{"error":"forbidden"}`, wantMessage: "forbidden"},
		{name: "top level", status: http.StatusTooManyRequests, body: `{"message":"slow down","code":"QUOTA_EXCEEDED"}`, wantMessage: "slow down", wantCode: "QUOTA_EXCEEDED"},
		{name: "fallback", status: http.StatusInternalServerError, body: `{}`, wantMessage: "HTTP 500: Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))

			_, err := c.CreateFromPrompt(context.Background(), "do things")
			var se *model.ServerError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v", err)
			}
			if se.Message != tt.wantMessage || se.Code != tt.wantCode || se.Suggestion != tt.wantSuggestion {
				t.Errorf("ServerError = %+v", se)
			}
		})
	}
}

func TestCreateFromPrompt(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/assignments/ai-create" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["prompt"] != "finish essay by friday" {
			t.Errorf("prompt = %q", body["prompt"])
		}
		io.WriteString(w, `{"success":true,"message":"Created 1 task","tasks":[{"id":"a1","title":"Finish essay","completed":false}]}`)
	}))

	res, err := c.CreateFromPrompt(context.Background(), "finish essay by friday")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || len(res.Tasks) != 1 || res.Tasks[0].Title != "Finish essay" {
		t.Errorf("result = %+v", res)
	}
}

func TestAssignmentsCRUD(t *testing.T) {
	var deleted, updated bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/assignments", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "100" {
			t.Errorf("limit = %q", r.URL.Query().Get("limit"))
		}
		io.WriteString(w, `[{"id":"a1","title":"One","completed":false},{"id":"a2","title":"Two","completed":true}]`)
	})
	mux.HandleFunc("GET /api/assignments/stats", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"total":2,"completed":1,"pending":1,"overdue":0}`)
	})
	mux.HandleFunc("PUT /api/assignments/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["completed"] != true || len(body) != 1 {
			t.Errorf("update body = %v", body)
		}
		updated = true
		io.WriteString(w, `{"id":"`+r.PathValue("id")+`","title":"One","completed":true}`)
	})
	mux.HandleFunc("DELETE /api/assignments/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted = r.PathValue("id") == "a2"
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	list, err := c.Assignments(ctx, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("Assignments() = %v, %v", list, err)
	}

	stats, err := c.AssignmentStats(ctx)
	if err != nil || stats.Total != 2 || stats.Pending != 1 {
		t.Fatalf("AssignmentStats() = %+v, %v", stats, err)
	}

	a, err := c.UpdateAssignment(ctx, "a1", model.AssignmentUpdate{Completed: model.Ptr(true)})
	if err != nil || !a.Completed || !updated {
		t.Fatalf("UpdateAssignment() = %+v, %v", a, err)
	}

	if err := c.DeleteAssignment(ctx, "a2"); err != nil || !deleted {
		t.Fatalf("DeleteAssignment() error = %v, deleted %v", err, deleted)
	}
}

func TestHealth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("health check sent a token")
		}
		io.WriteString(w, `{"status":"ok","timestamp":"2024-01-01T00:00:00Z"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL+"/api", failingToken{}, WithHTTPClient(srv.Client()))
	h, err := c.Health(context.Background())
	if err != nil || h.Status != "ok" {
		t.Fatalf("Health() = %+v, %v", h, err)
	}

	srv.Close()
	if _, err := c.Health(context.Background()); !errors.Is(err, model.ErrRemoteUnavailable) {
		t.Errorf("Health() on closed server error = %v", err)
	}
}

func TestRequestsNeedToken(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	c := New(srv.URL+"/api", failingToken{}, WithHTTPClient(srv.Client()))
	if _, err := c.Assignments(context.Background(), 10); !errors.Is(err, model.ErrNotAuthenticated) {
		t.Errorf("Assignments() error = %v", err)
	}
	if called {
		t.Error("request sent without a token")
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url+"/api", staticToken("tok"))
	_, err := c.AssignmentStats(context.Background())
	if !errors.Is(err, model.ErrRemoteUnavailable) {
		t.Errorf("error = %v, want ErrRemoteUnavailable", err)
	}
}
