package influx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/senthilkumarv/aq-telemetry/internal/telemetry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		Host:            srv.URL,
		Token:           "secret",
		Database:        "apex",
		RetentionPolicy: "autogen",
		Timeout:         2 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestExecuteSendsQueryAndDecodesRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("expected /query, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("db") != "apex" || q.Get("rp") != "autogen" {
			t.Errorf("unexpected db/rp %q/%q", q.Get("db"), q.Get("rp"))
		}
		if q.Get("q") != "SELECT mean(value) FROM apex_probe" {
			t.Errorf("unexpected query %q", q.Get("q"))
		}
		if got := r.Header.Get("Authorization"); got != "Token secret" {
			t.Errorf("expected token header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"statement_id":0,"series":[
			{"name":"apex_probe","tags":{"name":"Tmp"},"columns":["time","mean"],
			 "values":[["2024-03-01T12:00:00Z",78.5],["2024-03-01T12:01:00Z",null]]},
			{"name":"apex_probe","tags":{"name":"Tmp2"},"columns":["time","mean"],
			 "values":[["2024-03-01T12:00:00Z",77]]}
		]}]}`))
	})

	rows, err := c.Execute(context.Background(), "SELECT mean(value) FROM apex_probe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	v, ok := rows[0].Get("mean")
	if !ok {
		t.Fatal("expected mean column")
	}
	if f, ok := v.Float(); !ok || f != 78.5 {
		t.Errorf("expected 78.5, got %v (%v)", f, ok)
	}
	if v, _ := rows[1].Get("mean"); !v.IsNull() {
		t.Errorf("expected null value, got %v", v)
	}
	if tag, _ := rows[2].Get("name"); tag.String() != "Tmp2" {
		t.Errorf("expected tag column Tmp2, got %v", tag)
	}
}

func TestExecuteEmptyResultIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"statement_id":0}]}`))
	})

	rows, err := c.Execute(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected 0 rows, got %d", len(rows))
	}
}

func TestExecuteClassifiesErrors(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		rejected  bool
		connected bool
	}{
		{"server error", http.StatusServiceUnavailable, `oops`, false, true},
		{"bad request", http.StatusBadRequest, `{"error":"error parsing query"}`, true, false},
		{"unauthorized", http.StatusUnauthorized, `{"error":"authorization failed"}`, true, false},
		{"statement error", http.StatusOK, `{"results":[{"statement_id":0,"error":"measurement not found"}]}`, true, false},
		{"malformed body", http.StatusOK, `{"results":[`, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			_, err := c.Execute(context.Background(), "SELECT 1")
			if err == nil {
				t.Fatal("expected error")
			}
			if telemetry.IsRejected(err) != tc.rejected {
				t.Errorf("expected rejected=%v, got %v", tc.rejected, err)
			}
			if telemetry.IsConnectivity(err) != tc.connected {
				t.Errorf("expected connectivity=%v, got %v", tc.connected, err)
			}
		})
	}
}

func TestExecuteUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	host := srv.URL
	srv.Close()

	c, err := NewClient(ClientConfig{Host: host, Database: "apex", Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Execute(context.Background(), "SELECT 1")
	if !telemetry.IsConnectivity(err) {
		t.Errorf("expected connectivity error, got %v", err)
	}
}

func TestExecuteReturnsContextError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Execute(ctx, "SELECT 1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewClientRequiresHostAndDatabase(t *testing.T) {
	if _, err := NewClient(ClientConfig{Database: "apex"}); err == nil {
		t.Error("expected error for missing host")
	}
	if _, err := NewClient(ClientConfig{Host: "http://localhost:8086"}); err == nil {
		t.Error("expected error for missing database")
	}
}
