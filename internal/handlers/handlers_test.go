package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/senthilkumarv/aq-telemetry/internal/catalog"
	"github.com/senthilkumarv/aq-telemetry/internal/logging"
	"github.com/senthilkumarv/aq-telemetry/internal/metrics"
	"github.com/senthilkumarv/aq-telemetry/internal/models"
	"github.com/senthilkumarv/aq-telemetry/internal/services"
	"github.com/senthilkumarv/aq-telemetry/internal/telemetry"
	"github.com/senthilkumarv/aq-telemetry/internal/wire"
)

const testCatalog = `{
  "tiles": [
    {"id": "temp", "title": "Temperature", "unit": "F", "precision": 1,
     "query": "SELECT last(value) FROM probe WHERE host='${source}' AND time > now() - ${hours}h"}
  ],
  "charts": [
    {"id": "water", "title": "Water", "kind": "multiLine",
     "series": [
       {"id": "ph", "name": "pH", "query": "SELECT mean(value) FROM ph WHERE host='${source}'"},
       {"id": "orp", "name": "ORP", "query": "SELECT mean(value) FROM orp WHERE host='${source}'"}
     ],
     "overlays": [{"id": "feed", "name": "Feeding", "query": "SELECT * FROM feed"}]}
  ]
}`

func seriesRows() []telemetry.Row {
	cols := []string{"time", "mean"}
	return []telemetry.Row{
		telemetry.NewRow(cols, "2024-05-01T10:00:00Z", 8.1),
		telemetry.NewRow(cols, "2024-05-01T10:05:00Z", 8.2),
	}
}

type testServer struct {
	handler   http.Handler
	readiness *Readiness
}

func newTestServer(exec telemetry.Executor, ids []string, opts DashboardOptions) testServer {
	cat, err := catalog.Parse([]byte(testCatalog), catalog.FormatJSON)
	Expect(err).NotTo(HaveOccurred())

	logger := logging.Discard()
	m := metrics.New()
	assembler := services.NewAssembler(exec,
		services.WithLogger(logger),
		services.WithMetrics(m),
		services.WithReporter(services.NewReporter(logger, m, nil)))
	aquariums := services.NewAquariumService(exec, ids, "", logger)

	dashboard := NewDashboardHandler(assembler, aquariums, cat, opts, logger)
	readiness := &Readiness{}
	return testServer{
		readiness: readiness,
		handler: NewRouter(Routes{
			Dashboard: dashboard,
			Stream:    NewStreamHandler(dashboard),
			Aquariums: NewAquariumHandler(aquariums, logger),
			Readiness: readiness,
		}, m, logger),
	}
}

func (s testServer) get(path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

var healthyExecutor = telemetry.ExecutorFunc(func(ctx context.Context, query string) ([]telemetry.Row, error) {
	switch {
	case strings.Contains(query, "last(value)"):
		return []telemetry.Row{telemetry.NewRow([]string{"time", "last"}, "2024-05-01T10:00:00Z", 78.4)}, nil
	case strings.Contains(query, "FROM orp"):
		return nil, telemetry.NewRejectedError(query, errors.New("measurement not found"))
	default:
		return seriesRows(), nil
	}
})

var _ = Describe("HTTP handlers", func() {
	var srv testServer

	BeforeEach(func() {
		srv = newTestServer(healthyExecutor, []string{"Reef_Tank_", "Nano"}, DashboardOptions{DefaultHours: 6, MaxHours: 720})
	})

	Describe("health and readiness", func() {
		It("answers liveness probes", func() {
			for _, path := range []string{"/healthz", "/health"} {
				rec := srv.get(path, nil)
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Body.String()).To(Equal("ok"))
			}
		})

		It("is not ready until marked ready", func() {
			Expect(srv.get("/readyz", nil).Code).To(Equal(http.StatusServiceUnavailable))
			srv.readiness.MarkReady()
			Expect(srv.get("/readyz", nil).Code).To(Equal(http.StatusOK))
		})

		It("exposes Prometheus metrics", func() {
			srv.get("/healthz", nil)
			rec := srv.get("/metrics", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("aqt_http_requests_total"))
		})
	})

	Describe("GET /aquariums", func() {
		It("lists configured aquariums as JSON", func() {
			rec := srv.get("/aquariums", map[string]string{"Accept": "application/json"})
			Expect(rec.Code).To(Equal(http.StatusOK))

			var list []models.Aquarium
			Expect(json.Unmarshal(rec.Body.Bytes(), &list)).To(Succeed())
			Expect(list).To(Equal([]models.Aquarium{
				{ID: "Reef_Tank_", Name: "Reef Tank"},
				{ID: "Nano", Name: "Nano"},
			}))
		})

		It("returns an empty list when discovery fails", func() {
			failing := telemetry.ExecutorFunc(func(ctx context.Context, query string) ([]telemetry.Row, error) {
				return nil, telemetry.NewConnectivityError(query, errors.New("connection refused"))
			})
			srv = newTestServer(failing, nil, DashboardOptions{})

			rec := srv.get("/aquariums", map[string]string{"Accept": "application/json"})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(strings.TrimSpace(rec.Body.String())).To(Equal("[]"))
		})

		It("defaults to Thrift", func() {
			rec := srv.get("/aquariums", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal(wire.ContentTypeThrift))
			Expect(rec.Body.Len()).To(BeNumerically(">", 0))
		})
	})

	Describe("GET /dashboards/{id}", func() {
		It("assembles the page with degraded widgets left empty", func() {
			rec := srv.get("/dashboards/Reef_Tank_?hours=12", map[string]string{"Accept": "application/json"})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get(RequestIDHeader)).NotTo(BeEmpty())

			var page models.Page
			Expect(json.Unmarshal(rec.Body.Bytes(), &page)).To(Succeed())
			Expect(page.Title).To(Equal("Reef Tank Telemetry (last 12h)"))
			Expect(page.Tiles).To(HaveLen(1))
			Expect(page.Tiles[0].Value).NotTo(BeNil())
			Expect(*page.Tiles[0].Value).To(Equal(78.4))
			Expect(page.Charts[0].Series[0].Points).To(HaveLen(2))
			Expect(page.Charts[0].Series[1].Points).To(BeEmpty())
			Expect(page.Overlays).To(HaveLen(1))
		})

		It("falls back to the default window for an out of range hours value", func() {
			rec := srv.get("/dashboards/Nano?hours=5000", map[string]string{"Accept": "application/json"})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("Nano Telemetry (last 6h)"))
		})

		It("compresses Thrift responses with the accepted coding", func() {
			rec := srv.get("/dashboards/Nano", map[string]string{"Accept-Encoding": "gzip"})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal(wire.ContentTypeThrift))
			Expect(rec.Header().Get("Content-Encoding")).To(Equal("gzip"))

			zr, err := gzip.NewReader(rec.Body)
			Expect(err).NotTo(HaveOccurred())
			raw, err := io.ReadAll(zr)
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).NotTo(BeEmpty())
		})

		It("returns 404 for an unknown aquarium", func() {
			rec := srv.get("/dashboards/Nope", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))

			var body ErrorResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Error).To(ContainSubstring("Nope"))
			Expect(body.RequestID).NotTo(BeEmpty())
		})

		It("still serves an empty page when the aquarium list cannot be resolved", func() {
			failing := telemetry.ExecutorFunc(func(ctx context.Context, query string) ([]telemetry.Row, error) {
				return nil, telemetry.NewConnectivityError(query, errors.New("connection refused"))
			})
			srv = newTestServer(failing, nil, DashboardOptions{})

			rec := srv.get("/dashboards/Nano", map[string]string{"Accept": "application/json"})
			Expect(rec.Code).To(Equal(http.StatusOK))

			var page models.Page
			Expect(json.Unmarshal(rec.Body.Bytes(), &page)).To(Succeed())
			Expect(page.Title).To(Equal("Nano Telemetry (last 6h)"))
			Expect(page.Tiles).To(HaveLen(1))
			Expect(page.Tiles[0].Value).To(BeNil())
			for _, s := range page.Charts[0].Series {
				Expect(s.Points).To(BeEmpty())
			}
		})

		It("rejects ids that are not plain names while the list is unresolved", func() {
			failing := telemetry.ExecutorFunc(func(ctx context.Context, query string) ([]telemetry.Row, error) {
				return nil, telemetry.NewConnectivityError(query, errors.New("connection refused"))
			})
			srv = newTestServer(failing, nil, DashboardOptions{})
			Expect(srv.get("/dashboards/Nano%27%20OR%201=1", nil).Code).To(Equal(http.StatusNotFound))
		})

		It("returns 504 when the request deadline passes", func() {
			blocking := telemetry.ExecutorFunc(func(ctx context.Context, query string) ([]telemetry.Row, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			})
			srv = newTestServer(blocking, []string{"Nano"}, DashboardOptions{RequestTimeout: 20 * time.Millisecond})
			Expect(srv.get("/dashboards/Nano", nil).Code).To(Equal(http.StatusGatewayTimeout))
		})

		It("keeps a caller supplied request id", func() {
			rec := srv.get("/dashboards/Nano", map[string]string{RequestIDHeader: "abc-123"})
			Expect(rec.Header().Get(RequestIDHeader)).To(Equal("abc-123"))
		})
	})

	Describe("GET /dashboards/{id}/stream", func() {
		readFrames := func(body *bytes.Buffer) [][]byte {
			var frames [][]byte
			for {
				frame, err := wire.ReadFrame(body)
				if errors.Is(err, io.EOF) {
					return frames
				}
				Expect(err).NotTo(HaveOccurred())
				frames = append(frames, frame)
			}
		}

		It("writes skeleton, one frame per widget and a completion frame", func() {
			rec := srv.get("/dashboards/Nano/stream", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal(wire.ContentTypeStream))
			Expect(rec.Header().Get("Content-Encoding")).To(BeEmpty())
			Expect(readFrames(rec.Body)).To(HaveLen(5))
		})

		It("brotli-compresses each frame when accepted", func() {
			rec := srv.get("/dashboards/Nano/stream", map[string]string{"Accept-Encoding": "gzip, br"})
			Expect(rec.Header().Get("Content-Encoding")).To(BeEmpty())

			frames := readFrames(rec.Body)
			Expect(frames).To(HaveLen(5))
			for _, f := range frames {
				raw, err := io.ReadAll(brotli.NewReader(bytes.NewReader(f)))
				Expect(err).NotTo(HaveOccurred())
				Expect(raw).NotTo(BeEmpty())
			}
		})

		It("returns 404 before streaming for an unknown aquarium", func() {
			Expect(srv.get("/dashboards/Nope/stream", nil).Code).To(Equal(http.StatusNotFound))
		})
	})

	It("rejects unsupported methods", func() {
		req := httptest.NewRequest(http.MethodDelete, "/aquariums", nil)
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
	})
})
