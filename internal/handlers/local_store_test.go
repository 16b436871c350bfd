package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/senthilkumarv/aq-telemetry/internal/database"
	"github.com/senthilkumarv/aq-telemetry/internal/logging"
	"github.com/senthilkumarv/aq-telemetry/internal/metrics"
	"github.com/senthilkumarv/aq-telemetry/internal/services"
)

const readingsFile = `{
  "host": "Nano",
  "probes": [
    {"probe_type": "Temp", "name": "Tmp", "points": [
      {"timestamp": "2024-03-01T12:00:00Z", "value": 78.1, "quality": 3},
      {"timestamp": "2024-03-01T12:01:00Z", "value": 78.3, "quality": 3}
    ]}
  ]
}`

var _ = Describe("local store endpoints", func() {
	var (
		handler http.Handler
		folder  string
	)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		db, err := database.NewDB(filepath.Join(dir, "aq.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)

		folder = filepath.Join(dir, "raw")
		Expect(os.MkdirAll(folder, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(folder, "nano.json"), []byte(readingsFile), 0o644)).To(Succeed())

		logger := logging.Discard()
		exec := database.NewExecutor(db)
		aquariums := services.NewAquariumService(exec, []string{"Nano"}, "", logger)
		dashboard := NewDashboardHandler(services.NewAssembler(exec, services.WithLogger(logger)), aquariums, nil, DashboardOptions{}, logger)

		handler = NewRouter(Routes{
			Dashboard: dashboard,
			Stream:    NewStreamHandler(dashboard),
			Aquariums: NewAquariumHandler(aquariums, logger),
			Load:      NewLoadHandler(services.NewLoader(db, logger), folder, logger),
			Generate: NewGeneratorHandler(services.NewGenerator(db, logger), services.GenerateOptions{
				Hosts:    []string{"Nano"},
				Probes:   []services.ProbeSpec{{ProbeType: "Temp", Name: "Tmp", Min: 76, Max: 80}},
				Hours:    1,
				Interval: 10 * time.Minute,
			}, logger),
			Upload: NewUploadHandler(services.NewUploadService(db, logger), logger),
			Config: NewConfigHandler(DashboardOptions{DefaultHours: 6, MaxHours: 720}, 150, nil),
		}, metrics.New(), logger)
	})

	upload := func(fields map[string]string, csv string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		for k, v := range fields {
			Expect(mw.WriteField(k, v)).To(Succeed())
		}
		if csv != "" {
			fw, err := mw.CreateFormFile("file", "readings.csv")
			Expect(err).NotTo(HaveOccurred())
			fw.Write([]byte(csv))
		}
		Expect(mw.Close()).To(Succeed())

		req := httptest.NewRequest(http.MethodPost, "/api/upload-csv", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	It("loads every file of the raw data folder", func() {
		rec := post("/api/load", "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp LoadResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Success).To(BeTrue())
		Expect(resp.Count).To(Equal(2))
		Expect(resp.FilesCount).To(Equal(1))
	})

	It("loads a single named file", func() {
		rec := post("/api/load", `{"file_path": "`+filepath.Join(folder, "nano.json")+`"}`)
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("reports a missing file as a failure", func() {
		rec := post("/api/load", `{"file_path": "/does/not/exist.json"}`)
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))

		var resp LoadResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Success).To(BeFalse())
	})

	It("generates synthetic readings for the configured hosts", func() {
		rec := post("/api/generate-dummy", "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp GenerateResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Success).To(BeTrue())
		Expect(resp.Count).To(Equal(7))
		Expect(resp.SeriesCount).To(Equal(1))
	})

	It("rejects a malformed body", func() {
		Expect(post("/api/generate-dummy", `{"hosts":`).Code).To(Equal(http.StatusBadRequest))
	})

	It("imports an uploaded CSV", func() {
		rec := upload(map[string]string{"host": "Nano", "mode": "override"},
			"timestamp,Temp/Tmp,pH\n2024-03-01T12:00:00Z,78.1,8.2\n")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp UploadResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Count).To(Equal(2))
		Expect(resp.ProbesAffected).To(Equal(2))
	})

	It("requires a valid import mode", func() {
		rec := upload(map[string]string{"host": "Nano", "mode": "merge"}, "timestamp,pH\n")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("requires a file", func() {
		Expect(upload(map[string]string{"host": "Nano", "mode": "replace"}, "").Code).To(Equal(http.StatusBadRequest))
	})

	It("exposes dashboard defaults", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp ConfigResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Hours).To(Equal(HoursResponse{Default: 6, Max: 720}))
		Expect(resp.MaxPoints).To(Equal(150))
	})
})
