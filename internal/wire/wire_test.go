package wire

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/apache/thrift/lib/go/thrift"
	"github.com/klauspost/compress/gzip"

	"github.com/senthilkumarv/aq-telemetry/internal/models"
	"github.com/senthilkumarv/aq-telemetry/internal/services"
)

// decodeStruct reads a binary-protocol struct into field id -> value.
// Lists become []any and nested structs map[int16]any.
func decodeStruct(t *testing.T, data []byte) map[int16]any {
	t.Helper()
	buf := thrift.NewTMemoryBuffer()
	buf.Write(data)
	p := thrift.NewTBinaryProtocolConf(buf, &thrift.TConfiguration{})
	out, err := readStruct(context.Background(), p)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	return out
}

func readStruct(ctx context.Context, p thrift.TProtocol) (map[int16]any, error) {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return nil, err
	}
	out := map[int16]any{}
	for {
		_, typ, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return nil, err
		}
		if typ == thrift.STOP {
			break
		}
		v, err := readValue(ctx, p, typ)
		if err != nil {
			return nil, err
		}
		out[id] = v
		if err := p.ReadFieldEnd(ctx); err != nil {
			return nil, err
		}
	}
	return out, p.ReadStructEnd(ctx)
}

func readValue(ctx context.Context, p thrift.TProtocol, typ thrift.TType) (any, error) {
	switch typ {
	case thrift.STRING:
		return p.ReadString(ctx)
	case thrift.I32:
		return p.ReadI32(ctx)
	case thrift.I64:
		return p.ReadI64(ctx)
	case thrift.DOUBLE:
		return p.ReadDouble(ctx)
	case thrift.STRUCT:
		return readStruct(ctx, p)
	case thrift.LIST:
		elem, size, err := p.ReadListBegin(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]any, 0, size)
		for i := 0; i < size; i++ {
			v, err := readValue(ctx, p, elem)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, p.ReadListEnd(ctx)
	}
	return nil, p.Skip(ctx, typ)
}

func samplePage() *models.Page {
	v := 78.4
	lo, hi := 70.0, 85.0
	digits := 1
	return &models.Page{
		Title: "Reef Telemetry (last 6h)",
		Tiles: []models.TileValue{
			{ID: "temp", Title: "Temperature", Unit: "F", Precision: 1, Value: &v},
			{ID: "ph", Title: "pH", Precision: 2},
		},
		Charts: []models.ChartValue{{
			ID: "temp_chart", Title: "Temperature", Kind: models.ChartKindMultiLine,
			YMin: &lo, YMax: &hi, FractionDigits: &digits,
			Series: []models.SeriesValue{
				{ID: "s1", Name: "Display", Color: "#f00", Points: []models.Point{{TimeMs: 1000, Value: 78}, {TimeMs: 2000, Value: 79}}},
				{ID: "s2", Name: "Sump", Points: []models.Point{}},
			},
		}},
		Overlays: []models.Overlay{{ChartID: "temp_chart", ID: "heater", Name: "Heater"}},
	}
}

func TestEncodePage(t *testing.T) {
	data, err := EncodePage(context.Background(), samplePage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	page := decodeStruct(t, data)
	if page[1] != "Reef Telemetry (last 6h)" {
		t.Errorf("unexpected title %v", page[1])
	}

	tiles := page[2].([]any)
	if len(tiles) != 2 {
		t.Fatalf("expected 2 tiles, got %d", len(tiles))
	}
	first := tiles[0].(map[int16]any)
	if first[1] != "temp" || first[4] != 78.4 || first[5] != int32(1) {
		t.Errorf("unexpected first tile %v", first)
	}
	if _, ok := tiles[1].(map[int16]any)[4]; ok {
		t.Error("expected null tile value to be omitted")
	}

	chart := page[3].([]any)[0].(map[int16]any)
	if chart[4] != ChartKindMultiLine || chart[5] != 70.0 || chart[6] != 85.0 || chart[7] != int32(1) {
		t.Errorf("unexpected chart %v", chart)
	}
	series := chart[8].([]any)
	if len(series) != 2 {
		t.Fatalf("expected 2 series, got %d", len(series))
	}
	points := series[0].(map[int16]any)[4].([]any)
	if len(points) != 2 || points[1].(map[int16]any)[1] != int64(2000) {
		t.Errorf("unexpected points %v", points)
	}
	if _, ok := series[1].(map[int16]any)[3]; ok {
		t.Error("expected empty color to be omitted")
	}

	overlays := page[4].([]any)
	if len(overlays) != 1 || overlays[0].(map[int16]any)[1] != "temp_chart" {
		t.Errorf("unexpected overlays %v", overlays)
	}
}

func TestEncodeAquariums(t *testing.T) {
	data, err := EncodeAquariums(context.Background(), []models.Aquarium{models.NewAquarium("Planet_72")})
	if err != nil {
		t.Fatal(err)
	}
	list := decodeStruct(t, data)[1].([]any)
	aq := list[0].(map[int16]any)
	if aq[1] != "Planet_72" || aq[2] != "Planet 72" {
		t.Errorf("unexpected aquarium %v", aq)
	}
}

func TestEncodeStreamMessages(t *testing.T) {
	ctx := context.Background()
	page := samplePage()

	skel, err := EncodeStreamMessage(ctx, services.StreamEvent{Kind: services.EventSkeleton, AquariumID: "Reef", Skeleton: page})
	if err != nil {
		t.Fatal(err)
	}
	msg := decodeStruct(t, skel)
	if msg[1] != MessageSkeleton {
		t.Errorf("expected skeleton type, got %v", msg[1])
	}
	if msg[2].(map[int16]any)[1] != "Reef" {
		t.Errorf("expected aquarium id in skeleton, got %v", msg[2])
	}

	tile, _ := EncodeStreamMessage(ctx, services.StreamEvent{Kind: services.EventTileUpdate, Tile: &page.Tiles[0]})
	msg = decodeStruct(t, tile)
	if msg[1] != MessageTileUpdate || msg[3].(map[int16]any)[2] != 78.4 {
		t.Errorf("unexpected tile update %v", msg)
	}

	chart, _ := EncodeStreamMessage(ctx, services.StreamEvent{
		Kind: services.EventSeriesUpdate, ChartID: "temp_chart", Series: &page.Charts[0].Series[0],
	})
	msg = decodeStruct(t, chart)
	update := msg[4].(map[int16]any)
	if msg[1] != MessageChartUpdate || update[1] != "temp_chart" {
		t.Errorf("unexpected chart update %v", msg)
	}

	done, _ := EncodeStreamMessage(ctx, services.StreamEvent{Kind: services.EventComplete, Widgets: 5, Duration: 1500 * time.Millisecond})
	msg = decodeStruct(t, done)
	completion := msg[5].(map[int16]any)
	if msg[1] != MessageComplete || completion[1] != int32(5) || completion[2] != int64(1500) {
		t.Errorf("unexpected completion %v", msg)
	}
}

func TestNegotiate(t *testing.T) {
	cases := map[string]Encoding{
		"":                    Identity,
		"gzip, deflate, br":   Brotli,
		"gzip":                Gzip,
		"br;q=0, gzip":        Gzip,
		"identity":            Identity,
		"deflate, GZIP;q=0.5": Gzip,
		"br;q=1.0":            Brotli,
		"gzip;q=0, br;q=0":    Identity,
	}
	for header, want := range cases {
		if got := Negotiate(header); got != want {
			t.Errorf("Negotiate(%q): expected %q, got %q", header, want, got)
		}
	}
}

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("reef telemetry "), 200)

	br, err := Compress(Brotli, data)
	if err != nil {
		t.Fatal(err)
	}
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(br)))
	if err != nil || !bytes.Equal(out, data) {
		t.Errorf("brotli round trip failed: %v", err)
	}

	gz, err := Compress(Gzip, data)
	if err != nil {
		t.Fatal(err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(gz))
	if err != nil {
		t.Fatal(err)
	}
	out, err = io.ReadAll(zr)
	if err != nil || !bytes.Equal(out, data) {
		t.Errorf("gzip round trip failed: %v", err)
	}

	same, _ := Compress(Identity, data)
	if !bytes.Equal(same, data) {
		t.Error("expected identity to return input")
	}
}

func TestFrames(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, []byte("one"))
	WriteFrame(&buf, []byte{})
	WriteFrame(&buf, []byte("three"))

	if !bytes.Equal(buf.Bytes()[:4], []byte{0, 0, 0, 3}) {
		t.Errorf("expected big-endian length prefix, got %v", buf.Bytes()[:4])
	}

	for _, want := range []string{"one", "", "three"} {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(got) != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
	if _, err := ReadFrame(&buf); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestWantsJSON(t *testing.T) {
	if !WantsJSON("application/json") || WantsJSON("application/x-thrift") || WantsJSON("") {
		t.Error("unexpected WantsJSON result")
	}
}
