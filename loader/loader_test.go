package loader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/trajview/trip"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeGetter serves a fixed body and remembers the last request.
type fakeGetter struct {
	body   string
	err    error
	bucket string
	key    string
}

func (f *fakeGetter) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = aws.ToString(params.Bucket)
	f.key = aws.ToString(params.Key)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

// stubSource returns a fixed table or error and counts calls.
type stubSource struct {
	table *Table
	err   error
	calls int
}

func (s *stubSource) Fetch(ctx context.Context, key string) (*Table, error) {
	s.calls++
	return s.table, s.err
}

func TestParseCSV_SelectsColumns(t *testing.T) {
	input := "frame,x,y,z,t,speed\n1,0.5,1.5,2.5,0.0,9\n2,1.0,2.0,3.0,0.1,9\n"

	tbl, err := ParseCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []float64{0.5, 1.0}, tbl.X)
	assert.Equal(t, []float64{1.5, 2.0}, tbl.Y)
	assert.Equal(t, []float64{2.5, 3.0}, tbl.Z)
	assert.Equal(t, []float64{0.0, 0.1}, tbl.T)
	assert.NoError(t, tbl.Validate())
}

func TestParseCSV_NullsBecomeZero(t *testing.T) {
	input := "x,y,z,t\n1,,3,4\nnull,2,NaN,NA\n5,6\n"

	tbl, err := ParseCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)

	// no rows dropped by null filling
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, Row{X: 1, Y: 0, Z: 3, T: 4}, tbl.Row(0))
	assert.Equal(t, Row{X: 0, Y: 2, Z: 0, T: 0}, tbl.Row(1))
	assert.Equal(t, Row{X: 5, Y: 6, Z: 0, T: 0}, tbl.Row(2))
}

func TestParseCSV_Comments(t *testing.T) {
	input := "# exported by tracker\nx,y,z,t\n# calibration run\n1,2,3,4\n"

	tbl, err := ParseCSV(strings.NewReader(input), CSVOptions{Comment: '#'})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	// without comment handling the first line is the header
	_, err = ParseCSV(strings.NewReader(input), CSVOptions{})
	assert.Error(t, err)
}

func TestParseCSV_MissingColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("x,y,t\n1,2,3\n"), CSVOptions{})
	require.Error(t, err)

	kind, ok := trip.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, trip.Load, kind)
	assert.Contains(t, err.Error(), "column not found")
}

func TestParseCSV_NonNumeric(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("x,y,z,t\n1,2,three,4\n"), CSVOptions{})
	require.Error(t, err)

	kind, ok := trip.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, trip.Convert, kind)
	assert.True(t, trip.IsFall(err))
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), CSVOptions{})
	assert.Error(t, err)

	tbl, err := ParseCSV(strings.NewReader("x,y,z,t\n"), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}

func TestTable_Rows(t *testing.T) {
	tbl := NewTable([]Row{{X: 1}, {X: 2}, {X: 3}})
	rows := tbl.Rows(1, 3)
	assert.Equal(t, []Row{{X: 2}, {X: 3}}, rows)

	var nilTable *Table
	assert.Equal(t, 0, nilTable.Len())

	bad := &Table{X: []float64{1}, Y: nil, Z: []float64{1}, T: []float64{1}}
	assert.Error(t, bad.Validate())
}

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "walker.csv"), []byte("#c\nx,y,z,t\n1,2,3,4\n"), 0644))

	src := NewLocalSource(dir, testLogger)
	assert.Equal(t, filepath.Join(dir, "walker.csv"), src.Path("walker"))

	tbl, err := src.Fetch(context.Background(), "walker")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	_, err = src.Fetch(context.Background(), "runner")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Source_KeyTemplate(t *testing.T) {
	getter := &fakeGetter{body: "x,y,z,t\n1,2,3,4\n5,6,7,8\n"}
	src := NewS3Source(getter, "", testLogger)

	tbl, err := src.Fetch(context.Background(), "walker")
	require.NoError(t, err)

	assert.Equal(t, "sc-pipeline-output", getter.bucket)
	assert.Equal(t, "statistics/walker_statistics_1000_82000.csv", getter.key)
	assert.Equal(t, 2, tbl.Len())
}

func TestS3Source_NoCommentHandling(t *testing.T) {
	getter := &fakeGetter{body: "x,y,z,t\n#1,2,3,4\n"}
	src := NewS3Source(getter, "bucket", testLogger)

	_, err := src.Fetch(context.Background(), "walker")
	assert.Error(t, err)
}

func TestS3Source_FetchError(t *testing.T) {
	getter := &fakeGetter{err: errors.New("access denied")}
	src := NewS3Source(getter, "bucket", testLogger)

	_, err := src.Fetch(context.Background(), "walker")
	require.Error(t, err)
	assert.True(t, trip.IsFall(err))
	assert.Contains(t, err.Error(), "access denied")
}

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/walker.csv":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("x,y,z,t\n1,2,3,4\n"))
		case "/broken.csv":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL+"/", testLogger)
	assert.Equal(t, server.URL+"/walker.csv", src.URL("walker"))

	tbl, err := src.Fetch(context.Background(), "walker")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	_, err = src.Fetch(context.Background(), "runner")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.Fetch(context.Background(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPSource_BodyLimit(t *testing.T) {
	body := "x,y,z,t\n1,2,3,4\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL, testLogger)
	src.maxBody = int64(len(body))
	tbl, err := src.Fetch(context.Background(), "walker")
	require.NoError(t, err, "a body exactly at the limit is accepted")
	assert.Equal(t, 1, tbl.Len())

	src.maxBody = int64(len(body)) - 1
	_, err = src.Fetch(context.Background(), "walker")
	require.Error(t, err)
	kind, ok := trip.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, trip.Load, kind)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestFallbackSource(t *testing.T) {
	want := NewTable([]Row{{X: 1}})

	t.Run("primary hit", func(t *testing.T) {
		primary := &stubSource{table: want}
		secondary := &stubSource{}
		tbl, err := NewFallbackSource(primary, secondary, testLogger).Fetch(context.Background(), "k")
		require.NoError(t, err)
		assert.Same(t, want, tbl)
		assert.Equal(t, 0, secondary.calls)
	})

	t.Run("not found falls back", func(t *testing.T) {
		primary := &stubSource{err: ErrNotFound}
		secondary := &stubSource{table: want}
		tbl, err := NewFallbackSource(primary, secondary, testLogger).Fetch(context.Background(), "k")
		require.NoError(t, err)
		assert.Same(t, want, tbl)
		assert.Equal(t, 1, secondary.calls)
	})

	t.Run("other errors do not fall back", func(t *testing.T) {
		primary := &stubSource{err: errors.New("malformed")}
		secondary := &stubSource{table: want}
		_, err := NewFallbackSource(primary, secondary, testLogger).Fetch(context.Background(), "k")
		assert.EqualError(t, err, "malformed")
		assert.Equal(t, 0, secondary.calls)
	})
}

func TestChain(t *testing.T) {
	want := NewTable([]Row{{X: 1}})
	a := &stubSource{err: ErrNotFound}
	b := &stubSource{err: ErrNotFound}
	c := &stubSource{table: want}

	tbl, err := Chain(testLogger, a, b, c).Fetch(context.Background(), "k")
	require.NoError(t, err)
	assert.Same(t, want, tbl)
	assert.Equal(t, []int{1, 1, 1}, []int{a.calls, b.calls, c.calls})

	assert.Nil(t, Chain(testLogger))
	assert.Same(t, Source(c), Chain(testLogger, c))
}

func TestParseCSV_LargeInput(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("x,y,z,t\n")
	for i := 0; i < 1000; i++ {
		buf.WriteString("1,2,3,4\n")
	}
	tbl, err := ParseCSV(&buf, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1000, tbl.Len())
}
