package imagepipeline

import (
	"context"
	"testing"
	"time"

	"github.com/alertgate/gateway/internal/models"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promAlert(generatorURL string) *models.Alert {
	labels := models.NewLabelSet()
	labels.Set("alertname", "HighCPU")
	labels.Set(models.LabelSource, string(models.SourceProm))
	return &models.Alert{Labels: labels, GeneratorURL: generatorURL}
}

func TestExtractPrometheusMultiSeries(t *testing.T) {
	a := promAlert("http://p:9090/graph?g0.expr=cpu&g1.expr=mem")
	q, err := Extract(a)
	require.NoError(t, err)
	assert.Equal(t, "cpu", q.Primary)
	assert.Equal(t, []string{"mem"}, q.Overlays)
	assert.Equal(t, "http://p:9090", q.Authority)
}

func TestExtractNoQuery(t *testing.T) {
	a := promAlert("http://p:9090/graph")
	_, err := Extract(a)
	assert.ErrorIs(t, err, ErrNoQuery)
}

func TestValidPNG(t *testing.T) {
	good := append(pngMagic, make([]byte, 100)...)
	assert.True(t, Valid(good))
	assert.False(t, Valid([]byte("<html>error</html>")))
	assert.False(t, Valid(append(pngMagic, []byte{1, 2, 3}...)))
}

type fakeQuerier struct {
	matrix model.Matrix
	err    error
}

func (f fakeQuerier) Query(ctx context.Context, baseURL, expr string, lookback, step, timeout time.Duration) (model.Matrix, error) {
	return f.matrix, f.err
}

func sampleMatrix(n int) model.Matrix {
	stream := &model.SampleStream{
		Metric: model.Metric{"job": "x"},
	}
	base := model.TimeFromUnix(time.Now().Unix())
	for i := 0; i < n; i++ {
		stream.Values = append(stream.Values, model.SamplePair{
			Timestamp: base + model.Time(i*60000),
			Value:     model.SampleValue(float64(i)),
		})
	}
	return model.Matrix{stream}
}

func TestGenerateProducesValidPNG(t *testing.T) {
	p := NewWithQuerier(fakeQuerier{matrix: sampleMatrix(20)})
	a := promAlert("http://p:9090/graph?g0.expr=cpu")
	b, err := p.Generate(context.Background(), a, Config{})
	require.NoError(t, err)
	require.True(t, Valid(b))
}

func TestGenerateEmptySeriesReturnsNoImage(t *testing.T) {
	p := NewWithQuerier(fakeQuerier{matrix: model.Matrix{}})
	a := promAlert("http://p:9090/graph?g0.expr=cpu")
	b, err := p.Generate(context.Background(), a, Config{})
	assert.ErrorIs(t, err, ErrEmptySeries)
	assert.Nil(t, b)
}

func TestGenerateNoQueryFallsBackGracefully(t *testing.T) {
	p := NewWithQuerier(fakeQuerier{})
	a := promAlert("http://p:9090/graph")
	b, err := p.Generate(context.Background(), a, Config{})
	assert.ErrorIs(t, err, ErrNoQuery)
	assert.Nil(t, b)
}
