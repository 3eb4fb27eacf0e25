package mapping

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/topuprouter/internal/model"
)

func loadTestTables(t *testing.T) *Tables {
	src := &FileSource{Path: filepath.Join("testdata", "mapping.yaml")}
	tables, err := src.Load(context.Background())
	require.NoError(t, err)
	return tables
}

var testDeliveryAttrs = []model.DeliveryAttribute{
	{GroupID: "a488b0e9", GroupName: "UID", Value: "800322607", Key: "delivery_info_1"},
	{GroupID: "20c73c0f", GroupName: "Server", AttributeID: "9a5c03c7", AttributeValue: "Asia", Key: "delivery_info_2"},
}

func TestResolve(t *testing.T) {
	tables := loadTestTables(t)

	tests := []struct {
		name  string
		attrs []model.OfferAttribute
		want  model.ProductMap
	}{
		{
			name:  "both providers",
			attrs: []model.OfferAttribute{{GroupID: "20c73c0f", AttributeID: "9a5c03c7"}},
			want: model.ProductMap{
				LapakCodes: []string{"ML-86", "ML-86-ID"},
				Elite:      &model.EliteProduct{Game: "Mobile Legends", Denom: "86"},
				Mode:       model.ProviderModeAuto,
			},
		},
		{
			name:  "forced lapak",
			attrs: []model.OfferAttribute{{GroupID: "20c73c0f", AttributeID: "9a5c03c8"}},
			want:  model.ProductMap{LapakCodes: []string{"ML-172"}, Mode: model.ProviderModeLapak},
		},
		{
			name:  "forced elite",
			attrs: []model.OfferAttribute{{GroupID: "f0e1", AttributeID: "aa01"}},
			want: model.ProductMap{
				Elite: &model.EliteProduct{Game: "Mobile Legends", Denom: "172"},
				Mode:  model.ProviderModeElite,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tables.Resolve("P-ML", tt.attrs)
			require.NoError(t, err)
			require.Equal(t, tt.want, res.Map)
			require.Empty(t, res.Ignored)
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	tables := loadTestTables(t)

	_, err := tables.Resolve("P-UNKNOWN", []model.OfferAttribute{{GroupID: "20c73c0f", AttributeID: "9a5c03c7"}})
	require.ErrorIs(t, err, ErrProductNotFound)

	_, err = tables.Resolve("P-ML", []model.OfferAttribute{{GroupID: "20c73c0f", AttributeID: "missing"}})
	require.ErrorIs(t, err, ErrProductNotFound)

	_, err = tables.Resolve("P-ML", nil)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestResolveFirstMatchWins(t *testing.T) {
	tables := loadTestTables(t)

	attrs := []model.OfferAttribute{
		{GroupID: "x", AttributeID: "y"},
		{GroupID: "20c73c0f", AttributeID: "9a5c03c8"},
		{GroupID: "f0e1", AttributeID: "aa01"},
	}
	res, err := tables.Resolve("P-ML", attrs)
	require.NoError(t, err)
	require.Equal(t, "9a5c03c8", res.AttributeID)
	require.Equal(t, model.ProviderModeLapak, res.Map.Mode)
	require.Equal(t, []model.OfferAttribute{{GroupID: "f0e1", AttributeID: "aa01"}}, res.Ignored)
}

func TestDeliveryFields(t *testing.T) {
	tables := loadTestTables(t)

	fields, err := tables.DeliveryFields(model.ProviderLapak, "P-ML", testDeliveryAttrs)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"user_id": "800322607", "additional_id": "os_asia"}, fields)

	// default словарного правила побеждает данные события
	fields, err = tables.DeliveryFields(model.ProviderElite, "P-ML", testDeliveryAttrs)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"userid": "800322607", "serverid": "2001"}, fields)
}

func TestDeliveryFieldsFirstEntryWins(t *testing.T) {
	tables := loadTestTables(t)

	attrs := append([]model.DeliveryAttribute{
		{GroupID: "a488b0e9", Value: "111"},
	}, testDeliveryAttrs...)
	fields, err := tables.DeliveryFields(model.ProviderLapak, "P-ML", attrs)
	require.NoError(t, err)
	require.Equal(t, "111", fields["user_id"])
}

func TestDeliveryFieldsErrors(t *testing.T) {
	tables := loadTestTables(t)

	_, err := tables.DeliveryFields(model.ProviderLapak, "P-UNKNOWN", testDeliveryAttrs)
	require.ErrorIs(t, err, ErrDeliveryMappingNotFound)

	// нет сервера в событии
	_, err = tables.DeliveryFields(model.ProviderLapak, "P-ML", testDeliveryAttrs[:1])
	require.ErrorIs(t, err, ErrFieldUnresolved)

	// значение сервера не настроено
	attrs := []model.DeliveryAttribute{
		testDeliveryAttrs[0],
		{GroupID: "20c73c0f", AttributeValue: "America"},
	}
	_, err = tables.DeliveryFields(model.ProviderLapak, "P-ML", attrs)
	require.ErrorIs(t, err, ErrFieldUnresolved)
}

func TestRate(t *testing.T) {
	tables := loadTestTables(t)

	rate, err := tables.Rate("IDR")
	require.NoError(t, err)
	require.Equal(t, 0.000061, rate)

	rate, err = tables.Rate("usd")
	require.NoError(t, err)
	require.Equal(t, 1.0, rate)

	_, err = tables.Rate("EUR")
	require.ErrorIs(t, err, ErrRateNotFound)
}

func TestParseBadMode(t *testing.T) {
	_, err := Parse([]byte(`
products:
  P:
    g:
      a:
        lapakgaming: X
        provider_mode: cheapest
`))
	require.Error(t, err)
}

func TestFileSourceRereads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rates: {IDR: 0.1}\n"), 0o644))

	src := &FileSource{Path: path}
	tables, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0.1, tables.Rates["IDR"])

	require.NoError(t, os.WriteFile(path, []byte("rates: {IDR: 0.2}\n"), 0o644))
	tables, err = src.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0.2, tables.Rates["IDR"])
}

type fakeDownloader struct {
	data  []byte
	input *s3.GetObjectInput
}

func (f *fakeDownloader) Download(_ context.Context, w io.WriterAt, input *s3.GetObjectInput, _ ...func(*manager.Downloader)) (int64, error) {
	f.input = input
	n, err := w.WriteAt(f.data, 0)
	return int64(n), err
}

func TestS3SourceLoad(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "mapping.yaml"))
	require.NoError(t, err)

	fake := &fakeDownloader{data: data}
	src := &S3Source{bucket: "router-config", key: "mapping.yaml", downloader: fake}

	tables, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "router-config", *fake.input.Bucket)
	require.Equal(t, "mapping.yaml", *fake.input.Key)
	require.True(t, tables.HasDelivery(model.ProviderElite, "P-ML"))
}
