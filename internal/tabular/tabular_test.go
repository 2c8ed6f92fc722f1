package tabular

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "carecohort/internal/errors"
	"carecohort/internal/shared/testutil"
	"carecohort/pkg/contracts/domain"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
		wantErr  bool
	}{
		{filename: "beneficiarios.csv", want: FormatCSV},
		{filename: "FICHA.CSV", want: FormatCSV},
		{filename: "ficha.xlsx", want: FormatXLSX},
		{filename: "ficha.xls", wantErr: true},
		{filename: "ficha.parquet", wantErr: true},
		{filename: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := DetectFormat(tt.filename)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperrors.ErrUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		wantColumns []string
		wantRows    [][]string
	}{
		{
			name:        "semicolon separated",
			data:        []byte("id;valor\n1;1.234,56\n2;10\n"),
			wantColumns: []string{"id", "valor"},
			wantRows:    [][]string{{"1", "1.234,56"}, {"2", "10"}},
		},
		{
			name:        "comma fallback",
			data:        []byte("id,valor\n1,\"1.234,56\"\n"),
			wantColumns: []string{"id", "valor"},
			wantRows:    [][]string{{"1", "1.234,56"}},
		},
		{
			name:        "single column stays whole",
			data:        []byte("identificador\n001\n002\n"),
			wantColumns: []string{"identificador"},
			wantRows:    [][]string{{"001"}, {"002"}},
		},
		{
			name:        "utf-8 bom stripped",
			data:        append([]byte{0xEF, 0xBB, 0xBF}, []byte("Matrícula;Sexo\nA1;F\n")...),
			wantColumns: []string{"Matrícula", "Sexo"},
			wantRows:    [][]string{{"A1", "F"}},
		},
		{
			name:        "windows-1252 decoded",
			data:        []byte("Matr\xedcula;Descri\xe7\xe3o\nA1;Consulta\n"),
			wantColumns: []string{"Matrícula", "Descrição"},
			wantRows:    [][]string{{"A1", "Consulta"}},
		},
		{
			name:        "duplicate and trailing columns",
			data:        []byte("a;a;b;\n1;2;3;\n"),
			wantColumns: []string{"a", "a.1", "b"},
			wantRows:    [][]string{{"1", "2", "3"}},
		},
		{
			name:        "blank and short rows",
			data:        []byte("a;b;c\n;;\n1;2\n\n4;5;6\n"),
			wantColumns: []string{"a", "b", "c"},
			wantRows:    [][]string{{"1", "2", ""}, {"4", "5", "6"}},
		},
		{
			name:        "long row widens header",
			data:        []byte("a;b\n1;2;3\n"),
			wantColumns: []string{"a", "b", "Unnamed: 2"},
			wantRows:    [][]string{{"1", "2", "3"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCSV(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantColumns, got.Columns)
			assert.Equal(t, tt.wantRows, got.Rows)
		})
	}
}

func TestReadFixtureRoster(t *testing.T) {
	roster := testutil.SampleRoster()

	got, err := Read(bytes.NewReader(testutil.CSV(roster)), "beneficiarios.csv")
	require.NoError(t, err)
	assert.Equal(t, roster.Columns, got.Columns)
	assert.Equal(t, roster.Rows, got.Rows)
}

func TestReadEmpty(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("  \n")), "vazio.csv")
	assert.True(t, errors.Is(err, apperrors.ErrEmptyUpload))

	_, err = Read(bytes.NewReader([]byte("x")), "ficha.ods")
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedFormat))
}

func TestXLSXRoundTrip(t *testing.T) {
	events := testutil.SampleEvents()

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, SheetTenurePreview, events, XLSXOptions{NumericColumns: []string{"Quantidade"}}))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{SheetTenurePreview}, f.GetSheetList())
	require.NoError(t, f.Close())

	got, err := Read(bytes.NewReader(buf.Bytes()), "ficha.xlsx")
	require.NoError(t, err)
	assert.Equal(t, events.Columns, got.Columns)
	assert.Equal(t, events.Rows, got.Rows)
}

func TestReadXLSXInvalid(t *testing.T) {
	_, err := ReadXLSX(bytes.NewReader([]byte("not a zip")))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeParsing, appErr.Type)
}

func TestWriteCSV(t *testing.T) {
	table := domain.NewTable("identifier", "custos")
	table.AppendRow("A1", "1234.56")
	table.AppendRow("B2", "7")

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table, CSVOptions{Separator: ';', BOMPrefix: true}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))
	assert.Contains(t, buf.String(), "A1;1234.56\n")

	back, err := ReadCSV(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, table, back)
}
