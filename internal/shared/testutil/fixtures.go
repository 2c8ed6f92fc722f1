package testutil

import (
	"strings"

	"carecohort/pkg/contracts/domain"
)

// SampleRoster returns a small beneficiary roster with column headers in the
// shape operators usually export them.
//
//	A1 joined 2023-01-15, B2 has no inclusion date, C3 left in 2023-04.
func SampleRoster() domain.Table {
	return domain.Table{
		Columns: []string{"Matricula", "Data Inclusao", "Data Exclusao", "Data Nascimento", "Sexo"},
		Rows: [][]string{
			{"A1", "15/01/2023", "", "10/05/1980", "feminino"},
			{"B2", "", "", "01/01/1990", "M"},
			{"C3", "01/02/2023", "20/04/2023", "", ""},
		},
	}
}

// SampleEvents returns a claims ledger matching SampleRoster, plus one
// event (Z9) whose beneficiary is not on the roster.
func SampleEvents() domain.Table {
	return domain.Table{
		Columns: []string{"CPF", "Data Atendimento", "Valor Pago", "Quantidade", "Grupo Despesa", "Codigo Procedimento", "Descricao Procedimento"},
		Rows: [][]string{
			{"A1", "20/01/2023", "50,00", "1", "CONSULTA", "10101012", "CONSULTA ELETIVA"},
			{"A1", "20/03/2023", "100,00", "2", "EXAME", "40301630", "HEMOGRAMA"},
			{"A1", "10/12/2022", "30,00", "1", "CONSULTA", "10101012", "CONSULTA ELETIVA"},
			{"C3", "05/03/2023", "80", "", "TERAPIA", "50000470", "FISIOTERAPIA"},
			{"Z9", "01/02/2023", "1.234,56", "1", "EXAME", "40301630", "HEMOGRAMA"},
		},
	}
}

// CSV renders t as a semicolon separated file.
func CSV(t domain.Table) []byte {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, ";"))
	b.WriteByte('\n')
	for _, row := range t.Rows {
		b.WriteString(strings.Join(row, ";"))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
