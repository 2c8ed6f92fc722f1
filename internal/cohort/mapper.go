package cohort

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"carecohort/pkg/contracts/domain"
)

// DefaultSuggestionLimit is the number of candidates kept per concept.
const DefaultSuggestionLimit = 5

// minSuggestionScore is exclusive.
const minSuggestionScore = 60

// ConceptDictionary maps a concept to its known column-name synonyms.
type ConceptDictionary map[string][]string

// Concepts returns the concept names in sorted order.
func (d ConceptDictionary) Concepts() []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RosterConcepts are the concepts looked for in the beneficiary roster.
var RosterConcepts = ConceptDictionary{
	ConceptIdentifier:       {"id_pessoa", "cpf", "cpf_u", "id_usuario", "matricula", "carteirinha", "codigo_beneficiario"},
	ConceptInclusionDate:    {"data inclusao", "inclusao", "entrada", "dt inclusao", "dt_inc", "admissao", "inicio_vigencia"},
	ConceptDeactivationDate: {"data inativacao", "inativacao", "dt inativacao", "exclusao", "dt_canc", "cancelamento", "fim_vigencia"},
	ConceptBirthDate:        {"data nascimento", "dt nasc", "nascimento", "dt_nasc", "dtnasc", "data_nasc"},
	ConceptSex:              {"sexo", "genero", "sex"},
}

// EventConcepts are the concepts looked for in the financial event ledger.
var EventConcepts = ConceptDictionary{
	ConceptIdentifier:         {"id_pessoa", "cpf", "cpf_u", "id_usuario", "beneficiario", "cod_beneficiario"},
	ConceptServiceDate:        {"atendimento", "data atendimento", "dt atendimento", "data_evento", "dt_realizacao", "competencia"},
	ConceptCost:               {"custos", "custo", "valor", "valor_total", "vlr", "valor_pago", "valor_cobrado"},
	ConceptQuantity:           {"qtde usada", "quantidade", "qtde", "qtd"},
	ConceptAdmissionKey:       {"chv_internamento", "internamento", "chave internamento", "num_guia", "senha"},
	ConceptGroup:              {"agrupamento_assistencial_g", "agrupamento assistencial", "grupo_despesa", "tipo_despesa"},
	ConceptServiceCode:        {"codigo_servico", "procedimento", "tuss", "cod_procedimento", "codigo"},
	ConceptServiceDescription: {"descricao_servico", "servico", "desc_procedimento", "nome_procedimento"},
	ConceptAge:                {"idade", "idade atual", "age", "anos", "idade_beneficiario"},
}

const keptAccents = "çãáàâéêíóôõúü"

// NormalizeColumnName lowercases a raw column name, collapses whitespace and
// removes characters outside letters, digits, "_", " ", "/", "-" and the
// Portuguese accented letters.
func NormalizeColumnName(s string) string {
	s = cases.Lower(language.Und).String(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '_', r == ' ', r == '/', r == '-':
			return r
		case strings.ContainsRune(keptAccents, r):
			return r
		}
		return -1
	}, s)
}

type scoredColumn struct {
	pos   int
	score int
}

// SuggestMapping ranks the raw columns that best match each concept. Every
// concept of the dictionary appears in the result, with an empty list when
// nothing scores above the threshold.
func SuggestMapping(columns []string, concepts ConceptDictionary, limit int) map[string][]string {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	// columns normalizing to the same key collapse onto the later one,
	// keeping the position of the first
	var keys []string
	raw := make(map[string]string, len(columns))
	for _, c := range columns {
		k := NormalizeColumnName(c)
		if _, seen := raw[k]; !seen {
			keys = append(keys, k)
		}
		raw[k] = c
	}

	out := make(map[string][]string, len(concepts))
	for concept, synonyms := range concepts {
		best := make(map[int]int)
		for _, syn := range synonyms {
			syn = NormalizeColumnName(syn)
			if syn == "" {
				continue
			}
			for pos, key := range keys {
				s := WeightedRatio(syn, key)
				if s <= minSuggestionScore {
					continue
				}
				if cur, ok := best[pos]; !ok || int(s) > cur {
					best[pos] = int(s)
				}
			}
		}

		ranked := make([]scoredColumn, 0, len(best))
		for pos, score := range best {
			ranked = append(ranked, scoredColumn{pos: pos, score: score})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].score != ranked[j].score {
				return ranked[i].score > ranked[j].score
			}
			return ranked[i].pos < ranked[j].pos
		})
		if len(ranked) > limit {
			ranked = ranked[:limit]
		}

		names := make([]string, 0, len(ranked))
		for _, sc := range ranked {
			names = append(names, raw[keys[sc.pos]])
		}
		out[concept] = names
	}
	return out
}

// ColumnChoice is the raw column picked for a concept. It decodes from a JSON
// string or from a list, in which case the first element is used.
type ColumnChoice string

// UnmarshalJSON implements json.Unmarshaler.
func (c *ColumnChoice) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("column choice: %w", err)
		}
		if len(list) == 0 {
			*c = ""
			return nil
		}
		*c = ColumnChoice(list[0])
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("column choice: %w", err)
	}
	*c = ColumnChoice(s)
	return nil
}

// ColumnMapping assigns a raw column to each concept.
type ColumnMapping map[string]ColumnChoice

// Resolve returns the raw column chosen for the concept, or "".
func (m ColumnMapping) Resolve(concept string) string {
	return strings.TrimSpace(string(m[concept]))
}

// MappingFromSuggestions picks the top suggestion of every concept.
func MappingFromSuggestions(suggestions map[string][]string) ColumnMapping {
	m := make(ColumnMapping, len(suggestions))
	for concept, cols := range suggestions {
		if len(cols) > 0 {
			m[concept] = ColumnChoice(cols[0])
		}
	}
	return m
}

// ApplyMapping returns a copy of the table with each chosen raw column
// renamed to its concept. Empty choices and choices naming an absent column
// are skipped. An unmapped column that already carries a concept name is
// renamed with an "_original" suffix so the mapped column wins.
func ApplyMapping(t domain.Table, m ColumnMapping) domain.Table {
	out := t.Clone()
	concepts := make([]string, 0, len(m))
	for k := range m {
		concepts = append(concepts, k)
	}
	sort.Strings(concepts)

	for _, concept := range concepts {
		rawCol := m.Resolve(concept)
		if rawCol == "" || rawCol == concept {
			continue
		}
		idx := out.ColumnIndex(rawCol)
		if idx < 0 {
			continue
		}
		if clash := out.ColumnIndex(concept); clash >= 0 {
			out.Columns[clash] = concept + "_original"
		}
		out.Columns[idx] = concept
	}
	return out
}
