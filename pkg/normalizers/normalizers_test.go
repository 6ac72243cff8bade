package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase and accents", input: "JOSÉ Conceição", expected: "jose conceicao"},
		{name: "removes connectives", input: "Maria da Silva dos Santos", expected: "maria silva santos"},
		{name: "keeps connective-like prefixes", input: "Dasilva Douglas", expected: "dasilva douglas"},
		{name: "strips punctuation", input: "Ana-Paula O'Neil Jr.", expected: "anapaula oneil jr"},
		{name: "hyphenated connective", input: "Pedro de-Souza", expected: "pedro souza"},
		{name: "connective exposed by punctuation", input: "Joao d.a Silva", expected: "joao silva"},
		{name: "collapses whitespace", input: "  Carlos   \t Alberto  ", expected: "carlos alberto"},
		{name: "digits kept", input: "Empresa 123 LTDA", expected: "empresa 123 ltda"},
		{name: "empty", input: "", expected: ""},
		{name: "only connectives", input: "da de do", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "formatted mobile", input: "(11) 98765-4321", expected: "11987654321"},
		{name: "with country code", input: "+55 (11) 98765-4321", expected: "11987654321"},
		{name: "55 prefix but 12 digits is kept", input: "55 11 8765-4321", expected: "551187654321"},
		{name: "area code 55 without country code", input: "(55) 98765-4321", expected: "55987654321"},
		{name: "letters removed", input: "tel: 3333-4444", expected: "33334444"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePhone(tt.input))
		})
	}
}

func TestNormalizeDocumentAndEmail(t *testing.T) {
	assert.Equal(t, "12345678909", NormalizeDocument("123.456.789-09"))
	assert.Equal(t, "12345678000195", NormalizeDocument("12.345.678/0001-95"))
	assert.Equal(t, "ana@example.com", NormalizeEmail("  Ana@Example.COM "))
}

func TestNormalizersAreIdempotent(t *testing.T) {
	inputs := []string{
		"Maria da Silva", "JOSÉ d.a CONCEIÇÃO", "+55 (11) 98765-4321", "5511987654321",
		"123.456.789-09", "  Ana@Example.COM ", "das das", "d-a-s", "", "Ænima Øresund",
	}
	fns := map[string]Normalizer{
		"name":     NormalizeName,
		"phone":    NormalizePhone,
		"document": NormalizeDocument,
		"email":    NormalizeEmail,
		"address":  NormalizeAddress,
	}

	for fnName, fn := range fns {
		for _, input := range inputs {
			once := fn(input)
			assert.Equal(t, once, fn(once), "%s(%q) is not idempotent", fnName, input)
		}
	}
}

func TestRegistry(t *testing.T) {
	fn, ok := Get(Phone)
	assert.True(t, ok)
	assert.Equal(t, "11987654321", fn("5511987654321"))

	_, ok = Get("missing")
	assert.False(t, ok)

	assert.Equal(t, "Value", Apply("Value", "missing"))
	assert.Equal(t, "sao paulo", ApplyChain("  SÃO Paulo ", "trim", "lowercase", "strip_diacritics"))
}

func TestLastDigits(t *testing.T) {
	assert.Equal(t, "87654321", LastDigits("(11) 98765-4321", 8))
	assert.Equal(t, "", LastDigits("1234", 8))
}
