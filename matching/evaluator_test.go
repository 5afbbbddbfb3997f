package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonexus/extractd/domain"
)

func sampleRequest() *domain.Request {
	return &domain.Request{
		ID:         7,
		OrderLabel: "443530",
		Client:     "Crown Ltd",
		Perimeter:  "POLYGON((6.5 46.5, 6.6 46.6, 6.5 46.5))",
		Parameters: `{"FORMAT":"DXF","SCALE":500,"EXPRESS":true}`,
	}
}

func TestEvaluateComparisons(t *testing.T) {
	request := sampleRequest()

	tests := []struct {
		predicate string
		expected  bool
	}{
		{`FORMAT == "DXF"`, true},
		{`FORMAT == "SHP"`, false},
		{`FORMAT != "SHP"`, true},
		{`client == "Crown Ltd"`, true},
		{`orderLabel == "443530"`, true},
		{`SCALE == 500`, true},
		{`SCALE < 1000`, true},
		{`SCALE <= 500`, true},
		{`SCALE > 500`, false},
		{`SCALE >= 501`, false},
		{`EXPRESS == true`, true},
		{`EXPRESS == false`, false},
	}

	for _, tt := range tests {
		t.Run(tt.predicate, func(t *testing.T) {
			result, err := Evaluate(tt.predicate, request)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluateBooleanCombinators(t *testing.T) {
	request := sampleRequest()

	tests := []struct {
		predicate string
		expected  bool
	}{
		{`FORMAT == "DXF" AND SCALE == 500`, true},
		{`FORMAT == "DXF" AND SCALE == 1000`, false},
		{`FORMAT == "SHP" OR SCALE == 500`, true},
		{`FORMAT == "SHP" OR SCALE == 1000`, false},
		{`(FORMAT == "SHP" OR FORMAT == "DXF") AND SCALE <= 500`, true},
		{`FORMAT IN ("SHP", "DXF", "GDB")`, true},
		{`FORMAT IN ("SHP", "GDB")`, false},
		{`FORMAT NOT IN ("SHP", "GDB")`, true},
		{`SCALE IN (200, 500, 1000)`, true},
	}

	for _, tt := range tests {
		t.Run(tt.predicate, func(t *testing.T) {
			result, err := Evaluate(tt.predicate, request)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	request := sampleRequest()

	for _, predicate := range []string{
		``,
		`FORMAT ==`,
		`FORMAT = "DXF"`,
		`UNKNOWN_FIELD == "x"`,
		`FORMAT == "DXF`,
		`(FORMAT == "DXF"`,
		`FORMAT == "DXF" SCALE == 500`,
		`client < "Crown"`,
		`FORMAT NOT "DXF"`,
		`FORMAT IN "DXF"`,
	} {
		t.Run(predicate, func(t *testing.T) {
			_, err := Evaluate(predicate, request)
			assert.Error(t, err)
		})
	}
}

func TestEvaluateNumericStringCoercion(t *testing.T) {
	request := &domain.Request{Parameters: `{"SCALE":"500"}`}

	result, err := Evaluate(`SCALE == 500`, request)
	require.NoError(t, err)
	assert.True(t, result)

	result, err = Evaluate(`SCALE >= 250`, request)
	require.NoError(t, err)
	assert.True(t, result)
}
