package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamsRepeatAndCase(t *testing.T) {
	var p Params
	p.Add("Command", "echo one")
	p.Add("command", "echo two")
	p.Add("Url", "https://example.com")

	assert.Equal(t, []string{"echo one", "echo two"}, p.All("COMMAND"))
	assert.Equal(t, "echo two", p.Value("Command"))
	assert.True(t, p.Has("url"))
	assert.False(t, p.Has("Output"))

	_, ok := p.Get("Output")
	assert.False(t, ok)
}

func TestParamsBlankValueIsNotPresent(t *testing.T) {
	p := ParamsFromMap(map[string]string{"Source": "  ", "B": "2", "A": "1"})
	assert.False(t, p.Has("Source"))
	assert.Equal(t, "A", p[0].Key)
}

func TestExecutionResultRecord(t *testing.T) {
	r := NewExecutionResult()
	r.Record("one", Succeeded(""))
	r.Record("two", &StepResult{Success: true, InteractiveWaiting: true})
	r.Record("one", Succeeded("again"))

	assert.Equal(t, []string{"one", "two"}, r.StepOrder)
	assert.Equal(t, "again", r.StepResults["one"].Output)
	assert.True(t, r.InteractiveWaiting)
}
