package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditionWithoutOperator(t *testing.T) {
	v := vars("Empty", "", "Zero", "0", "Flag", "yes")

	assert.False(t, EvaluateCondition("${Empty}", v))
	assert.True(t, EvaluateCondition("${Zero}", v))
	assert.True(t, EvaluateCondition("$(Flag)", v))
	// an unbound reference resolves to itself, which is non-empty
	assert.True(t, EvaluateCondition("${Unbound}", v))
}

func TestConditionNumericComparisons(t *testing.T) {
	cases := []struct {
		left, right float64
		lt, rt      string
	}{
		{1, 2, "1", "2"},
		{2, 2, "2", "2.0"},
		{3.5, -1, "3.5", "-1"},
		{10, 9, "10", "9"},
		{1e3, 1000, "1e3", "1000"},
	}

	for _, c := range cases {
		v := vars("L", c.lt, "R", c.rt)
		assert.Equal(t, c.left == c.right, EvaluateCondition("${L} == ${R}", v), "%s == %s", c.lt, c.rt)
		assert.Equal(t, c.left != c.right, EvaluateCondition("${L} != ${R}", v), "%s != %s", c.lt, c.rt)
		assert.Equal(t, c.left > c.right, EvaluateCondition("${L} > ${R}", v), "%s > %s", c.lt, c.rt)
		assert.Equal(t, c.left < c.right, EvaluateCondition("${L} < ${R}", v), "%s < %s", c.lt, c.rt)
		assert.Equal(t, c.left >= c.right, EvaluateCondition("${L} >= ${R}", v), "%s >= %s", c.lt, c.rt)
		assert.Equal(t, c.left <= c.right, EvaluateCondition("${L} <= ${R}", v), "%s <= %s", c.lt, c.rt)
	}
}

func TestConditionNumericIsNotLexical(t *testing.T) {
	v := vars("Count", "10")
	assert.True(t, EvaluateCondition("$(Count) > 9", v))
}

func TestConditionStringComparisons(t *testing.T) {
	v := vars("Board", "RevB")

	assert.True(t, EvaluateCondition("${Board} == revb", v))
	assert.False(t, EvaluateCondition("${Board} != REVB", v))
	assert.True(t, EvaluateCondition("${Board} != RevC", v))
	assert.False(t, EvaluateCondition("${Board} > RevA", v))
	assert.False(t, EvaluateCondition("${Board} <= RevA", v))
}

func TestConditionOperatorPriority(t *testing.T) {
	v := vars("X", "5")

	// ">=" is selected even though ">" also appears
	assert.True(t, EvaluateCondition("${X} >= 5", v))
	// "==" wins over "<" because it is earlier in the priority list,
	// leaving "<" inside the right operand
	assert.False(t, EvaluateCondition("a<b == a<c", v))
	assert.True(t, EvaluateCondition("a<b == A<B", v))
}
