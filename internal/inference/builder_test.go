package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nullinfer/internal/resolver"
)

// listOf returns a variable standing for Foo<elem> with one slot.
func listOf(outer, elem *TypeVariable, v resolver.Variance) *TypeVariable {
	outer.TypeParameters = []TypeParameter{{Bound: elem.Bound(), Variance: v}}
	return outer
}

func constraintStrings(cs []*Constraint) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.String())
	}
	return out
}

func TestConstraintBuilder_Variance(t *testing.T) {
	tests := []struct {
		name     string
		variance resolver.Variance
		want     []string
	}{
		{
			name:     "out keeps direction",
			variance: resolver.Out,
			want:     []string{"T1 <: T3 due to 'ASSIGNMENT'", "T0 <: T2 due to 'ASSIGNMENT'"},
		},
		{
			name:     "in flips",
			variance: resolver.In,
			want:     []string{"T3 <: T1 due to 'ASSIGNMENT'", "T0 <: T2 due to 'ASSIGNMENT'"},
		},
		{
			name:     "invariant equates",
			variance: resolver.Invariant,
			want:     []string{"T1 := T3 due to 'ASSIGNMENT'", "T0 <: T2 due to 'ASSIGNMENT'"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newVars(4)
			sub := listOf(v[0], v[1], tt.variance)
			super := listOf(v[2], v[3], tt.variance)

			b := NewConstraintBuilder(nil)
			b.SubtypeOf(sub.Bound(), super.Bound(), Assignment)
			assert.Equal(t, tt.want, constraintStrings(b.Constraints()))
		})
	}
}

func TestConstraintBuilder_SameTypeAsIgnoresVariables(t *testing.T) {
	v := newVars(4)
	left := listOf(v[0], v[1], resolver.Out)
	right := listOf(v[2], v[3], resolver.Out)

	b := NewConstraintBuilder(nil)
	b.SameTypeAs(left.Bound(), right.Bound(), SuperDeclaration, map[*TypeVariable]bool{v[1]: true})
	assert.Equal(t, []string{"T0 := T2 due to 'SUPER_DECLARATION'"}, constraintStrings(b.Constraints()))
}

func TestConstraintBuilder_StatelessLabelsContributeNothing(t *testing.T) {
	v := newVars(1)
	b := NewConstraintBuilder(nil)

	b.SubtypeOf(genericBound(NoClassRef{}), v[0].Bound(), Parameter)
	b.SubtypeOf(v[0].Bound(), &BoundType{Label: StarProjectionLabel{}}, Parameter)
	b.SameTypeAsState(genericBound(NoClassRef{}), Lower, UseAsReceiver)
	b.SubtypeOf(nil, v[0].Bound(), Parameter)
	assert.Empty(t, b.Constraints())
}

func TestConstraintBuilder_ForcedStateBecomesLiteral(t *testing.T) {
	v := newVars(1)
	b := NewConstraintBuilder(nil)

	b.SubtypeOf(v[0].Bound().WithForced(Lower), v[0].Bound(), Return)
	b.SameTypeAsState(&BoundType{Label: NullLiteralLabel{}}, Lower, UseAsReceiver)
	assert.Equal(t, []string{
		"LOWER <: T0 due to 'RETURN'",
		"UPPER := LOWER due to 'USE_AS_RECEIVER'",
	}, constraintStrings(b.Constraints()))
}
