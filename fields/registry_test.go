package fields

import (
	"errors"
	"slices"
	"testing"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var center = coords.Normalized{X: 0.5, Y: 0.5}

func TestAddField_DuplicateRole(t *testing.T) {
	r := NewRegistry(3)

	first, err := r.AddField(common.Staff, 1, center)
	require.NoError(t, err)

	_, err = r.AddField(common.Staff, 1, coords.Normalized{X: 0.1, Y: 0.1})
	var dup *common.DuplicateRoleError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, common.Staff, dup.Role)
	assert.Equal(t, first.ID, dup.Existing)

	assert.Equal(t, 1, r.Len())
	got, ok := r.ByRole(common.Staff)
	require.True(t, ok)
	assert.Equal(t, first, got)
}

func TestAddField_Validation(t *testing.T) {
	tests := []struct {
		name string
		role common.Role
		page int
		pos  coords.Normalized
		want any
	}{
		{"page beyond count", common.Staff, 4, center, &common.PageOutOfRangeError{}},
		{"page zero", common.Staff, 0, center, &common.PageOutOfRangeError{}},
		{"outside unit square", common.Recipient, 1, coords.Normalized{X: 1.2, Y: 0.5}, &common.OutOfBoundsError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(3)
			_, err := r.AddField(tt.role, tt.page, tt.pos)
			require.Error(t, err)
			assert.IsType(t, tt.want, err)
			assert.Equal(t, 0, r.Len())
		})
	}

	_, err := NewRegistry(1).AddField(common.Role(9), 1, center)
	assert.Error(t, err)
}

func TestIsReadyToProcess(t *testing.T) {
	r := NewRegistry(2)
	assert.False(t, r.IsReadyToProcess())

	_, err := r.AddField(common.Recipient, 2, center)
	require.NoError(t, err)
	assert.False(t, r.IsReadyToProcess())

	_, err = r.AddField(common.Staff, 1, center)
	require.NoError(t, err)
	assert.True(t, r.IsReadyToProcess())
}

func TestRemoveField(t *testing.T) {
	r := NewRegistry(1)
	staff, err := r.AddField(common.Staff, 1, center)
	require.NoError(t, err)

	r.RemoveField("missing")
	assert.Equal(t, 1, r.Len())

	r.RemoveField(staff.ID)
	assert.Equal(t, 0, r.Len())

	// The role is free again.
	_, err = r.AddField(common.Staff, 1, center)
	assert.NoError(t, err)
}

func TestFieldsForPage(t *testing.T) {
	r := NewRegistry(2)
	require.NoError(t, r.Add(common.Field{ID: "b", Role: common.Recipient, PageNumber: 1, Position: center}))
	require.NoError(t, r.Add(common.Field{ID: "a", Role: common.Staff, PageNumber: 1, Position: center}))

	seq := r.FieldsForPage(1)
	ids := func() []string {
		var out []string
		for f := range seq {
			out = append(out, f.ID)
		}
		return out
	}
	if diff := cmp.Diff([]string{"b", "a"}, ids()); diff != "" {
		t.Errorf("first pass (-want +got):\n%s", diff)
	}
	// Restartable.
	if diff := cmp.Diff([]string{"b", "a"}, ids()); diff != "" {
		t.Errorf("second pass (-want +got):\n%s", diff)
	}

	assert.Empty(t, slices.Collect(r.FieldsForPage(2)))
}

func TestAdd_PreservesIdentifier(t *testing.T) {
	r := NewRegistry(1)
	require.NoError(t, r.Add(common.Field{ID: "field-7", Role: common.Staff, PageNumber: 1, Position: center}))
	assert.Error(t, r.Add(common.Field{ID: "field-7", Role: common.Recipient, PageNumber: 1, Position: center}))

	f, ok := r.ByRole(common.Staff)
	require.True(t, ok)
	assert.Equal(t, "field-7", f.ID)

	require.NoError(t, r.Add(common.Field{Role: common.Recipient, PageNumber: 1, Position: center}))
	f, _ = r.ByRole(common.Recipient)
	assert.NotEmpty(t, f.ID)
}

func TestFields_ReturnsCopy(t *testing.T) {
	r := NewRegistry(1)
	_, err := r.AddField(common.Staff, 1, center)
	require.NoError(t, err)

	fs := r.Fields()
	fs[0].PageNumber = 99
	f, _ := r.ByRole(common.Staff)
	assert.Equal(t, 1, f.PageNumber)
}
